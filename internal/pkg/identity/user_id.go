package identity

import (
	"encoding/binary"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Kind 标识 UserID 的来源
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLegacy
	KindExternal
)

var (
	ErrInvalidReceiver = errors.New("invalid receiver identifier")
	ErrInvalidUserID   = errors.New("invalid user identifier")
)

// 严格 8-4-4-4-12，不接受花括号、urn 前缀或无连字符写法
var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// UserID 统一用户标识：旧系统数字 ID 或身份提供方签发的 UUID
// 可比较，可直接作为 map 的 key
type UserID struct {
	kind     Kind
	legacy   uint64
	external uuid.UUID
}

func Legacy(id uint64) UserID {
	return UserID{kind: KindLegacy, legacy: id}
}

func External(id uuid.UUID) UserID {
	return UserID{kind: KindExternal, external: id}
}

func (u UserID) Kind() Kind { return u.kind }

func (u UserID) IsZero() bool { return u.kind == KindInvalid }

func (u UserID) IsLegacy() bool { return u.kind == KindLegacy }

func (u UserID) IsExternal() bool { return u.kind == KindExternal }

// LegacyID 返回数字 ID，非 Legacy 时 ok 为 false
func (u UserID) LegacyID() (uint64, bool) {
	return u.legacy, u.kind == KindLegacy
}

// ExternalID 返回 UUID，非 External 时 ok 为 false
func (u UserID) ExternalID() (uuid.UUID, bool) {
	return u.external, u.kind == KindExternal
}

func (u UserID) String() string {
	switch u.kind {
	case KindLegacy:
		return strconv.FormatUint(u.legacy, 10)
	case KindExternal:
		return u.external.String()
	default:
		return ""
	}
}

func (u UserID) MarshalJSON() ([]byte, error) {
	if u.kind == KindInvalid {
		return []byte("null"), nil
	}
	return json.Marshal(u.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = UserID{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n uint64
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return ErrInvalidUserID
		}
		raw = strconv.FormatUint(n, 10)
	}
	parsed, err := ParseReceiver(raw)
	if err != nil {
		return ErrInvalidUserID
	}
	*u = parsed
	return nil
}

// IsUUID 判断字符串是否为严格格式的 UUID
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// ParseReceiver 解析客户端传入的接收方标识
// 严格 UUID -> External，否则按十进制正整数解析为 Legacy
func ParseReceiver(raw string) (UserID, error) {
	if IsUUID(raw) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return UserID{}, ErrInvalidReceiver
		}
		return External(id), nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return UserID{}, ErrInvalidReceiver
	}
	return Legacy(n), nil
}

// ParseExternal 解析外部 ID 列（可能为空）
func ParseExternal(raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if !IsUUID(raw) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Synthetic 为没有外部 ID 的旧用户生成临时关联 ID
// 使用保留的 Future variant (111)，与真实的 RFC 4122 UUID 不会冲突
func Synthetic(legacy uint64) uuid.UUID {
	var id uuid.UUID
	copy(id[:4], "lgcy")
	id[6] = 0x80
	binary.BigEndian.PutUint64(id[8:], legacy)
	id[8] = id[8]&0x1f | 0xe0
	// legacy 的高 3 位被 variant 占用，放到第 7 字节
	id[7] = byte(legacy >> 61)
	return id
}

// IsSynthetic 判断是否为 Synthetic 生成的 ID
func IsSynthetic(id uuid.UUID) bool {
	return id.Variant() == uuid.Future && string(id[:4]) == "lgcy"
}

// syntheticLegacy 从临时 ID 中还原旧用户 ID
func syntheticLegacy(id uuid.UUID) uint64 {
	n := binary.BigEndian.Uint64(id[8:])
	n &= (1 << 61) - 1
	return n | uint64(id[7]&0x07)<<61
}
