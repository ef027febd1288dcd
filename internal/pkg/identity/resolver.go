package identity

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheSize 每个方向的映射缓存条目上限
const DefaultCacheSize = 10000

var ErrUnauthenticated = errors.New("unauthenticated")

// MappingSource 旧 ID 与外部 ID 的映射来源（医生档案表）
type MappingSource interface {
	ExternalByLegacy(ctx context.Context, legacy uint64) (uuid.UUID, bool, error)
	LegacyByExternal(ctx context.Context, external uuid.UUID) (uint64, bool, error)
}

// Aliases 同一个人在存储中可能出现的所有标识形式
type Aliases struct {
	Legacy   []uint64
	External []uuid.UUID
}

func (a Aliases) Empty() bool {
	return len(a.Legacy) == 0 && len(a.External) == 0
}

// cacheEntry 同时缓存“无映射”的结果
type cacheEntry[T any] struct {
	value T
	found bool
}

// Resolver 负责把会话中的混合标识归一为 UserID，并判断两个 UserID 是否为同一人
type Resolver struct {
	source MappingSource

	byLegacy   *expirable.LRU[uint64, cacheEntry[uuid.UUID]]
	byExternal *expirable.LRU[uuid.UUID, cacheEntry[uint64]]
}

type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	size int
}

// WithCacheSize 每个方向最多缓存 size 条，超出按 LRU 淘汰
func WithCacheSize(size int) ResolverOption {
	return func(o *resolverOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// NewResolver ttl <= 0 时条目不过期，只按容量淘汰并依赖 Forget 失效
func NewResolver(source MappingSource, ttl time.Duration, opts ...ResolverOption) *Resolver {
	if source == nil {
		source = NoMapping{}
	}
	o := resolverOptions{size: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Resolver{
		source:     source,
		byLegacy:   expirable.NewLRU[uint64, cacheEntry[uuid.UUID]](o.size, nil, ttl),
		byExternal: expirable.NewLRU[uuid.UUID, cacheEntry[uint64]](o.size, nil, ttl),
	}
}

// Resolve 从会话凭据得到规范 UserID，外部 ID 优先
func (r *Resolver) Resolve(legacyID uint64, externalID string) (UserID, error) {
	if ext, ok := ParseExternal(externalID); ok && !IsSynthetic(ext) {
		return External(ext), nil
	}
	if legacyID > 0 {
		return Legacy(legacyID), nil
	}
	return UserID{}, ErrUnauthenticated
}

// Reconcile 判断 a 与 b 是否指向同一人
func (r *Resolver) Reconcile(ctx context.Context, a, b UserID) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	if a == b {
		return true
	}
	if a.kind == b.kind {
		return false
	}
	if a.IsExternal() {
		a, b = b, a
	}
	// a 为 Legacy，b 为 External
	if ext, ok := r.externalOf(ctx, a.legacy); ok && ext == b.external {
		return true
	}
	if legacy, ok := r.legacyOf(ctx, b.external); ok && legacy == a.legacy {
		return true
	}
	return false
}

// Canonical 有映射时统一为 External 形式
func (r *Resolver) Canonical(ctx context.Context, u UserID) UserID {
	if u.IsLegacy() {
		if ext, ok := r.externalOf(ctx, u.legacy); ok {
			return External(ext)
		}
	}
	return u
}

// Aliases 返回 u 的所有已知存储形式
func (r *Resolver) Aliases(ctx context.Context, u UserID) Aliases {
	var res Aliases
	switch u.kind {
	case KindLegacy:
		res.Legacy = []uint64{u.legacy}
		if ext, ok := r.externalOf(ctx, u.legacy); ok {
			res.External = []uuid.UUID{ext}
		}
	case KindExternal:
		if IsSynthetic(u.external) {
			res.Legacy = []uint64{syntheticLegacy(u.external)}
			return res
		}
		res.External = []uuid.UUID{u.external}
		if legacy, ok := r.legacyOf(ctx, u.external); ok {
			res.Legacy = []uint64{legacy}
		}
	}
	return res
}

// CorrelationID 用于跨节点路由的统一 UUID 键
// 没有外部 ID 的旧用户使用 Synthetic 临时 ID，仅在内存与消息总线中流转
func (r *Resolver) CorrelationID(ctx context.Context, u UserID) uuid.UUID {
	c := r.Canonical(ctx, u)
	if c.IsExternal() {
		return c.external
	}
	return Synthetic(c.legacy)
}

// FromCorrelation CorrelationID 的逆运算
func FromCorrelation(id uuid.UUID) UserID {
	if IsSynthetic(id) {
		return Legacy(syntheticLegacy(id))
	}
	return External(id)
}

// Forget 医生档案变更后清理缓存
func (r *Resolver) Forget(legacy uint64, external uuid.UUID) {
	if legacy > 0 {
		r.byLegacy.Remove(legacy)
	}
	if external != uuid.Nil {
		r.byExternal.Remove(external)
	}
}

// CacheLen 两个方向当前缓存的条目数
func (r *Resolver) CacheLen() (byLegacy, byExternal int) {
	return r.byLegacy.Len(), r.byExternal.Len()
}

func (r *Resolver) externalOf(ctx context.Context, legacy uint64) (uuid.UUID, bool) {
	if e, ok := r.byLegacy.Get(legacy); ok {
		return e.value, e.found
	}

	ext, found, err := r.source.ExternalByLegacy(ctx, legacy)
	if err != nil {
		// 映射查询失败按“无映射”处理，不缓存
		log.WarnContext(ctx, "identity mapping lookup failed", "legacy_id", legacy, "err", err)
		return uuid.Nil, false
	}
	r.byLegacy.Add(legacy, cacheEntry[uuid.UUID]{value: ext, found: found})
	return ext, found
}

func (r *Resolver) legacyOf(ctx context.Context, external uuid.UUID) (uint64, bool) {
	if e, ok := r.byExternal.Get(external); ok {
		return e.value, e.found
	}

	legacy, found, err := r.source.LegacyByExternal(ctx, external)
	if err != nil {
		log.WarnContext(ctx, "identity mapping lookup failed", "external_id", external.String(), "err", err)
		return 0, false
	}
	r.byExternal.Add(external, cacheEntry[uint64]{value: legacy, found: found})
	return legacy, found
}

// NoMapping 无数据库时使用的空映射
type NoMapping struct{}

func (NoMapping) ExternalByLegacy(context.Context, uint64) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (NoMapping) LegacyByExternal(context.Context, uuid.UUID) (uint64, bool, error) {
	return 0, false, nil
}

// StaticMapping 固定映射表，演示模式与测试使用
type StaticMapping map[uint64]uuid.UUID

func (m StaticMapping) ExternalByLegacy(_ context.Context, legacy uint64) (uuid.UUID, bool, error) {
	ext, ok := m[legacy]
	return ext, ok, nil
}

func (m StaticMapping) LegacyByExternal(_ context.Context, external uuid.UUID) (uint64, bool, error) {
	for legacy, ext := range m {
		if ext == external {
			return legacy, true, nil
		}
	}
	return 0, false, nil
}
