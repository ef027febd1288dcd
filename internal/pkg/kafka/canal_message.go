package kafka

import (
	"fmt"
	"strconv"
)

// CanalMessage 定义了 Canal 推送到 Kafka 的 JSON 数据结构
type CanalMessage struct {
	ID       int64    `json:"id"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	PKNames  []string `json:"pkNames"`
	IsDDL    bool     `json:"isDdl"`
	Type     string   `json:"type"`
	ES       int64    `json:"es"`
	TS       int64    `json:"ts"`

	// Data 存储变更后的数据
	Data []map[string]interface{} `json:"data"`

	// Old 存储变更前的数据，只包含被修改的列
	Old []map[string]interface{} `json:"old"`
}

const (
	CanalInsert = "INSERT"
	CanalUpdate = "UPDATE"
	CanalDelete = "DELETE"
)

// columnString canal 的列值统一为字符串，NULL 为 nil
func columnString(row map[string]interface{}, column string) (string, bool) {
	v, ok := row[column]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprint(val), true
	}
}

func columnUint64(row map[string]interface{}, column string) uint64 {
	s, ok := columnString(row, column)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
