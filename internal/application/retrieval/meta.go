package retrieval

import (
	"encoding/json"
	"strings"
)

// EncodeMetadata 将片段元信息编码为 JSON 字符串，写入向量库的 metadata 字段。
// 空 map 编码为空串。
func EncodeMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeMetadata 解析 EncodeMetadata 的结果；非法内容安全降级为 nil。
func DecodeMetadata(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}
	return meta
}
