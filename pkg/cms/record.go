package cms

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record CMS 中的一条记录。ID 为内部数字主键，DocumentID 为对外的不透明标识。
type Record struct {
	ID         int64
	DocumentID string
	Fields     map[string]any
}

// RecordFromMap 将 REST 返回的扁平对象转换为 Record
func RecordFromMap(m map[string]any) Record {
	r := Record{Fields: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case "id":
			r.ID = toInt64(v)
		case "documentId":
			r.DocumentID, _ = v.(string)
		default:
			r.Fields[k] = v
		}
	}
	return r
}

func (r Record) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

func (r Record) String(key string) string {
	switch v := r.Fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func (r Record) Int64(key string) int64 {
	return toInt64(r.Fields[key])
}

func (r Record) IntPtr(key string) *int {
	if !r.Has(key) {
		return nil
	}
	v := int(toInt64(r.Fields[key]))
	return &v
}

func (r Record) FloatPtr(key string) *float64 {
	if !r.Has(key) {
		return nil
	}
	v, ok := toFloat(r.Fields[key])
	if !ok {
		return nil
	}
	return &v
}

func (r Record) Bool(key string) bool {
	switch v := r.Fields[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func (r Record) Time(key string) *time.Time {
	s, ok := r.Fields[key].(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func (r Record) Map(key string) map[string]any {
	m, _ := r.Fields[key].(map[string]any)
	return m
}

// Relation 返回已展开（populate）的单值关联；未展开或为空时返回 nil
func (r Record) Relation(key string) *Record {
	switch v := r.Fields[key].(type) {
	case map[string]any:
		rel := RecordFromMap(v)
		return &rel
	case []any:
		if len(v) == 0 {
			return nil
		}
		if m, ok := v[0].(map[string]any); ok {
			rel := RecordFromMap(m)
			return &rel
		}
	}
	return nil
}

func (r Record) Int64Slice(key string) []int64 {
	raw, ok := r.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		out = append(out, toInt64(v))
	}
	return out
}

func (r Record) StringSlice(key string) []string {
	raw, ok := r.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Connect 生成按 documentId 关联的写入结构，后台管理界面只认这种写法
func Connect(documentID string) map[string]any {
	return map[string]any{
		"connect": []map[string]any{{"documentId": documentID}},
	}
}

// FormatTime 统一时间写入格式
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
