package cms

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 本地后端中关联字段的存储形式：{"$documentIds": [...]}
const refKey = "$documentIds"

type lookupFunc func(documentID string) (map[string]any, bool)

func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// normalize 经 JSON 往返统一数值类型，并把 connect 写法转换为本地引用
func normalize(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for k, v := range out {
		if ref, ok := connectRef(v); ok {
			out[k] = ref
		}
	}
	delete(out, "id")
	delete(out, "documentId")
	return out, nil
}

func connectRef(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	var items []any
	if c, ok := m["connect"].([]any); ok {
		items = c
	} else if s, ok := m["set"].([]any); ok {
		items = s
	} else if _, ok := m["disconnect"]; ok {
		return nil, true
	} else {
		return nil, false
	}
	docs := make([]any, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			docs = append(docs, x)
		case map[string]any:
			if d, ok := x["documentId"].(string); ok {
				docs = append(docs, d)
			}
		}
	}
	if len(docs) == 0 {
		return nil, true
	}
	return map[string]any{refKey: docs}, true
}

func refDocs(v any) ([]string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := m[refKey].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		if s, ok := d.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func stamp(fields map[string]any, id int64, documentID string, created bool) {
	now := FormatTime(time.Now())
	fields["id"] = float64(id)
	fields["documentId"] = documentID
	if created {
		fields["createdAt"] = now
	}
	fields["updatedAt"] = now
}

func merge(dst, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func matches(fields map[string]any, q Query, lookup lookupFunc) bool {
	for _, f := range q.Filters {
		if !matchFilter(fields, f, lookup) {
			return false
		}
	}
	if len(q.Or) == 0 {
		return true
	}
	for _, f := range q.Or {
		if matchFilter(fields, f, lookup) {
			return true
		}
	}
	return false
}

func matchFilter(fields map[string]any, f Filter, lookup lookupFunc) bool {
	values := valuesAt(fields, strings.Split(f.Field, "."), lookup)
	switch f.Op {
	case OpNull:
		want, _ := f.Value.(bool)
		isNull := len(values) == 0
		return isNull == want
	case OpIn:
		candidates, _ := f.Value.([]any)
		for _, v := range values {
			for _, c := range candidates {
				if equalValues(v, c) {
					return true
				}
			}
		}
		return false
	default:
		for _, v := range values {
			if equalValues(v, f.Value) {
				return true
			}
		}
		return false
	}
}

func valuesAt(fields map[string]any, path []string, lookup lookupFunc) []any {
	if len(path) == 0 || fields == nil {
		return nil
	}
	v, ok := fields[path[0]]
	if !ok || v == nil {
		return nil
	}
	if docs, isRef := refDocs(v); isRef {
		var out []any
		for _, d := range docs {
			if len(path) == 1 {
				out = append(out, d)
				continue
			}
			if target, ok := lookup(d); ok {
				out = append(out, valuesAt(target, path[1:], lookup)...)
			}
		}
		return out
	}
	if len(path) == 1 {
		return []any{v}
	}
	if m, ok := v.(map[string]any); ok {
		return valuesAt(m, path[1:], lookup)
	}
	return nil
}

func equalValues(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// present 按 populate 展开关联，未展开的关联字段不返回
func present(fields map[string]any, populate []string, lookup lookupFunc) Record {
	tree := populateNode{}
	for _, p := range populate {
		node := tree
		for _, seg := range strings.Split(p, ".") {
			if seg == "" {
				continue
			}
			if _, ok := node[seg]; !ok {
				node[seg] = populateNode{}
			}
			node = node[seg]
		}
	}
	return RecordFromMap(presentMap(fields, tree, lookup))
}

func presentMap(fields map[string]any, tree populateNode, lookup lookupFunc) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		docs, isRef := refDocs(v)
		if !isRef {
			out[k] = v
			continue
		}
		child, want := tree[k]
		if !want {
			continue
		}
		var items []any
		for _, d := range docs {
			if target, ok := lookup(d); ok {
				items = append(items, presentMap(target, child, lookup))
			}
		}
		switch len(items) {
		case 0:
			out[k] = nil
		case 1:
			out[k] = items[0]
		default:
			out[k] = items
		}
	}
	return out
}

func sortFields(items []map[string]any, sorts []string) {
	if len(sorts) == 0 {
		sort.SliceStable(items, func(i, j int) bool {
			return toInt64(items[i]["id"]) < toInt64(items[j]["id"])
		})
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, s := range sorts {
			field, dir, _ := strings.Cut(s, ":")
			c := compareValues(items[i][field], items[j][field])
			if c == 0 {
				continue
			}
			if strings.EqualFold(dir, "desc") {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func limit(items []map[string]any, pageSize int) []map[string]any {
	if pageSize > 0 && len(items) > pageSize {
		return items[:pageSize]
	}
	return items
}
