package cms

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	OpEq   = "$eq"
	OpIn   = "$in"
	OpNull = "$null"
)

// Filter 单个过滤条件，Field 可用点号访问关联字段，如 user.id
type Filter struct {
	Field string
	Op    string
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

func In[T any](field string, values []T) Filter {
	vs := make([]any, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	return Filter{Field: field, Op: OpIn, Value: vs}
}

// Query Filters 之间为 AND，Or 中任一满足即可
type Query struct {
	Filters  []Filter
	Or       []Filter
	Populate []string
	Sort     []string
	PageSize int
}

// Values 编码为 Strapi 风格的查询参数
func (q Query) Values() url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		encodeFilter(v, "filters", f)
	}
	for i, f := range q.Or {
		encodeFilter(v, fmt.Sprintf("filters[$or][%d]", i), f)
	}
	encodePopulate(v, q.Populate)
	for i, s := range q.Sort {
		v.Set(fmt.Sprintf("sort[%d]", i), s)
	}
	if q.PageSize > 0 {
		v.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	}
	return v
}

func encodeFilter(v url.Values, prefix string, f Filter) {
	key := prefix
	for _, seg := range strings.Split(f.Field, ".") {
		key += "[" + seg + "]"
	}
	key += "[" + f.Op + "]"

	switch vals := f.Value.(type) {
	case []any:
		for i, item := range vals {
			v.Set(fmt.Sprintf("%s[%d]", key, i), scalarString(item))
		}
	default:
		v.Set(key, scalarString(f.Value))
	}
}

type populateNode map[string]populateNode

func encodePopulate(v url.Values, paths []string) {
	if len(paths) == 0 {
		return
	}
	root := populateNode{}
	for _, p := range paths {
		node := root
		for _, seg := range strings.Split(p, ".") {
			if seg == "" {
				continue
			}
			next, ok := node[seg]
			if !ok {
				next = populateNode{}
				node[seg] = next
			}
			node = next
		}
	}
	writePopulate(v, "populate", root)
}

func writePopulate(v url.Values, prefix string, node populateNode) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := node[k]
		key := prefix + "[" + k + "]"
		if len(child) == 0 {
			v.Set(key, "true")
			continue
		}
		writePopulate(v, key+"[populate]", child)
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
