package model

import (
	"strconv"
	"strings"
)

// Ref 记录引用，既可以是数字 id，也可以是 documentId
type Ref string

func IDRef(id int64) Ref {
	if id <= 0 {
		return ""
	}
	return Ref(strconv.FormatInt(id, 10))
}

func (r Ref) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// NumericID 纯数字引用返回对应 id
func (r Ref) NumericID() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(r)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (r Ref) String() string {
	return strings.TrimSpace(string(r))
}

// EntityRef 关联记录的两种标识
type EntityRef struct {
	ID         int64  `json:"id"`
	DocumentID string `json:"documentId"`
}
