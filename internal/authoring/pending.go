package authoring

import (
	"time"

	"course_studio_backend/internal/model"
)

type PendingStatus string

const (
	StatusSaving PendingStatus = "saving"
	StatusSaved  PendingStatus = "saved"
	StatusError  PendingStatus = "error"
)

// PendingEvent 日志只追加，当前状态由 Reduce 折叠得到
type PendingEvent struct {
	LocalID    string              `json:"localId"`
	ServerID   string              `json:"serverId,omitempty"`
	MaterialID string              `json:"materialId"`
	Status     PendingStatus       `json:"status"`
	Message    string              `json:"message,omitempty"`
	Content    model.CourseContent `json:"content"`
	At         time.Time           `json:"at"`
}

type PendingLog struct {
	Events []PendingEvent `json:"events"`
}

// PendingItem 某个本地内容的当前状态
type PendingItem struct {
	LocalID    string              `json:"localId"`
	ServerID   string              `json:"serverId,omitempty"`
	MaterialID string              `json:"materialId"`
	Status     PendingStatus       `json:"status"`
	Message    string              `json:"message,omitempty"`
	Content    model.CourseContent `json:"content"`
	Attempts   int                 `json:"attempts"`
}

func (l *PendingLog) Append(ev PendingEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	l.Events = append(l.Events, ev)
}

func (l *PendingLog) fold() (map[string]*PendingItem, []string) {
	items := map[string]*PendingItem{}
	var order []string
	for _, ev := range l.Events {
		it, ok := items[ev.LocalID]
		if !ok {
			it = &PendingItem{LocalID: ev.LocalID}
			items[ev.LocalID] = it
			order = append(order, ev.LocalID)
		}
		it.Status = ev.Status
		it.Message = ev.Message
		if ev.MaterialID != "" {
			it.MaterialID = ev.MaterialID
		}
		if ev.ServerID != "" {
			it.ServerID = ev.ServerID
		}
		switch ev.Status {
		case StatusSaving:
			it.Attempts++
			it.Content = ev.Content
		case StatusSaved:
			it.Content = ev.Content
		}
	}
	return items, order
}

// Reduce 返回仍待处理（saving/error）的条目，保持首次出现的顺序
func (l *PendingLog) Reduce() []PendingItem {
	items, order := l.fold()
	out := make([]PendingItem, 0, len(order))
	for _, id := range order {
		if it := items[id]; it.Status != StatusSaved {
			out = append(out, *it)
		}
	}
	return out
}

// Lookup 包含已保存条目
func (l *PendingLog) Lookup(localID string) (PendingItem, bool) {
	items, _ := l.fold()
	it, ok := items[localID]
	if !ok {
		return PendingItem{}, false
	}
	return *it, true
}

// Compact 丢弃已保存条目的历史
func (l *PendingLog) Compact() {
	items, _ := l.fold()
	kept := l.Events[:0]
	for _, ev := range l.Events {
		if items[ev.LocalID].Status != StatusSaved {
			kept = append(kept, ev)
		}
	}
	l.Events = kept
}
