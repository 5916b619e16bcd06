// Package authoring 维护课程编辑器的工作集：基础信息、章节、章节内容以及尚未确认保存的内容。
package authoring

import (
	"sort"

	"course_studio_backend/internal/model"
)

// WorkingSet 一门课程在编辑器中的当前视图，Contents 按章节 documentId 分组
type WorkingSet struct {
	CourseID  string                           `json:"courseId"`
	Basics    model.CourseBasics               `json:"basics"`
	Materials []model.CourseMaterial           `json:"materials"`
	Contents  map[string][]model.CourseContent `json:"contents"`
	Pending   PendingLog                       `json:"pending"`
}

func NewWorkingSet(basics model.CourseBasics) *WorkingSet {
	return &WorkingSet{
		CourseID: basics.DocumentID,
		Basics:   basics,
		Contents: map[string][]model.CourseContent{},
	}
}

func (w *WorkingSet) MaterialIndex(materialID string) int {
	for i, m := range w.Materials {
		if m.DocumentID == materialID {
			return i
		}
	}
	return -1
}

func (w *WorkingSet) HasMaterial(materialID string) bool {
	return w.MaterialIndex(materialID) >= 0
}

// FindContent 返回内容所在章节与下标
func (w *WorkingSet) FindContent(contentID string) (materialID string, index int, ok bool) {
	for mid, list := range w.Contents {
		for i, c := range list {
			if c.DocumentID == contentID {
				return mid, i, true
			}
		}
	}
	return "", -1, false
}

// AllContents 按章节顺序展开全部内容
func (w *WorkingSet) AllContents() []model.CourseContent {
	var out []model.CourseContent
	for _, m := range w.Materials {
		out = append(out, w.Contents[m.DocumentID]...)
	}
	return out
}

// NextContentIndex 新内容排在章节末尾，待保存的内容也占位
func (w *WorkingSet) NextContentIndex(materialID string) int {
	next := len(w.Contents[materialID])
	for _, p := range w.Pending.Reduce() {
		if p.MaterialID == materialID && p.Content.OrderIndex >= next {
			next = p.Content.OrderIndex + 1
		}
	}
	return next
}

// Confirm 服务端确认后写入权威列表并按 order_index 重新排序
func (w *WorkingSet) Confirm(localID string, saved model.CourseContent) {
	w.Pending.Append(PendingEvent{
		LocalID:    localID,
		ServerID:   saved.DocumentID,
		MaterialID: saved.MaterialID,
		Status:     StatusSaved,
		Content:    saved,
	})
	if w.Contents == nil {
		w.Contents = map[string][]model.CourseContent{}
	}
	// 保存期间重新加载过，记录已在权威列表中
	if _, _, ok := w.FindContent(saved.DocumentID); ok {
		return
	}
	list := append(w.Contents[saved.MaterialID], saved)
	sortContents(list)
	w.Contents[saved.MaterialID] = list
}

func (w *WorkingSet) UpdateContent(c model.CourseContent) bool {
	mid, i, ok := w.FindContent(c.DocumentID)
	if !ok {
		return false
	}
	c.MaterialID = mid
	w.Contents[mid][i] = c
	return true
}

func sortContents(list []model.CourseContent) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].OrderIndex < list[j].OrderIndex
	})
}

func sortMaterials(list []model.CourseMaterial) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].OrderIndex < list[j].OrderIndex
	})
}

// Normalize 加载后按 order_index 排序
func (w *WorkingSet) Normalize() {
	sortMaterials(w.Materials)
	for _, list := range w.Contents {
		sortContents(list)
	}
}
