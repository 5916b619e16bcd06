package authoring

import (
	"fmt"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
)

// IndexChange 需要写回后端的一条排序变更
type IndexChange struct {
	DocumentID string `json:"documentId"`
	OrderIndex int    `json:"orderIndex"`
	// 跨章节移动时为目标章节
	MaterialID string `json:"materialId,omitempty"`
}

func move[T any](list []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return nil, fmt.Errorf("move %d -> %d of %d: %w", from, to, len(list), util.ErrInvalidOrder)
	}
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	item := list[from]
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out, nil
}

// ReorderMaterials 移动后重新分配连续下标，只返回发生变化的条目
func ReorderMaterials(list []model.CourseMaterial, from, to int) ([]model.CourseMaterial, []IndexChange, error) {
	moved, err := move(list, from, to)
	if err != nil {
		return nil, nil, err
	}
	var changes []IndexChange
	for i := range moved {
		if moved[i].OrderIndex != i {
			moved[i].OrderIndex = i
			changes = append(changes, IndexChange{DocumentID: moved[i].DocumentID, OrderIndex: i})
		}
	}
	return moved, changes, nil
}

func ReorderContents(list []model.CourseContent, from, to int) ([]model.CourseContent, []IndexChange, error) {
	moved, err := move(list, from, to)
	if err != nil {
		return nil, nil, err
	}
	return moved, reindex(moved, ""), nil
}

func reindex(list []model.CourseContent, movedID string) []IndexChange {
	var changes []IndexChange
	for i := range list {
		if list[i].OrderIndex != i || list[i].DocumentID == movedID {
			list[i].OrderIndex = i
			changes = append(changes, IndexChange{DocumentID: list[i].DocumentID, OrderIndex: i})
		}
	}
	return changes
}

// MoveContent 把内容从 src 的 from 位置移到 dst 的 to 位置，两边都重新编号。
// 被移动的内容一定出现在变更中，并带上目标章节。
func MoveContent(src, dst []model.CourseContent, from, to int, dstMaterial string) ([]model.CourseContent, []model.CourseContent, []IndexChange, error) {
	if from < 0 || from >= len(src) || to < 0 || to > len(dst) {
		return nil, nil, nil, fmt.Errorf("move content %d -> %d: %w", from, to, util.ErrInvalidOrder)
	}
	item := src[from]
	item.MaterialID = dstMaterial

	newSrc := make([]model.CourseContent, 0, len(src)-1)
	newSrc = append(newSrc, src[:from]...)
	newSrc = append(newSrc, src[from+1:]...)

	newDst := make([]model.CourseContent, 0, len(dst)+1)
	newDst = append(newDst, dst[:to]...)
	newDst = append(newDst, item)
	newDst = append(newDst, dst[to:]...)

	changes := reindex(newSrc, "")
	for _, c := range reindex(newDst, item.DocumentID) {
		if c.DocumentID == item.DocumentID {
			c.MaterialID = dstMaterial
		}
		changes = append(changes, c)
	}
	return newSrc, newDst, changes, nil
}

// Snapshot 乐观修改前受影响列表的副本
type Snapshot struct {
	Materials []model.CourseMaterial
	Contents  map[string][]model.CourseContent

	withMaterials bool
}

// SnapshotMaterials 只保存章节列表
func (w *WorkingSet) SnapshotMaterials() Snapshot {
	return Snapshot{
		Materials:     append([]model.CourseMaterial{}, w.Materials...),
		Contents:      map[string][]model.CourseContent{},
		withMaterials: true,
	}
}

// SnapshotContents 只保存给定章节下的内容列表
func (w *WorkingSet) SnapshotContents(materialIDs ...string) Snapshot {
	s := Snapshot{Contents: map[string][]model.CourseContent{}}
	for _, id := range materialIDs {
		s.Contents[id] = append([]model.CourseContent{}, w.Contents[id]...)
	}
	return s
}

// Restore 还原快照中的列表；快照之后新增的条目保留在列表末尾
func (w *WorkingSet) Restore(s Snapshot) {
	if s.withMaterials {
		known := make(map[string]bool, len(s.Materials))
		for _, m := range s.Materials {
			known[m.DocumentID] = true
		}
		restored := append([]model.CourseMaterial{}, s.Materials...)
		for _, m := range w.Materials {
			if !known[m.DocumentID] {
				restored = append(restored, m)
			}
		}
		w.Materials = restored
	}
	if len(s.Contents) == 0 {
		return
	}
	if w.Contents == nil {
		w.Contents = map[string][]model.CourseContent{}
	}
	known := map[string]bool{}
	for _, list := range s.Contents {
		for _, c := range list {
			known[c.DocumentID] = true
		}
	}
	for id, list := range s.Contents {
		restored := append([]model.CourseContent{}, list...)
		for _, c := range w.Contents[id] {
			if !known[c.DocumentID] {
				restored = append(restored, c)
			}
		}
		w.Contents[id] = restored
	}
}
