package authoring

import (
	"errors"
	"testing"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
)

func contentsOf(ids ...string) []model.CourseContent {
	out := make([]model.CourseContent, len(ids))
	for i, id := range ids {
		out[i] = model.CourseContent{DocumentID: id, OrderIndex: i}
	}
	return out
}

func ids(list []model.CourseContent) string {
	s := ""
	for _, c := range list {
		s += c.DocumentID
	}
	return s
}

func TestReorderContents(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     string
		changed  string
	}{
		{"down", 0, 2, "BCA", "BCA"},
		{"up", 2, 1, "ACB", "CB"},
		{"same", 1, 1, "ABC", ""},
		{"first to second", 0, 1, "BAC", "BA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := contentsOf("A", "B", "C")
			moved, changes, err := ReorderContents(src, tt.from, tt.to)
			if err != nil {
				t.Fatalf("reorder: %v", err)
			}
			if got := ids(moved); got != tt.want {
				t.Fatalf("order: want=%q got=%q", tt.want, got)
			}
			for i, c := range moved {
				if c.OrderIndex != i {
					t.Fatalf("index of %s: want=%d got=%d", c.DocumentID, i, c.OrderIndex)
				}
			}
			changed := ""
			for _, ch := range changes {
				changed += ch.DocumentID
			}
			if changed != tt.changed {
				t.Fatalf("changes: want=%q got=%q", tt.changed, changed)
			}
			if ids(src) != "ABC" || src[0].OrderIndex != 0 {
				t.Fatalf("source mutated: %+v", src)
			}
		})
	}
}

func TestReorderOutOfRange(t *testing.T) {
	for _, c := range [][2]int{{-1, 0}, {0, 3}, {3, 0}} {
		if _, _, err := ReorderContents(contentsOf("A", "B", "C"), c[0], c[1]); !errors.Is(err, util.ErrInvalidOrder) {
			t.Fatalf("%v: want ErrInvalidOrder got=%v", c, err)
		}
	}
	if _, _, err := ReorderMaterials(nil, 0, 0); !errors.Is(err, util.ErrInvalidOrder) {
		t.Fatalf("empty: want ErrInvalidOrder got=%v", err)
	}
}

func TestReorderMaterials(t *testing.T) {
	list := []model.CourseMaterial{{DocumentID: "m1", OrderIndex: 0}, {DocumentID: "m2", OrderIndex: 1}}
	moved, changes, err := ReorderMaterials(list, 1, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if moved[0].DocumentID != "m2" || moved[0].OrderIndex != 0 || moved[1].OrderIndex != 1 {
		t.Fatalf("moved: got=%+v", moved)
	}
	if len(changes) != 2 {
		t.Fatalf("changes: want=2 got=%+v", changes)
	}
}

func TestMoveContent(t *testing.T) {
	src := contentsOf("A", "B", "C")
	dst := contentsOf("D", "E")

	newSrc, newDst, changes, err := MoveContent(src, dst, 0, 2, "m2")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if ids(newSrc) != "BC" || ids(newDst) != "DEA" {
		t.Fatalf("lists: src=%q dst=%q", ids(newSrc), ids(newDst))
	}
	if newDst[2].MaterialID != "m2" {
		t.Fatalf("moved material: want=m2 got=%q", newDst[2].MaterialID)
	}

	var movedChange *IndexChange
	for i := range changes {
		if changes[i].DocumentID == "A" {
			movedChange = &changes[i]
		} else if changes[i].MaterialID != "" {
			t.Fatalf("only the moved item changes material: %+v", changes[i])
		}
	}
	if movedChange == nil || movedChange.OrderIndex != 2 || movedChange.MaterialID != "m2" {
		t.Fatalf("moved change: got=%+v", movedChange)
	}
	if len(changes) != 3 {
		t.Fatalf("changes: want B C A got=%+v", changes)
	}
}

func TestMoveContentKeepsIndexWhenUnchanged(t *testing.T) {
	src := contentsOf("A", "B")
	dst := contentsOf("D")
	// A 在目标中的下标仍为 0，但章节变化，必须写回
	_, _, changes, err := MoveContent(src, dst, 0, 0, "m2")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	found := false
	for _, ch := range changes {
		if ch.DocumentID == "A" {
			found = ch.MaterialID == "m2" && ch.OrderIndex == 0
		}
	}
	if !found {
		t.Fatalf("moved item missing from changes: %+v", changes)
	}
}

func TestMoveContentOutOfRange(t *testing.T) {
	if _, _, _, err := MoveContent(contentsOf("A"), contentsOf("D"), 0, 2, "m2"); !errors.Is(err, util.ErrInvalidOrder) {
		t.Fatalf("want ErrInvalidOrder got=%v", err)
	}
}

func TestSnapshotRestoreContents(t *testing.T) {
	ws := NewWorkingSet(model.CourseBasics{DocumentID: "c1"})
	ws.Materials = []model.CourseMaterial{{DocumentID: "m1"}, {DocumentID: "m2"}}
	ws.Contents["m1"] = contentsOf("A", "B")

	snap := ws.SnapshotContents("m1")
	ws.Contents["m1"][0].Title = "edited"
	ws.Contents["m1"] = ws.Contents["m1"][:1]
	// 快照之后新增的章节和内容都不属于这次回滚
	ws.Materials = append(ws.Materials, model.CourseMaterial{DocumentID: "m3"})
	ws.Contents["m1"] = append(ws.Contents["m1"], model.CourseContent{DocumentID: "N", OrderIndex: 2})

	ws.Restore(snap)
	if len(ws.Materials) != 3 {
		t.Fatalf("materials: want=3 got=%+v", ws.Materials)
	}
	if ids(ws.Contents["m1"]) != "ABN" || ws.Contents["m1"][0].Title != "" {
		t.Fatalf("contents: want=ABN got=%+v", ws.Contents["m1"])
	}
}

func TestSnapshotRestoreMaterials(t *testing.T) {
	ws := NewWorkingSet(model.CourseBasics{DocumentID: "c1"})
	ws.Materials = []model.CourseMaterial{{DocumentID: "m1"}, {DocumentID: "m2"}}
	ws.Contents["m1"] = contentsOf("A")

	snap := ws.SnapshotMaterials()
	ws.Materials[0], ws.Materials[1] = ws.Materials[1], ws.Materials[0]
	ws.Materials = append(ws.Materials, model.CourseMaterial{DocumentID: "m3"})
	ws.Contents["m1"] = append(ws.Contents["m1"], model.CourseContent{DocumentID: "B"})

	ws.Restore(snap)
	got := ""
	for _, m := range ws.Materials {
		got += m.DocumentID
	}
	if got != "m1m2m3" {
		t.Fatalf("materials: want=m1m2m3 got=%q", got)
	}
	if ids(ws.Contents["m1"]) != "AB" {
		t.Fatalf("contents touched: got=%q", ids(ws.Contents["m1"]))
	}
}

func TestSnapshotRestoreMoveDoesNotDuplicate(t *testing.T) {
	ws := NewWorkingSet(model.CourseBasics{DocumentID: "c1"})
	ws.Contents["m1"] = contentsOf("A", "B")
	ws.Contents["m2"] = contentsOf("D")

	snap := ws.SnapshotContents("m1", "m2")
	src, dst, _, err := MoveContent(ws.Contents["m1"], ws.Contents["m2"], 0, 1, "m2")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	ws.Contents["m1"], ws.Contents["m2"] = src, dst

	ws.Restore(snap)
	if ids(ws.Contents["m1"]) != "AB" || ids(ws.Contents["m2"]) != "D" {
		t.Fatalf("restore: m1=%q m2=%q", ids(ws.Contents["m1"]), ids(ws.Contents["m2"]))
	}
}
