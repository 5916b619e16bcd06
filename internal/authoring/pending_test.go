package authoring

import (
	"testing"

	"course_studio_backend/internal/model"
)

func TestPendingReduce(t *testing.T) {
	var log PendingLog
	draft := model.CourseContent{Title: "Notes", OrderIndex: 2}
	log.Append(PendingEvent{LocalID: "a", MaterialID: "m1", Status: StatusSaving, Content: draft})
	log.Append(PendingEvent{LocalID: "b", MaterialID: "m1", Status: StatusSaving, Content: draft})
	log.Append(PendingEvent{LocalID: "a", Status: StatusError, Message: "timeout", Content: draft})
	log.Append(PendingEvent{LocalID: "b", ServerID: "doc-b", Status: StatusSaved, Content: draft})

	items := log.Reduce()
	if len(items) != 1 {
		t.Fatalf("pending: want=1 got=%d", len(items))
	}
	a := items[0]
	if a.LocalID != "a" || a.Status != StatusError || a.Message != "timeout" {
		t.Fatalf("item a: got=%+v", a)
	}
	if a.MaterialID != "m1" || a.Attempts != 1 {
		t.Fatalf("item a material/attempts: got=%q %d", a.MaterialID, a.Attempts)
	}

	b, ok := log.Lookup("b")
	if !ok || b.Status != StatusSaved || b.ServerID != "doc-b" {
		t.Fatalf("lookup b: got=%+v ok=%v", b, ok)
	}
	if _, ok := log.Lookup("zzz"); ok {
		t.Fatalf("lookup unknown: want miss")
	}
	for _, ev := range log.Events {
		if ev.At.IsZero() {
			t.Fatalf("event time not stamped: %+v", ev)
		}
	}
}

func TestPendingRetryCountsAttempts(t *testing.T) {
	var log PendingLog
	for i := 0; i < 3; i++ {
		log.Append(PendingEvent{LocalID: "a", MaterialID: "m1", Status: StatusSaving})
		log.Append(PendingEvent{LocalID: "a", Status: StatusError, Message: "boom"})
	}
	it, _ := log.Lookup("a")
	if it.Attempts != 3 || it.Status != StatusError {
		t.Fatalf("retries: got attempts=%d status=%q", it.Attempts, it.Status)
	}
	if it.Message != "boom" {
		t.Fatalf("message: want=%q got=%q", "boom", it.Message)
	}
}

func TestPendingCompact(t *testing.T) {
	var log PendingLog
	log.Append(PendingEvent{LocalID: "a", Status: StatusSaving})
	log.Append(PendingEvent{LocalID: "b", Status: StatusSaving})
	log.Append(PendingEvent{LocalID: "a", ServerID: "doc-a", Status: StatusSaved})
	log.Compact()

	if len(log.Events) != 1 || log.Events[0].LocalID != "b" {
		t.Fatalf("compact: got=%+v", log.Events)
	}
	if _, ok := log.Lookup("a"); ok {
		t.Fatalf("saved history should be dropped")
	}
}

func TestWorkingSetConfirmAndNextIndex(t *testing.T) {
	ws := NewWorkingSet(model.CourseBasics{DocumentID: "c1"})
	ws.Materials = []model.CourseMaterial{{DocumentID: "m1"}}
	ws.Contents["m1"] = []model.CourseContent{
		{DocumentID: "x", MaterialID: "m1", OrderIndex: 0},
		{DocumentID: "y", MaterialID: "m1", OrderIndex: 1},
	}
	ws.Pending.Append(PendingEvent{LocalID: "l1", MaterialID: "m1", Status: StatusSaving, Content: model.CourseContent{OrderIndex: 2}})

	if got := ws.NextContentIndex("m1"); got != 3 {
		t.Fatalf("next index: want=3 got=%d", got)
	}

	ws.Confirm("l1", model.CourseContent{DocumentID: "z", MaterialID: "m1", OrderIndex: 2})
	if len(ws.Pending.Reduce()) != 0 {
		t.Fatalf("pending after confirm: got=%+v", ws.Pending.Reduce())
	}
	list := ws.Contents["m1"]
	if len(list) != 3 || list[2].DocumentID != "z" {
		t.Fatalf("contents: got=%+v", list)
	}
	if mid, idx, ok := ws.FindContent("z"); !ok || mid != "m1" || idx != 2 {
		t.Fatalf("find: got=%q %d %v", mid, idx, ok)
	}
	if got := ws.NextContentIndex("m1"); got != 3 {
		t.Fatalf("next index after confirm: want=3 got=%d", got)
	}
}

func TestConfirmSkipsReloadedContent(t *testing.T) {
	ws := NewWorkingSet(model.CourseBasics{DocumentID: "c1"})
	ws.Materials = []model.CourseMaterial{{DocumentID: "m1"}}
	ws.Pending.Append(PendingEvent{LocalID: "l1", MaterialID: "m1", Status: StatusSaving, Content: model.CourseContent{OrderIndex: 1}})
	// 重新加载时服务端已经有这条记录
	ws.Contents["m1"] = []model.CourseContent{
		{DocumentID: "x", MaterialID: "m1", OrderIndex: 0},
		{DocumentID: "e", MaterialID: "m1", OrderIndex: 1},
	}

	ws.Confirm("l1", model.CourseContent{DocumentID: "e", MaterialID: "m1", OrderIndex: 1})
	if got := ids(ws.Contents["m1"]); got != "xe" {
		t.Fatalf("contents: want=xe got=%q", got)
	}
	if it, _ := ws.Pending.Lookup("l1"); it.Status != StatusSaved || it.ServerID != "e" {
		t.Fatalf("pending: got=%+v", it)
	}
}
