package service

import (
	"context"
	"errors"
	"testing"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
)

type courseSeed struct {
	course   *cms.Record
	m1, m2   *cms.Record
	contents map[string]*cms.Record
}

// seedCourse 付费课程：m1 下 A B C，m2 下 D
func seedCourse(t *testing.T, b *flakyBackend) courseSeed {
	t.Helper()
	s := courseSeed{contents: map[string]*cms.Record{}}
	s.course = b.seed(t, cms.CollectionCourses, map[string]any{
		"title":   "Go in Practice",
		"price":   99,
		"is_free": false,
		"status":  "draft",
	})
	s.m1 = b.seed(t, cms.CollectionCourseMaterials, map[string]any{
		"course": cms.Connect(s.course.DocumentID), "title": "Basics", "order_index": 0,
	})
	s.m2 = b.seed(t, cms.CollectionCourseMaterials, map[string]any{
		"course": cms.Connect(s.course.DocumentID), "title": "Advanced", "order_index": 1,
	})
	add := func(name string, material *cms.Record, index int) {
		s.contents[name] = b.seed(t, cms.CollectionCourseContents, map[string]any{
			"material":               cms.Connect(material.DocumentID),
			"type":                   "video",
			"title":                  name,
			"url":                    "https://cdn.example.com/" + name + ".mp4",
			"order_index":            index,
			"copyright_check_status": "passed",
		})
	}
	add("A", s.m1, 0)
	add("B", s.m1, 1)
	add("C", s.m1, 2)
	add("D", s.m2, 0)
	return s
}

func titles(list []model.CourseContent) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Title)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func openCourse(t *testing.T, svc *AuthoringService, s courseSeed) *authoring.WorkingSet {
	t.Helper()
	ws, err := svc.Open(context.Background(), model.IDRef(s.course.ID))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return ws
}

func TestOpenLoadsWorkingSet(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)

	ws := openCourse(t, svc, s)
	if ws.CourseID != s.course.DocumentID {
		t.Fatalf("course: want=%q got=%q", s.course.DocumentID, ws.CourseID)
	}
	if len(ws.Materials) != 2 || ws.Materials[0].Title != "Basics" {
		t.Fatalf("materials: got=%+v", ws.Materials)
	}
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("m1 contents: want=[A B C] got=%v", got)
	}
	if got := titles(ws.Contents[s.m2.DocumentID]); !equalStrings(got, []string{"D"}) {
		t.Fatalf("m2 contents: want=[D] got=%v", got)
	}
	if !ws.Basics.IsPaid() {
		t.Fatalf("basics: want paid course got=%+v", ws.Basics)
	}
}

func TestSessionRequiresOpen(t *testing.T) {
	svc := newAuthoringService(newFlakyBackend(), nil)
	_, err := svc.AddMaterial(context.Background(), "missing", model.CourseMaterial{Title: "x"})
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound got=%v", err)
	}
}

func TestAddMaterialAppends(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)

	m, err := svc.AddMaterial(context.Background(), s.course.DocumentID, model.CourseMaterial{Title: "Extras"})
	if err != nil {
		t.Fatalf("add material: %v", err)
	}
	if m.OrderIndex != 2 {
		t.Fatalf("order: want=2 got=%d", m.OrderIndex)
	}
	ws, _ := svc.Session(context.Background(), s.course.DocumentID)
	if len(ws.Materials) != 3 || ws.Materials[2].DocumentID != m.DocumentID {
		t.Fatalf("session materials: got=%+v", ws.Materials)
	}
}

func TestAddContentRejectsInvalidDraft(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	_, err := svc.AddContent(ctx, s.course.DocumentID, s.m1.DocumentID, model.CourseContent{Type: model.ContentVideo, Title: "no url"})
	if !errors.Is(err, authoring.ErrInvalidContent) {
		t.Fatalf("want ErrInvalidContent got=%v", err)
	}
	_, err = svc.AddContent(ctx, s.course.DocumentID, "nope", model.CourseContent{Type: model.ContentArticle, Title: "t", Article: "body"})
	if !errors.Is(err, util.ErrMaterialNotFound) {
		t.Fatalf("want ErrMaterialNotFound got=%v", err)
	}
}

func TestAddContentRetryCreatesOneRecord(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()
	before := b.count(t, cms.CollectionCourseContents)

	b.failNextCreate(cms.CollectionCourseContents)
	item, err := svc.AddContent(ctx, s.course.DocumentID, s.m1.DocumentID, model.CourseContent{
		Type: model.ContentArticle, Title: "Notes", Article: "read me",
	})
	if err != nil {
		t.Fatalf("add content: %v", err)
	}
	if item.Status != authoring.StatusError || item.ServerID != "" {
		t.Fatalf("first save: want error without server id got=%+v", item)
	}
	if item.Content.OrderIndex != 3 {
		t.Fatalf("order: want=3 got=%d", item.Content.OrderIndex)
	}
	if n := b.count(t, cms.CollectionCourseContents); n != before {
		t.Fatalf("records after failure: want=%d got=%d", before, n)
	}

	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if pending := ws.Pending.Reduce(); len(pending) != 1 || pending[0].LocalID != item.LocalID {
		t.Fatalf("pending: want [%s] got=%+v", item.LocalID, pending)
	}

	retried, err := svc.RetryContent(ctx, s.course.DocumentID, item.LocalID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != authoring.StatusSaved || retried.ServerID == "" {
		t.Fatalf("retry: want saved with server id got=%+v", retried)
	}
	if retried.Attempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", retried.Attempts)
	}

	again, err := svc.RetryContent(ctx, s.course.DocumentID, item.LocalID)
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if again.ServerID != retried.ServerID {
		t.Fatalf("second retry server id: want=%q got=%q", retried.ServerID, again.ServerID)
	}
	if n := b.count(t, cms.CollectionCourseContents); n != before+1 {
		t.Fatalf("records: want=%d got=%d", before+1, n)
	}

	ws, _ = svc.Session(ctx, s.course.DocumentID)
	if len(ws.Pending.Reduce()) != 0 {
		t.Fatalf("pending after save: got=%+v", ws.Pending.Reduce())
	}
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C", "Notes"}) {
		t.Fatalf("contents: want=[A B C Notes] got=%v", got)
	}
}

func TestRetryUnknownLocalID(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)

	_, err := svc.RetryContent(context.Background(), s.course.DocumentID, "local-missing")
	if !errors.Is(err, util.ErrPendingNotFound) {
		t.Fatalf("want ErrPendingNotFound got=%v", err)
	}
}

func TestReorderContentsPersists(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	list, err := svc.ReorderContents(ctx, s.course.DocumentID, s.m1.DocumentID, 2, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := titles(list); !equalStrings(got, []string{"C", "A", "B"}) {
		t.Fatalf("reordered: want=[C A B] got=%v", got)
	}

	reopened := openCourse(t, svc, s)
	if got := titles(reopened.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"C", "A", "B"}) {
		t.Fatalf("reloaded: want=[C A B] got=%v", got)
	}
}

func TestReorderContentsRollsBack(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	b.failUpdatesOf(s.contents["B"].DocumentID)
	restored, err := svc.ReorderContents(ctx, s.course.DocumentID, s.m1.DocumentID, 2, 1)
	if err == nil {
		t.Fatalf("reorder: want error")
	}
	if got := titles(restored); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("restored: want=[A B C] got=%v", got)
	}
	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("session: want=[A B C] got=%v", got)
	}
}

func TestReorderOutOfRange(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)

	_, err := svc.ReorderMaterials(context.Background(), s.course.DocumentID, 0, 5)
	if !errors.Is(err, util.ErrInvalidOrder) {
		t.Fatalf("want ErrInvalidOrder got=%v", err)
	}
}

func TestReorderMaterialsRollsBack(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	b.failUpdatesOf(s.m1.DocumentID)
	restored, err := svc.ReorderMaterials(ctx, s.course.DocumentID, 1, 0)
	if err == nil {
		t.Fatalf("reorder: want error")
	}
	if len(restored) != 2 || restored[0].DocumentID != s.m1.DocumentID {
		t.Fatalf("restored: got=%+v", restored)
	}
	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if ws.Materials[0].DocumentID != s.m1.DocumentID || ws.Materials[1].DocumentID != s.m2.DocumentID {
		t.Fatalf("session materials: got=%+v", ws.Materials)
	}
}

func TestMoveContentAcrossMaterials(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	ws, err := svc.MoveContent(ctx, s.course.DocumentID, s.contents["A"].DocumentID, s.m2.DocumentID, 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"B", "C"}) {
		t.Fatalf("source: want=[B C] got=%v", got)
	}
	if got := titles(ws.Contents[s.m2.DocumentID]); !equalStrings(got, []string{"D", "A"}) {
		t.Fatalf("target: want=[D A] got=%v", got)
	}

	reopened := openCourse(t, svc, s)
	if got := titles(reopened.Contents[s.m2.DocumentID]); !equalStrings(got, []string{"D", "A"}) {
		t.Fatalf("reloaded target: want=[D A] got=%v", got)
	}
}

func TestMoveContentRollsBack(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	b.failUpdatesOf(s.contents["A"].DocumentID)
	if _, err := svc.MoveContent(ctx, s.course.DocumentID, s.contents["A"].DocumentID, s.m2.DocumentID, 0); err == nil {
		t.Fatalf("move: want error")
	}
	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("source: want=[A B C] got=%v", got)
	}
	if got := titles(ws.Contents[s.m2.DocumentID]); !equalStrings(got, []string{"D"}) {
		t.Fatalf("target: want=[D] got=%v", got)
	}
}

func TestAddContentConfirmAfterReopen(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	reached, release := b.holdNext(cms.CollectionCourseContents)
	done := make(chan authoring.PendingItem, 1)
	go func() {
		item, err := svc.AddContent(ctx, s.course.DocumentID, s.m1.DocumentID, model.CourseContent{
			Type: model.ContentArticle, Title: "E", Article: "body",
		})
		if err != nil {
			t.Errorf("add content: %v", err)
		}
		done <- item
	}()

	<-reached
	// 记录已经写入后端，重新加载会直接带上它
	reopened := openCourse(t, svc, s)
	if got := titles(reopened.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C", "E"}) {
		t.Fatalf("reopened: want=[A B C E] got=%v", got)
	}
	release()
	item := <-done
	if item.Status != authoring.StatusSaved {
		t.Fatalf("item: want saved got=%+v", item)
	}

	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C", "E"}) {
		t.Fatalf("session: want=[A B C E] got=%v", got)
	}
	if n := b.count(t, cms.CollectionCourseContents); n != 5 {
		t.Fatalf("records: want=5 got=%d", n)
	}
	if len(ws.Pending.Reduce()) != 0 {
		t.Fatalf("pending: got=%+v", ws.Pending.Reduce())
	}
}

func TestReorderRollbackKeepsNewMaterial(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()

	bID := s.contents["B"].DocumentID
	reached, release := b.holdNext(bID)
	b.failUpdatesOf(bID)
	errc := make(chan error, 1)
	go func() {
		_, err := svc.ReorderContents(ctx, s.course.DocumentID, s.m1.DocumentID, 2, 1)
		errc <- err
	}()

	<-reached
	if _, err := svc.AddMaterial(ctx, s.course.DocumentID, model.CourseMaterial{Title: "Extras"}); err != nil {
		t.Fatalf("add material: %v", err)
	}
	release()
	if err := <-errc; err == nil {
		t.Fatalf("reorder: want error")
	}

	ws, _ := svc.Session(ctx, s.course.DocumentID)
	if n := b.count(t, cms.CollectionCourseMaterials); len(ws.Materials) != n || n != 3 {
		t.Fatalf("materials: session=%d server=%d", len(ws.Materials), n)
	}
	if got := titles(ws.Contents[s.m1.DocumentID]); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("contents: want=[A B C] got=%v", got)
	}
}

type stubChecker struct {
	check model.CopyrightCheck
	err   error
}

func (s stubChecker) Check(ctx context.Context, content model.CourseContent) (model.CopyrightCheck, error) {
	return s.check, s.err
}

func TestPublishBlockedByCopyright(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	ctx := context.Background()
	pending := s.contents["B"].DocumentID
	if _, err := b.MemoryBackend.Update(ctx, cms.CollectionCourseContents, pending, map[string]any{"copyright_check_status": "pending"}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	svc := newAuthoringService(b, stubChecker{check: model.CopyrightCheck{Status: model.CopyrightPassed}})
	openCourse(t, svc, s)

	result, err := svc.Publish(ctx, s.course.DocumentID, model.CoursePublished)
	if !errors.Is(err, util.ErrPublishBlocked) {
		t.Fatalf("want ErrPublishBlocked got=%v", err)
	}
	if result.Allowed || len(result.Issues) != 1 || result.Issues[0].ContentID != pending {
		t.Fatalf("gate: got=%+v", result)
	}
	if result.Issues[0].Status != model.CopyrightPending {
		t.Fatalf("issue status: want=%q got=%q", model.CopyrightPending, result.Issues[0].Status)
	}

	checked, err := svc.RequestCopyrightCheck(ctx, s.course.DocumentID, pending)
	if err != nil {
		t.Fatalf("copyright check: %v", err)
	}
	if checked.Copyright.Status != model.CopyrightPassed {
		t.Fatalf("check status: want=passed got=%q", checked.Copyright.Status)
	}

	result, err = svc.Publish(ctx, s.course.DocumentID, model.CoursePublished)
	if err != nil || !result.Allowed {
		t.Fatalf("publish after check: allowed=%v err=%v", result.Allowed, err)
	}
	rec, _ := b.Get(ctx, cms.CollectionCourses, s.course.DocumentID)
	if rec.String("status") != "published" {
		t.Fatalf("course status: want=published got=%q", rec.String("status"))
	}
}

func TestPublishFreeCourseSkipsGate(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	ctx := context.Background()
	if _, err := b.MemoryBackend.Update(ctx, cms.CollectionCourses, s.course.DocumentID, map[string]any{"is_free": true}); err != nil {
		t.Fatalf("seed free: %v", err)
	}
	if _, err := b.MemoryBackend.Update(ctx, cms.CollectionCourseContents, s.contents["A"].DocumentID, map[string]any{"copyright_check_status": "failed"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	svc := newAuthoringService(b, nil)

	result, err := svc.Publish(ctx, s.course.DocumentID, model.CoursePublished)
	if err != nil || !result.Allowed {
		t.Fatalf("publish free: allowed=%v err=%v", result.Allowed, err)
	}
}

func TestCopyrightCheckDisabledRestoresStatus(t *testing.T) {
	b := newFlakyBackend()
	s := seedCourse(t, b)
	svc := newAuthoringService(b, nil)
	openCourse(t, svc, s)
	ctx := context.Background()
	target := s.contents["C"].DocumentID

	_, err := svc.RequestCopyrightCheck(ctx, s.course.DocumentID, target)
	if !errors.Is(err, util.ErrCopyrightDisabled) {
		t.Fatalf("want ErrCopyrightDisabled got=%v", err)
	}
	rec, _ := b.Get(ctx, cms.CollectionCourseContents, target)
	if rec.String("copyright_check_status") != "passed" {
		t.Fatalf("backend status: want=passed got=%q", rec.String("copyright_check_status"))
	}
	ws, _ := svc.Session(ctx, s.course.DocumentID)
	mid, idx, _ := ws.FindContent(target)
	if got := ws.Contents[mid][idx].Copyright.Status; got != model.CopyrightPassed {
		t.Fatalf("session status: want=passed got=%q", got)
	}
}
