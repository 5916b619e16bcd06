package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"course_studio_backend/internal/config"
	"course_studio_backend/internal/repository"
	"course_studio_backend/pkg/cms"
)

var errInjected = errors.New("injected failure")

// flakyBackend 在内存后端之上按集合或 documentId 注入失败
type flakyBackend struct {
	*cms.MemoryBackend

	mu         sync.Mutex
	failCreate map[string]int
	failUpdate map[string]bool
	creates    map[string]int
	holds      map[string]*hold
}

// hold 让某次写入停在中途，直到测试放行
type hold struct {
	reached chan struct{}
	release chan struct{}
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{
		MemoryBackend: cms.NewMemoryBackend(),
		failCreate:    map[string]int{},
		failUpdate:    map[string]bool{},
		creates:       map[string]int{},
		holds:         map[string]*hold{},
	}
}

func (f *flakyBackend) Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*cms.Record, error) {
	f.mu.Lock()
	f.creates[collection]++
	if f.failCreate[collection] > 0 {
		f.failCreate[collection]--
		f.mu.Unlock()
		return nil, errInjected
	}
	f.mu.Unlock()
	rec, err := f.MemoryBackend.Create(ctx, collection, data, populate...)
	f.wait(collection)
	return rec, err
}

func (f *flakyBackend) Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*cms.Record, error) {
	f.wait(documentID)
	f.mu.Lock()
	fail := f.failUpdate[documentID]
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.MemoryBackend.Update(ctx, collection, documentID, data, populate...)
}

// holdNext 下一次针对 key（集合名或 documentId）的写入在 reached 关闭后阻塞，调用 release 放行
func (f *flakyBackend) holdNext(key string) (reached <-chan struct{}, release func()) {
	h := &hold{reached: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[key] = h
	f.mu.Unlock()
	return h.reached, func() { close(h.release) }
}

func (f *flakyBackend) wait(key string) {
	f.mu.Lock()
	h := f.holds[key]
	delete(f.holds, key)
	f.mu.Unlock()
	if h == nil {
		return
	}
	close(h.reached)
	<-h.release
}

func (f *flakyBackend) failNextCreate(collection string) {
	f.mu.Lock()
	f.failCreate[collection]++
	f.mu.Unlock()
}

func (f *flakyBackend) failUpdatesOf(documentID string) {
	f.mu.Lock()
	f.failUpdate[documentID] = true
	f.mu.Unlock()
}

func (f *flakyBackend) seed(t *testing.T, collection string, data map[string]any) *cms.Record {
	t.Helper()
	rec, err := f.MemoryBackend.Create(context.Background(), collection, data)
	if err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
	return rec
}

func (f *flakyBackend) count(t *testing.T, collection string) int {
	t.Helper()
	list, err := f.MemoryBackend.List(context.Background(), collection, cms.Query{})
	if err != nil {
		t.Fatalf("list %s: %v", collection, err)
	}
	return len(list)
}

func newGradingService(b *flakyBackend) *GradingService {
	resolver := repository.NewRelationResolver(b)
	profiles := repository.NewUserProfileRepository(b, nil)
	return NewGradingService(
		repository.NewQuizAttemptRepository(b, resolver, profiles, nil),
		repository.NewQuizAttemptAnswerRepository(b, resolver),
		repository.NewCertificateIssuanceRepository(b, resolver, profiles, nil),
		repository.NewCertificateProgramRepository(b, resolver),
		nil,
		config.IssuerConfig{Name: "Course Studio", SealPrefix: "CS"},
	)
}

func newAuthoringService(b *flakyBackend, checker CopyrightChecker) *AuthoringService {
	courses := repository.NewCourseRepository(b, repository.NewRelationResolver(b))
	return NewAuthoringService(courses, NewMemorySessionStore(), checker)
}
