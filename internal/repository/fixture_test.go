package repository

import (
	"context"
	"errors"
	"testing"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"
)

type prefixMedia string

func (p prefixMedia) ResolveMediaURL(raw string) string { return string(p) + raw }

// failingBackend 所有调用都返回同一个错误
type failingBackend struct{ err error }

func (f failingBackend) List(ctx context.Context, collection string, q cms.Query) ([]cms.Record, error) {
	return nil, f.err
}

func (f failingBackend) Get(ctx context.Context, collection, documentID string, populate ...string) (*cms.Record, error) {
	return nil, f.err
}

func (f failingBackend) Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*cms.Record, error) {
	return nil, f.err
}

func (f failingBackend) Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*cms.Record, error) {
	return nil, f.err
}

func (f failingBackend) Delete(ctx context.Context, collection, documentID string) error {
	return f.err
}

var errBackendDown = errors.New("backend down")

type stubProfiles struct {
	profiles []model.UserProfile
	calls    int
	asked    []model.UserIdentifier
}

func (s *stubProfiles) Resolve(ctx context.Context, ids []model.UserIdentifier) []model.UserProfile {
	s.calls++
	s.asked = append(s.asked, ids...)
	return s.profiles
}

type fixture struct {
	backend  *cms.MemoryBackend
	resolver *CMSRelationResolver
}

func newFixture() *fixture {
	b := cms.NewMemoryBackend()
	return &fixture{backend: b, resolver: NewRelationResolver(b)}
}

func (f *fixture) create(t *testing.T, collection string, data map[string]any) *cms.Record {
	t.Helper()
	rec, err := f.backend.Create(context.Background(), collection, data)
	if err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
	return rec
}

func (f *fixture) user(t *testing.T, username string) *cms.Record {
	return f.create(t, cms.CollectionUsers, map[string]any{"username": username, "email": username + "@example.com"})
}

func (f *fixture) program(t *testing.T, passing any) *cms.Record {
	data := map[string]any{"name": "Go Basics"}
	if passing != nil {
		data["passing_score"] = passing
	}
	return f.create(t, cms.CollectionCertificatePrograms, data)
}

func (f *fixture) attempts(profiles UserProfileResolver) *QuizAttemptRepository {
	return NewQuizAttemptRepository(f.backend, f.resolver, profiles, nil)
}

func (f *fixture) issuances(profiles UserProfileResolver) *CertificateIssuanceRepository {
	return NewCertificateIssuanceRepository(f.backend, f.resolver, profiles, nil)
}
