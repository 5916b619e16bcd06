package repository

import (
	"context"
	"errors"
	"testing"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
)

func TestRelationResolverDocumentID(t *testing.T) {
	f := newFixture()
	u := f.user(t, "ann")
	ctx := context.Background()

	doc, err := f.resolver.DocumentID(ctx, cms.CollectionUsers, u.ID)
	if err != nil {
		t.Fatalf("DocumentID: %v", err)
	}
	if doc != u.DocumentID {
		t.Fatalf("documentId: want=%q got=%q", u.DocumentID, doc)
	}

	if _, err := f.resolver.DocumentID(ctx, cms.CollectionUsers, 99); !errors.Is(err, util.ErrRelationNotFound) {
		t.Fatalf("missing id: want ErrRelationNotFound got=%v", err)
	}
	if _, err := f.resolver.DocumentID(ctx, cms.CollectionUsers, 0); !errors.Is(err, util.ErrInvalidReference) {
		t.Fatalf("zero id: want ErrInvalidReference got=%v", err)
	}
}

func TestResolveRef(t *testing.T) {
	f := newFixture()
	u := f.user(t, "ann")
	ctx := context.Background()

	cases := []struct {
		name string
		ref  model.Ref
		want string
		err  error
	}{
		{"numeric", model.IDRef(u.ID), u.DocumentID, nil},
		{"document id passes through", model.Ref("abc123"), "abc123", nil},
		{"empty", model.Ref(""), "", util.ErrInvalidReference},
		{"unknown numeric", model.Ref("404"), "", util.ErrRelationNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveRef(ctx, f.resolver, cms.CollectionUsers, tc.ref)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("error: want=%v got=%v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRef: %v", err)
			}
			if got != tc.want {
				t.Fatalf("documentId: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestResolverPropagatesBackendError(t *testing.T) {
	r := NewRelationResolver(failingBackend{err: errBackendDown})
	if _, err := r.DocumentID(context.Background(), cms.CollectionUsers, 1); !errors.Is(err, errBackendDown) {
		t.Fatalf("error: want wraps backend error got=%v", err)
	}
}
