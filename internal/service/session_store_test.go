package service

import (
	"context"
	"errors"
	"testing"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
)

func TestMemorySessionStoreCopiesOnSave(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	ws := authoring.NewWorkingSet(model.CourseBasics{DocumentID: "course-1", Title: "Go"})
	ws.Materials = []model.CourseMaterial{{DocumentID: "m1", Title: "Basics"}}
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("save: %v", err)
	}
	ws.Materials[0].Title = "changed after save"

	loaded, err := store.Load(ctx, "course-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Materials[0].Title != "Basics" {
		t.Fatalf("title: want=%q got=%q", "Basics", loaded.Materials[0].Title)
	}
	if loaded.Contents == nil {
		t.Fatalf("contents: want non-nil map")
	}

	if err := store.Delete(ctx, "course-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "course-1"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("after delete: want ErrSessionNotFound got=%v", err)
	}
}

func TestMemoryMetadataCache(t *testing.T) {
	cache := NewMemoryMetadataCache()
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "https://example.com"); ok {
		t.Fatalf("empty cache: want miss")
	}
	cache.Set(ctx, "https://example.com", nil)
	if cache.Len() != 0 {
		t.Fatalf("nil set: want no entry")
	}

	meta := &URLMetadata{URL: "https://example.com", Title: "Example"}
	cache.Set(ctx, meta.URL, meta)
	meta.Title = "mutated"
	got, ok := cache.Get(ctx, "https://example.com")
	if !ok || got.Title != "Example" {
		t.Fatalf("get: want=%q got=%+v", "Example", got)
	}
}
