package controller

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"

	"github.com/gin-gonic/gin"
)

type authoringEnv struct {
	ctrl      *AuthoringController
	ann, bob  *cms.Record
	owned     *cms.Record
	unclaimed *cms.Record
}

func newAuthoringEnv(t *testing.T) *authoringEnv {
	t.Helper()
	b := cms.NewMemoryBackend()
	ctx := context.Background()
	seed := func(coll string, data map[string]any) *cms.Record {
		rec, err := b.Create(ctx, coll, data)
		if err != nil {
			t.Fatalf("seed %s: %v", coll, err)
		}
		return rec
	}
	env := &authoringEnv{}
	env.ann = seed(cms.CollectionUsers, map[string]any{"username": "ann"})
	env.bob = seed(cms.CollectionUsers, map[string]any{"username": "bob"})
	env.owned = seed(cms.CollectionCourses, map[string]any{
		"title": "Go in Practice", "is_free": true, "instructor": cms.Connect(env.ann.DocumentID),
	})
	env.unclaimed = seed(cms.CollectionCourses, map[string]any{"title": "Orphan", "is_free": true})

	courses := repository.NewCourseRepository(b, repository.NewRelationResolver(b))
	env.ctrl = NewAuthoringController(service.NewAuthoringService(courses, nil, nil))
	return env
}

func (e *authoringEnv) router(claims *util.Claims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", claims)
		c.Next()
	})
	course := r.Group("/courses/:course", e.ctrl.RequireCourseOwner)
	course.POST("/open", e.ctrl.Open)
	course.POST("/publish", e.ctrl.Publish)
	return r
}

func TestAuthoringRoutesRequireCourseOwner(t *testing.T) {
	e := newAuthoringEnv(t)
	ann := &util.Claims{UserID: e.ann.ID, Role: model.RoleAuthor}
	bob := &util.Claims{UserID: e.bob.ID, Role: model.RoleAuthor}
	admin := &util.Claims{UserID: 1000, Role: model.RoleAdmin}

	tests := []struct {
		name   string
		claims *util.Claims
		course string
		path   string
		body   any
		want   int
	}{
		{"owner opens", ann, e.owned.DocumentID, "/open", nil, http.StatusOK},
		{"owner by numeric id", ann, fmt.Sprint(e.owned.ID), "/open", nil, http.StatusOK},
		{"other author opens", bob, e.owned.DocumentID, "/open", nil, http.StatusForbidden},
		{"other author publishes", bob, e.owned.DocumentID, "/publish", map[string]any{"status": "published"}, http.StatusForbidden},
		{"admin opens", admin, e.owned.DocumentID, "/open", nil, http.StatusOK},
		{"author on unclaimed course", ann, e.unclaimed.DocumentID, "/open", nil, http.StatusForbidden},
		{"admin on unclaimed course", admin, e.unclaimed.DocumentID, "/open", nil, http.StatusOK},
		{"missing course", ann, "missing", "/open", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, e.router(tt.claims), http.MethodPost, "/courses/"+tt.course+tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status: want=%d got=%d body=%s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	// 被拒绝的发布请求不能改动课程状态
	w, env := do(t, e.router(ann), http.MethodPost, "/courses/"+e.owned.DocumentID+"/open", nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"status":"draft"`) {
		t.Fatalf("course status changed: status=%d data=%s", w.Code, env.Data)
	}
}
