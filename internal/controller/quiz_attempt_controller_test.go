package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/config"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type attemptEnv struct {
	backend  *cms.MemoryBackend
	ctrl     *QuizAttemptController
	ann, bob *cms.Record
	program  *cms.Record
}

func newAttemptEnv(t *testing.T) *attemptEnv {
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
	env := &attemptEnv{backend: b}
	env.ann = seed(cms.CollectionUsers, map[string]any{"username": "ann"})
	env.bob = seed(cms.CollectionUsers, map[string]any{"username": "bob"})
	env.program = seed(cms.CollectionCertificatePrograms, map[string]any{"name": "Go", "passing_score": 60})

	resolver := repository.NewRelationResolver(b)
	profiles := repository.NewUserProfileRepository(b, nil)
	attempts := repository.NewQuizAttemptRepository(b, resolver, profiles, nil)
	grading := service.NewGradingService(
		attempts,
		repository.NewQuizAttemptAnswerRepository(b, resolver),
		repository.NewCertificateIssuanceRepository(b, resolver, profiles, nil),
		repository.NewCertificateProgramRepository(b, resolver),
		nil,
		config.IssuerConfig{Name: "Course Studio"},
	)
	env.ctrl = NewQuizAttemptController(attempts, grading)
	return env
}

func (e *attemptEnv) router(claims *util.Claims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", claims)
		c.Next()
	})
	r.POST("/quiz-attempts/submit", e.ctrl.Submit)
	r.POST("/quiz-attempts", e.ctrl.Create)
	r.GET("/quiz-attempts", e.ctrl.List)
	r.GET("/quiz-attempts/:id", e.ctrl.Get)
	return r
}

func do(t *testing.T, r *gin.Engine, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, env
}

func TestSubmitUsesCallerIdentity(t *testing.T) {
	e := newAttemptEnv(t)
	r := e.router(&util.Claims{UserID: e.ann.ID, Role: model.RoleLearner})

	w, env := do(t, r, http.MethodPost, "/quiz-attempts/submit", map[string]any{
		"userId":               e.bob.DocumentID,
		"certificateProgramId": e.program.DocumentID,
		"maxScore":             100,
		"answers":              []map[string]any{{"questionId": 1, "isCorrect": true}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	var res service.SubmissionResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Attempt.User == nil || res.Attempt.User.ID != e.ann.ID {
		t.Fatalf("attempt user: want=%d got=%+v", e.ann.ID, res.Attempt.User)
	}
	if !res.Passed || res.Issuance == nil {
		t.Fatalf("want certificate, got passed=%v", res.Passed)
	}
}

func TestSubmitReportsFailedStep(t *testing.T) {
	e := newAttemptEnv(t)
	r := e.router(&util.Claims{UserID: e.ann.ID, Role: model.RoleLearner})

	w, env := do(t, r, http.MethodPost, "/quiz-attempts/submit", map[string]any{
		"certificateProgramId": "999",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: want=502 got=%d", w.Code)
	}
	var data struct {
		Step string `json:"step"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Step != service.StepCreateAttempt {
		t.Fatalf("step: want=%q got=%+v err=%v", service.StepCreateAttempt, data, err)
	}
}

func TestAttemptOwnership(t *testing.T) {
	e := newAttemptEnv(t)
	admin := e.router(&util.Claims{UserID: 1000, Role: model.RoleAdmin})

	create := func(user *cms.Record) string {
		w, env := do(t, admin, http.MethodPost, "/quiz-attempts", map[string]any{
			"userId":               user.DocumentID,
			"certificateProgramId": e.program.DocumentID,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create: want=201 got=%d body=%s", w.Code, w.Body.String())
		}
		var a model.QuizAttempt
		json.Unmarshal(env.Data, &a)
		return a.DocumentID
	}
	annAttempt := create(e.ann)
	bobAttempt := create(e.bob)

	ann := e.router(&util.Claims{UserID: e.ann.ID, Role: model.RoleLearner})
	if w, _ := do(t, ann, http.MethodGet, "/quiz-attempts/"+annAttempt, nil); w.Code != http.StatusOK {
		t.Fatalf("own attempt: want=200 got=%d", w.Code)
	}
	if w, _ := do(t, ann, http.MethodGet, "/quiz-attempts/"+bobAttempt, nil); w.Code != http.StatusForbidden {
		t.Fatalf("other attempt: want=403 got=%d", w.Code)
	}
	if w, _ := do(t, ann, http.MethodGet, "/quiz-attempts/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing attempt: want=404 got=%d", w.Code)
	}

	_, env := do(t, ann, http.MethodGet, fmt.Sprintf("/quiz-attempts?user=%d", e.bob.ID), nil)
	var mine []model.QuizAttempt
	json.Unmarshal(env.Data, &mine)
	if len(mine) != 1 || mine[0].DocumentID != annAttempt {
		t.Fatalf("learner list: want only %s got=%+v", annAttempt, mine)
	}

	_, env = do(t, admin, http.MethodGet, "/quiz-attempts", nil)
	var all []model.QuizAttempt
	json.Unmarshal(env.Data, &all)
	if len(all) != 2 {
		t.Fatalf("admin list: want=2 got=%d", len(all))
	}
}

func TestRespondErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", util.ErrContentNotFound), http.StatusNotFound},
		{util.ErrSessionNotFound, http.StatusConflict},
		{fmt.Errorf("%w: title", authoring.ErrInvalidContent), http.StatusBadRequest},
		{util.ErrInvalidOrder, http.StatusBadRequest},
		{util.ErrCopyrightDisabled, http.StatusServiceUnavailable},
		{&cms.Error{Status: http.StatusInternalServerError, Message: "boom"}, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tt.err)
		if w.Code != tt.want {
			t.Fatalf("%v: want=%d got=%d", tt.err, tt.want, w.Code)
		}
	}
}
