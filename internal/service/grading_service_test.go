package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.last, _ = payload.(map[string]any)
	return nil
}

func float(v float64) *float64 { return &v }

func seedLearner(t *testing.T, b *flakyBackend, passing float64) (user, program *cms.Record) {
	t.Helper()
	user = b.seed(t, cms.CollectionUsers, map[string]any{"username": "ann", "email": "ann@example.com"})
	program = b.seed(t, cms.CollectionCertificatePrograms, map[string]any{
		"name":          "Go Basics",
		"passing_score": passing,
		"validity_days": 365,
	})
	return user, program
}

func TestSubmitPassingIssuesCertificate(t *testing.T) {
	b := newFlakyBackend()
	user, program := seedLearner(t, b, 70)
	svc := newGradingService(b)
	pub := &recordingPublisher{}
	svc.Publisher = pub
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	started := now.Add(-90 * time.Second)

	res, err := svc.Submit(context.Background(), Submission{
		UserID:               model.Ref(user.DocumentID),
		CertificateProgramID: model.Ref(program.DocumentID),
		StartedAt:            &started,
		MaxScore:             float(100),
		Answers: []GradedAnswer{
			{QuestionID: 1, SelectedLineID: "11", IsCorrect: true},
			{QuestionID: 2, SelectedLines: []int64{21, 22}, IsCorrect: true},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Passed {
		t.Fatalf("passed: want=true got=false")
	}
	if len(res.Answers) != 2 {
		t.Fatalf("answers: want=2 got=%d", len(res.Answers))
	}
	if res.Attempt.Status != model.AttemptGraded {
		t.Fatalf("status: want=%q got=%q", model.AttemptGraded, res.Attempt.Status)
	}
	if res.Attempt.Score == nil || *res.Attempt.Score != 100 {
		t.Fatalf("score: want=100 got=%v", res.Attempt.Score)
	}
	if res.Attempt.DurationSeconds == nil || *res.Attempt.DurationSeconds != 90 {
		t.Fatalf("duration: want=90 got=%v", res.Attempt.DurationSeconds)
	}

	if n := b.count(t, cms.CollectionCertificateIssuance); n != 1 {
		t.Fatalf("issuances: want=1 got=%d", n)
	}
	iss := res.Issuance
	if iss == nil || iss.QuizAttempt == nil || iss.QuizAttempt.DocumentID != res.Attempt.DocumentID {
		t.Fatalf("issuance attempt: want=%q got=%+v", res.Attempt.DocumentID, iss)
	}
	if res.Attempt.IssuedCertificate == nil || res.Attempt.IssuedCertificate.DocumentID != iss.DocumentID {
		t.Fatalf("issued certificate: want=%q got=%+v", iss.DocumentID, res.Attempt.IssuedCertificate)
	}
	if iss.ValidUntil == nil || !iss.ValidUntil.Equal(now.AddDate(0, 0, 365)) {
		t.Fatalf("valid until: want=%v got=%v", now.AddDate(0, 0, 365), iss.ValidUntil)
	}
	if code, _ := iss.Metadata["verification_code"].(string); len(code) != 12 {
		t.Fatalf("verification code: want 12 chars got=%q", code)
	}
	if issuer, _ := iss.Metadata["issuer"].(string); issuer != "Course Studio" {
		t.Fatalf("issuer: want=%q got=%q", "Course Studio", issuer)
	}

	if len(pub.events) != 1 || pub.events[0] != EventCertificateIssued {
		t.Fatalf("events: want=[%s] got=%v", EventCertificateIssued, pub.events)
	}
	if pub.last["issuanceDocumentId"] != iss.DocumentID {
		t.Fatalf("event issuance: want=%q got=%v", iss.DocumentID, pub.last["issuanceDocumentId"])
	}
}

func TestSubmitBelowPassingScore(t *testing.T) {
	b := newFlakyBackend()
	user, program := seedLearner(t, b, 70)
	svc := newGradingService(b)
	pub := &recordingPublisher{}
	svc.Publisher = pub

	res, err := svc.Submit(context.Background(), Submission{
		UserID:               model.IDRef(user.ID),
		CertificateProgramID: model.IDRef(program.ID),
		MaxScore:             float(100),
		Answers: []GradedAnswer{
			{QuestionID: 1, IsCorrect: true},
			{QuestionID: 2, IsCorrect: false},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Passed || res.Issuance != nil {
		t.Fatalf("want no certificate, got passed=%v issuance=%+v", res.Passed, res.Issuance)
	}
	if res.Attempt.Score == nil || *res.Attempt.Score != 50 {
		t.Fatalf("score: want=50 got=%v", res.Attempt.Score)
	}
	if n := b.count(t, cms.CollectionCertificateIssuance); n != 0 {
		t.Fatalf("issuances: want=0 got=%d", n)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events: want none got=%v", pub.events)
	}
}

func TestSubmitExplicitScoreOverridesAnswers(t *testing.T) {
	b := newFlakyBackend()
	user, program := seedLearner(t, b, 70)
	svc := newGradingService(b)

	res, err := svc.Submit(context.Background(), Submission{
		UserID:               model.Ref(user.DocumentID),
		CertificateProgramID: model.Ref(program.DocumentID),
		Score:                float(80),
		Answers:              []GradedAnswer{{QuestionID: 1, IsCorrect: false}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Passed || res.Issuance == nil {
		t.Fatalf("want certificate for score 80, got passed=%v", res.Passed)
	}
}

func TestSubmitHaltsAtFailingStep(t *testing.T) {
	tests := []struct {
		name     string
		inject   func(b *flakyBackend)
		wantStep string
		attempts int
	}{
		{
			name:     "attempt",
			inject:   func(b *flakyBackend) { b.failNextCreate(cms.CollectionQuizAttempts) },
			wantStep: StepCreateAttempt,
			attempts: 0,
		},
		{
			name:     "answer",
			inject:   func(b *flakyBackend) { b.failNextCreate(cms.CollectionQuizAttemptAnswers) },
			wantStep: StepCreateAnswer,
			attempts: 1,
		},
		{
			name:     "issuance",
			inject:   func(b *flakyBackend) { b.failNextCreate(cms.CollectionCertificateIssuance) },
			wantStep: StepCreateIssuance,
			attempts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFlakyBackend()
			user, program := seedLearner(t, b, 70)
			svc := newGradingService(b)
			tt.inject(b)

			_, err := svc.Submit(context.Background(), Submission{
				UserID:               model.Ref(user.DocumentID),
				CertificateProgramID: model.Ref(program.DocumentID),
				MaxScore:             float(100),
				Answers:              []GradedAnswer{{QuestionID: 1, IsCorrect: true}},
			})
			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("want StepError got=%v", err)
			}
			if stepErr.Step != tt.wantStep {
				t.Fatalf("step: want=%q got=%q", tt.wantStep, stepErr.Step)
			}
			if n := b.count(t, cms.CollectionQuizAttempts); n != tt.attempts {
				t.Fatalf("attempts kept: want=%d got=%d", tt.attempts, n)
			}
			if n := b.count(t, cms.CollectionCertificateIssuance); n != 0 {
				t.Fatalf("issuances: want=0 got=%d", n)
			}
		})
	}
}

func TestSubmitUnknownProgram(t *testing.T) {
	b := newFlakyBackend()
	user, _ := seedLearner(t, b, 70)
	svc := newGradingService(b)

	_, err := svc.Submit(context.Background(), Submission{
		UserID:               model.Ref(user.DocumentID),
		CertificateProgramID: model.IDRef(999),
	})
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepCreateAttempt {
		t.Fatalf("want create_attempt StepError got=%v", err)
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name    string
		answers []GradedAnswer
		max     float64
		want    float64
	}{
		{"empty", nil, 100, 0},
		{"zero max", []GradedAnswer{{IsCorrect: true}}, 0, 0},
		{"all correct", []GradedAnswer{{IsCorrect: true}, {IsCorrect: true}}, 100, 100},
		{"one of three", []GradedAnswer{{IsCorrect: true}, {}, {}}, 100, 33.33},
		{"weighted", []GradedAnswer{
			{IsCorrect: true, MaxPoints: float(3)},
			{IsCorrect: false, MaxPoints: float(1)},
		}, 100, 75},
		{"partial points", []GradedAnswer{
			{PointsAwarded: float(1.5), MaxPoints: float(2)},
			{IsCorrect: true, MaxPoints: float(2)},
		}, 10, 8.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeScore(tt.answers, tt.max); got != tt.want {
				t.Fatalf("score: want=%v got=%v", tt.want, got)
			}
		})
	}
}
