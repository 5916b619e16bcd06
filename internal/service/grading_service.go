package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"course_studio_backend/internal/config"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/pkg/logger"
	"course_studio_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 工作流步骤名
const (
	StepCreateAttempt   = "create_attempt"
	StepCreateAnswer    = "create_answer"
	StepGradeAttempt    = "grade_attempt"
	StepLoadProgram     = "load_program"
	StepCreateIssuance  = "create_issuance"
	StepLinkCertificate = "link_certificate"
)

// StepError 标明在哪一步中断；之前的步骤不会回滚
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("grading step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// GradedAnswer 判分结果由调用方给出，这里只负责保存
type GradedAnswer struct {
	QuestionID     int64     `json:"questionId" binding:"required"`
	SelectedLineID model.Ref `json:"selectedLineId"`
	SelectedLines  []int64   `json:"selectedLines"`
	IsCorrect      bool      `json:"isCorrect"`
	PointsAwarded  *float64  `json:"pointsAwarded"`
	MaxPoints      *float64  `json:"maxPoints"`
}

type Submission struct {
	UserID               model.Ref      `json:"userId"`
	CertificateProgramID model.Ref      `json:"certificateProgramId" binding:"required"`
	CourseContentID      model.Ref      `json:"courseContentId"`
	StartedAt            *time.Time     `json:"startedAt"`
	MaxScore             *float64       `json:"maxScore"`
	Score                *float64       `json:"score"`
	Answers              []GradedAnswer `json:"answers"`
	Metadata             map[string]any `json:"metadata"`
}

type SubmissionResult struct {
	Attempt  *model.QuizAttempt         `json:"attempt"`
	Answers  []model.QuizAttemptAnswer  `json:"answers"`
	Passed   bool                       `json:"passed"`
	Issuance *model.CertificateIssuance `json:"issuance,omitempty"`
}

type GradingService struct {
	Attempts  *repository.QuizAttemptRepository
	Answers   *repository.QuizAttemptAnswerRepository
	Issuances *repository.CertificateIssuanceRepository
	Programs  *repository.CertificateProgramRepository
	Publisher EventPublisher
	Issuer    config.IssuerConfig
	Now       func() time.Time
}

func NewGradingService(
	attempts *repository.QuizAttemptRepository,
	answers *repository.QuizAttemptAnswerRepository,
	issuances *repository.CertificateIssuanceRepository,
	programs *repository.CertificateProgramRepository,
	publisher EventPublisher,
	issuer config.IssuerConfig,
) *GradingService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &GradingService{
		Attempts:  attempts,
		Answers:   answers,
		Issuances: issuances,
		Programs:  programs,
		Publisher: publisher,
		Issuer:    issuer,
		Now:       time.Now,
	}
}

func (s *GradingService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Submit 创建答题记录 -> 逐题保存 -> 判分 -> 达到及格线则颁发证书并回写关联。
// 任一步失败即停止，已写入的数据保留；重复提交会产生重复记录。
func (s *GradingService) Submit(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	log := logger.Log.With(zap.String("user", sub.UserID.String()), zap.String("program", sub.CertificateProgramID.String()))

	startedAt := s.now()
	if sub.StartedAt != nil {
		startedAt = *sub.StartedAt
	}
	attempt := s.Attempts.Create(ctx, model.CreateAttemptInput{
		UserID:               sub.UserID,
		CertificateProgramID: sub.CertificateProgramID,
		CourseContentID:      sub.CourseContentID,
		Status:               model.AttemptInProgress,
		MaxScore:             sub.MaxScore,
		StartedAt:            &startedAt,
		Metadata:             sub.Metadata,
	})
	if attempt == nil {
		return nil, s.fail(log, StepCreateAttempt, fmt.Errorf("attempt not created"))
	}
	s.ok(StepCreateAttempt)
	result := &SubmissionResult{Attempt: attempt}
	attemptRef := model.Ref(attempt.DocumentID)

	for _, a := range sub.Answers {
		saved := s.Answers.Create(ctx, model.CreateAnswerInput{
			AttemptID:      attemptRef,
			QuestionID:     a.QuestionID,
			SelectedLineID: a.SelectedLineID,
			SelectedLines:  a.SelectedLines,
			IsCorrect:      a.IsCorrect,
			PointsAwarded:  a.PointsAwarded,
		})
		if saved == nil {
			return result, s.fail(log, StepCreateAnswer, fmt.Errorf("answer for question %d not created", a.QuestionID))
		}
		result.Answers = append(result.Answers, *saved)
	}
	s.ok(StepCreateAnswer)

	score := ComputeScore(sub.Answers, attempt.MaxScore)
	if sub.Score != nil {
		score = *sub.Score
	}
	completedAt := s.now()
	duration := int(math.Max(0, completedAt.Sub(startedAt).Seconds()))
	graded := model.AttemptGraded
	updated := s.Attempts.Update(ctx, attemptRef, model.AttemptPatch{
		Status:          &graded,
		Score:           &score,
		CompletedAt:     &completedAt,
		DurationSeconds: &duration,
	})
	if updated == nil {
		return result, s.fail(log, StepGradeAttempt, fmt.Errorf("attempt %s not graded", attempt.DocumentID))
	}
	s.ok(StepGradeAttempt)
	result.Attempt = updated

	program := s.Programs.Get(ctx, sub.CertificateProgramID)
	if program == nil {
		return result, s.fail(log, StepLoadProgram, fmt.Errorf("program %s not loaded", sub.CertificateProgramID))
	}
	s.ok(StepLoadProgram)

	if score < program.PassingScore {
		log.Info("Attempt graded below passing score",
			zap.String("attempt", attempt.DocumentID), zap.Float64("score", score), zap.Float64("passing", program.PassingScore))
		return result, nil
	}
	result.Passed = true

	issuedAt := s.now()
	var validUntil *time.Time
	if program.ValidityDays != nil && *program.ValidityDays > 0 {
		v := issuedAt.AddDate(0, 0, *program.ValidityDays)
		validUntil = &v
	}
	issuer := program.IssuerName
	if issuer == "" {
		issuer = s.Issuer.Name
	}
	issuance := s.Issuances.Create(ctx, model.CreateIssuanceInput{
		CertificateProgramID: sub.CertificateProgramID,
		UserID:               sub.UserID,
		QuizAttemptID:        attemptRef,
		IssuedAt:             &issuedAt,
		ValidUntil:           validUntil,
		Status:               model.IssuanceActive,
		Metadata: map[string]any{
			"verification_code": verificationCode(),
			"seal_number":       sealNumber(s.Issuer.SealPrefix, issuedAt),
			"issuer":            issuer,
			"score":             score,
		},
	})
	if issuance == nil {
		return result, s.fail(log, StepCreateIssuance, fmt.Errorf("issuance for attempt %s not created", attempt.DocumentID))
	}
	s.ok(StepCreateIssuance)
	result.Issuance = issuance

	linked := s.Attempts.Update(ctx, attemptRef, model.AttemptPatch{IssuedCertificate: model.Ref(issuance.DocumentID)})
	if linked == nil {
		return result, s.fail(log, StepLinkCertificate, fmt.Errorf("attempt %s not linked to issuance %s", attempt.DocumentID, issuance.DocumentID))
	}
	s.ok(StepLinkCertificate)
	result.Attempt = linked

	s.publishIssued(ctx, result, score)
	return result, nil
}

func (s *GradingService) publishIssued(ctx context.Context, result *SubmissionResult, score float64) {
	payload := map[string]any{
		"issuanceId":         result.Issuance.ID,
		"issuanceDocumentId": result.Issuance.DocumentID,
		"attemptId":          result.Attempt.ID,
		"attemptDocumentId":  result.Attempt.DocumentID,
		"score":              score,
		"metadata":           result.Issuance.Metadata,
	}
	if u := result.Issuance.User; u != nil {
		payload["userId"] = u.ID
	}
	if p := result.Issuance.CertificateProgram; p != nil {
		payload["programId"] = p.ID
	}
	if err := s.Publisher.Publish(ctx, EventCertificateIssued, payload); err != nil {
		logger.Log.Warn("Failed to publish certificate event",
			zap.String("issuance", result.Issuance.DocumentID), zap.Error(err))
	}
}

func (s *GradingService) fail(log *zap.Logger, step string, err error) error {
	monitoring.WorkflowSteps.WithLabelValues(step, "failed").Inc()
	log.Error("Grading workflow halted", zap.String("step", step), zap.Error(err))
	return &StepError{Step: step, Err: err}
}

func (s *GradingService) ok(step string) {
	monitoring.WorkflowSteps.WithLabelValues(step, "ok").Inc()
}

// ComputeScore 得分 / 总分 折算到 maxScore，保留两位小数。
// 未给分值的题目按对错计 0 或 1 分。
func ComputeScore(answers []GradedAnswer, maxScore float64) float64 {
	if len(answers) == 0 || maxScore <= 0 {
		return 0
	}
	var awarded, available float64
	for _, a := range answers {
		full := 1.0
		if a.MaxPoints != nil && *a.MaxPoints > 0 {
			full = *a.MaxPoints
		}
		available += full
		switch {
		case a.PointsAwarded != nil:
			awarded += *a.PointsAwarded
		case a.IsCorrect:
			awarded += full
		}
	}
	if available == 0 {
		return 0
	}
	score := awarded / available * maxScore
	return math.Round(score*100) / 100
}

func verificationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func sealNumber(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "CS"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}
