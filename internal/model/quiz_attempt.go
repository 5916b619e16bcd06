package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

const DefaultMaxScore = 100

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptInProgress, AttemptSubmitted, AttemptGraded:
		return true
	}
	return false
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	ID                 int64          `json:"id"`
	DocumentID         string         `json:"documentId"`
	User               *UserSummary   `json:"user,omitempty"`
	CertificateProgram *EntityRef     `json:"certificateProgram,omitempty"`
	CourseContent      *EntityRef     `json:"courseContent,omitempty"`
	IssuedCertificate  *EntityRef     `json:"issuedCertificate,omitempty"`
	Status             AttemptStatus  `json:"status"`
	Score              *float64       `json:"score"`
	MaxScore           float64        `json:"maxScore"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	DurationSeconds    *int           `json:"durationSeconds,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type CreateAttemptInput struct {
	UserID               Ref            `json:"userId"`
	CertificateProgramID Ref            `json:"certificateProgramId" binding:"required"`
	CourseContentID      Ref            `json:"courseContentId"`
	Status               AttemptStatus  `json:"status"`
	MaxScore             *float64       `json:"maxScore"`
	StartedAt            *time.Time     `json:"startedAt"`
	Metadata             map[string]any `json:"metadata"`
}

// AttemptPatch 只写入非 nil 字段
type AttemptPatch struct {
	Status            *AttemptStatus `json:"status"`
	Score             *float64       `json:"score"`
	MaxScore          *float64       `json:"maxScore"`
	CompletedAt       *time.Time     `json:"completedAt"`
	DurationSeconds   *int           `json:"durationSeconds"`
	IssuedCertificate Ref            `json:"issuedCertificate"`
	Metadata          map[string]any `json:"metadata"`
}

type AttemptFilter struct {
	UserID               Ref           `form:"user"`
	CertificateProgramID Ref           `form:"certificateProgram"`
	CourseContentID      Ref           `form:"courseContent"`
	Status               AttemptStatus `form:"status"`
}
