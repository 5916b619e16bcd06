package model

import "time"

type IssuanceStatus string

const (
	IssuanceActive  IssuanceStatus = "active"
	IssuanceExpired IssuanceStatus = "expired"
	IssuanceRevoked IssuanceStatus = "revoked"
)

const DefaultPassingScore = 70

// CertificateProgram 证书项目，PassingScore 为颁发门槛
type CertificateProgram struct {
	ID           int64   `json:"id"`
	DocumentID   string  `json:"documentId"`
	Name         string  `json:"name"`
	PassingScore float64 `json:"passingScore"`
	ValidityDays *int    `json:"validityDays,omitempty"`
	IssuerName   string  `json:"issuerName,omitempty"`
}

// swagger:model CertificateIssuance
type CertificateIssuance struct {
	ID                 int64          `json:"id"`
	DocumentID         string         `json:"documentId"`
	CertificateProgram *EntityRef     `json:"certificateProgram,omitempty"`
	User               *UserSummary   `json:"user,omitempty"`
	QuizAttempt        *EntityRef     `json:"quizAttempt,omitempty"`
	IssuedAt           *time.Time     `json:"issuedAt,omitempty"`
	ValidUntil         *time.Time     `json:"validUntil,omitempty"`
	RevokedAt          *time.Time     `json:"revokedAt,omitempty"`
	Status             IssuanceStatus `json:"status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type CreateIssuanceInput struct {
	CertificateProgramID Ref            `json:"certificateProgramId" binding:"required"`
	UserID               Ref            `json:"userId" binding:"required"`
	QuizAttemptID        Ref            `json:"quizAttemptId"`
	IssuedAt             *time.Time     `json:"issuedAt"`
	ValidUntil           *time.Time     `json:"validUntil"`
	Status               IssuanceStatus `json:"status"`
	Metadata             map[string]any `json:"metadata"`
}

type IssuancePatch struct {
	Status     *IssuanceStatus `json:"status"`
	ValidUntil *time.Time      `json:"validUntil"`
	RevokedAt  *time.Time      `json:"revokedAt"`
	Metadata   map[string]any  `json:"metadata"`
}

type IssuanceFilter struct {
	UserID               Ref            `form:"user"`
	CertificateProgramID Ref            `form:"certificateProgram"`
	QuizAttemptID        Ref            `form:"quizAttempt"`
	Status               IssuanceStatus `form:"status"`
}
