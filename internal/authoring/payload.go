package authoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"course_studio_backend/internal/model"
)

const (
	kindQuiz        = "quiz"
	kindCertificate = "certificate"
)

var (
	ErrPayloadKind  = errors.New("payload kind mismatch")
	ErrEmptyPayload = errors.New("empty payload")
	// ErrInvalidContent 内容草稿不满足保存条件
	ErrInvalidContent = errors.New("invalid content")
)

type QuizLine struct {
	ID      int64  `json:"id,omitempty"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type QuizQuestion struct {
	ID       int64      `json:"id"`
	Prompt   string     `json:"prompt"`
	Multiple bool       `json:"multiple,omitempty"`
	Points   float64    `json:"points,omitempty"`
	Lines    []QuizLine `json:"lines"`
}

// QuizPayload 测验内容存放在 article 字段中
type QuizPayload struct {
	Kind                 string         `json:"kind"`
	Questions            []QuizQuestion `json:"questions"`
	CertificateProgramID int64          `json:"certificateProgramId,omitempty"`
	TimeLimitSeconds     int            `json:"timeLimitSeconds,omitempty"`
}

type CertificatePayload struct {
	Kind                 string `json:"kind"`
	CertificateProgramID int64  `json:"certificateProgramId"`
	Title                string `json:"title,omitempty"`
	Template             string `json:"template,omitempty"`
}

func EncodeQuiz(p QuizPayload) (string, error) {
	p.Kind = kindQuiz
	raw, err := json.Marshal(p)
	return string(raw), err
}

func DecodeQuiz(article string) (*QuizPayload, error) {
	var p QuizPayload
	if err := decodePayload(article, &p); err != nil {
		return nil, err
	}
	if p.Kind != kindQuiz {
		return nil, fmt.Errorf("%w: want %s got %q", ErrPayloadKind, kindQuiz, p.Kind)
	}
	return &p, nil
}

func EncodeCertificate(p CertificatePayload) (string, error) {
	p.Kind = kindCertificate
	raw, err := json.Marshal(p)
	return string(raw), err
}

func DecodeCertificate(article string) (*CertificatePayload, error) {
	var p CertificatePayload
	if err := decodePayload(article, &p); err != nil {
		return nil, err
	}
	if p.Kind != kindCertificate {
		return nil, fmt.Errorf("%w: want %s got %q", ErrPayloadKind, kindCertificate, p.Kind)
	}
	return &p, nil
}

func decodePayload(article string, v any) error {
	article = strings.TrimSpace(article)
	if article == "" {
		return ErrEmptyPayload
	}
	return json.Unmarshal([]byte(article), v)
}

// MaxPoints 未设置分值的题目按 1 分计
func (p QuizPayload) MaxPoints() float64 {
	var total float64
	for _, q := range p.Questions {
		if q.Points > 0 {
			total += q.Points
		} else {
			total++
		}
	}
	return total
}

// ValidateContent 按内容类型检查必填字段
func ValidateContent(c model.CourseContent) error {
	if err := validateContent(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}
	return nil
}

func validateContent(c model.CourseContent) error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown content type %q", c.Type)
	}
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	switch c.Type {
	case model.ContentArticle:
		if strings.TrimSpace(c.Article) == "" {
			return errors.New("article body is required")
		}
	case model.ContentQuiz:
		p, err := DecodeQuiz(c.Article)
		if err != nil {
			return fmt.Errorf("quiz payload: %w", err)
		}
		if len(p.Questions) == 0 {
			return errors.New("quiz has no questions")
		}
	case model.ContentCertificate:
		p, err := DecodeCertificate(c.Article)
		if err != nil {
			return fmt.Errorf("certificate payload: %w", err)
		}
		if p.CertificateProgramID <= 0 {
			return errors.New("certificate program is required")
		}
	default:
		if strings.TrimSpace(c.URL) == "" {
			return errors.New("url is required")
		}
	}
	return nil
}
