package model

import "time"

type ContentType string

const (
	ContentVideo       ContentType = "video"
	ContentAudio       ContentType = "audio"
	ContentDocument    ContentType = "document"
	ContentURL         ContentType = "url"
	ContentArticle     ContentType = "article"
	ContentImage       ContentType = "image"
	ContentQuiz        ContentType = "quiz"
	ContentCertificate ContentType = "certificate"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentVideo, ContentAudio, ContentDocument, ContentURL, ContentArticle, ContentImage, ContentQuiz, ContentCertificate:
		return true
	}
	return false
}

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

type CopyrightStatus string

const (
	CopyrightUnchecked CopyrightStatus = ""
	CopyrightPending   CopyrightStatus = "pending"
	CopyrightChecking  CopyrightStatus = "checking"
	CopyrightPassed    CopyrightStatus = "passed"
	CopyrightFailed    CopyrightStatus = "failed"
)

type CopyrightCheck struct {
	Status     CopyrightStatus `json:"status"`
	Violations []string        `json:"violations,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	CheckedAt  *time.Time      `json:"checkedAt,omitempty"`
}

// Clear 仅 passed 且无违规、无警告视为通过
func (c CopyrightCheck) Clear() bool {
	return c.Status == CopyrightPassed && len(c.Violations) == 0 && len(c.Warnings) == 0
}

// CourseBasics 课程基础信息（第一步）
type CourseBasics struct {
	ID            int64        `json:"id"`
	DocumentID    string       `json:"documentId"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Price         float64      `json:"price"`
	DiscountPrice *float64     `json:"discountPrice,omitempty"`
	IsFree        bool         `json:"isFree"`
	Status        CourseStatus `json:"status"`
	Language      string       `json:"language,omitempty"`
	Level         string       `json:"level,omitempty"`
	Categories    []EntityRef  `json:"categories,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	// Instructor 课程归属的作者，只读
	Instructor *UserSummary `json:"instructor,omitempty"`
}

// IsPaid 免费课程或零价格课程不走版权闸门
func (b CourseBasics) IsPaid() bool {
	if b.IsFree {
		return false
	}
	price := b.Price
	if b.DiscountPrice != nil && *b.DiscountPrice >= 0 && *b.DiscountPrice < price {
		price = *b.DiscountPrice
	}
	return price > 0
}

type CourseMaterial struct {
	ID          int64  `json:"id"`
	DocumentID  string `json:"documentId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OrderIndex  int    `json:"orderIndex"`
}

type CourseContent struct {
	ID              int64          `json:"id"`
	DocumentID      string         `json:"documentId"`
	MaterialID      string         `json:"materialId"`
	Type            ContentType    `json:"type"`
	Title           string         `json:"title"`
	URL             string         `json:"url,omitempty"`
	Article         string         `json:"article,omitempty"`
	OrderIndex      int            `json:"orderIndex"`
	DurationSeconds *int           `json:"durationSeconds,omitempty"`
	Copyright       CopyrightCheck `json:"copyright"`
}
