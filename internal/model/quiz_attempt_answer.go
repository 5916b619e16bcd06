package model

// QuizAttemptAnswer 单题作答。单选写 SelectedLine，多选写 SelectedLines（原样存储，不做关联）
type QuizAttemptAnswer struct {
	ID            int64      `json:"id"`
	DocumentID    string     `json:"documentId"`
	Attempt       *EntityRef `json:"attempt,omitempty"`
	QuestionID    int64      `json:"questionId"`
	SelectedLine  *EntityRef `json:"selectedLine,omitempty"`
	SelectedLines []int64    `json:"selectedLines,omitempty"`
	IsCorrect     bool       `json:"isCorrect"`
	PointsAwarded *float64   `json:"pointsAwarded"`
}

type CreateAnswerInput struct {
	AttemptID      Ref      `json:"attemptId" binding:"required"`
	QuestionID     int64    `json:"questionId" binding:"required"`
	SelectedLineID Ref      `json:"selectedLineId"`
	SelectedLines  []int64  `json:"selectedLines"`
	IsCorrect      bool     `json:"isCorrect"`
	PointsAwarded  *float64 `json:"pointsAwarded"`
}

type AnswerPatch struct {
	SelectedLineID Ref      `json:"selectedLineId"`
	SelectedLines  []int64  `json:"selectedLines"`
	IsCorrect      *bool    `json:"isCorrect"`
	PointsAwarded  *float64 `json:"pointsAwarded"`
}

type AnswerFilter struct {
	AttemptID  Ref   `form:"attempt"`
	QuestionID int64 `form:"question"`
}
