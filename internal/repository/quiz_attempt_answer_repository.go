package repository

import (
	"context"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"

	"go.uber.org/zap"
)

var answerPopulate = []string{"attempt", "selected_line"}

// QuizAttemptAnswerRepository 单选答案写 selected_line 关联，多选答案 selected_lines 原样存数组
type QuizAttemptAnswerRepository struct {
	Backend  cms.Backend
	Resolver RelationResolver
}

func NewQuizAttemptAnswerRepository(backend cms.Backend, resolver RelationResolver) *QuizAttemptAnswerRepository {
	return &QuizAttemptAnswerRepository{Backend: backend, Resolver: resolver}
}

func (r *QuizAttemptAnswerRepository) Create(ctx context.Context, in model.CreateAnswerInput) *model.QuizAttemptAnswer {
	const coll = cms.CollectionQuizAttemptAnswers

	attemptDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionQuizAttempts, in.AttemptID)
	if err != nil {
		logFailure("create answer: resolve attempt failed", coll, err, zap.String("attempt", in.AttemptID.String()))
		return nil
	}

	data := map[string]any{
		"attempt":     cms.Connect(attemptDoc),
		"question_id": in.QuestionID,
		"is_correct":  in.IsCorrect,
	}
	if in.PointsAwarded != nil {
		data["points_awarded"] = *in.PointsAwarded
	}
	if in.SelectedLines != nil {
		data["selected_lines"] = in.SelectedLines
	}
	if !in.SelectedLineID.IsZero() {
		lineDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCourseQuizLines, in.SelectedLineID)
		if err != nil {
			logFailure("create answer: selected line not linked", coll, err, zap.String("line", in.SelectedLineID.String()))
		} else {
			data["selected_line"] = cms.Connect(lineDoc)
		}
	}

	rec, err := r.Backend.Create(ctx, coll, data, answerPopulate...)
	if err != nil {
		logFailure("create answer failed", coll, err, zap.Int64("question", in.QuestionID))
		return nil
	}
	answer := toAnswer(*rec)
	return &answer
}

func (r *QuizAttemptAnswerRepository) Update(ctx context.Context, ref model.Ref, patch model.AnswerPatch) *model.QuizAttemptAnswer {
	const coll = cms.CollectionQuizAttemptAnswers

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("update answer: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}

	data := map[string]any{}
	if patch.IsCorrect != nil {
		data["is_correct"] = *patch.IsCorrect
	}
	if patch.PointsAwarded != nil {
		data["points_awarded"] = *patch.PointsAwarded
	}
	if patch.SelectedLines != nil {
		data["selected_lines"] = patch.SelectedLines
	}
	if !patch.SelectedLineID.IsZero() {
		lineDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCourseQuizLines, patch.SelectedLineID)
		if err != nil {
			logFailure("update answer: resolve selected line failed", coll, err, zap.String("line", patch.SelectedLineID.String()))
			return nil
		}
		data["selected_line"] = cms.Connect(lineDoc)
	}

	rec, err := r.Backend.Update(ctx, coll, doc, data, answerPopulate...)
	if err != nil {
		logFailure("update answer failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	answer := toAnswer(*rec)
	return &answer
}

func (r *QuizAttemptAnswerRepository) List(ctx context.Context, filter model.AnswerFilter) []model.QuizAttemptAnswer {
	const coll = cms.CollectionQuizAttemptAnswers

	q := cms.Query{Populate: answerPopulate, Sort: []string{"id:asc"}}
	addRefFilter(&q, "attempt", filter.AttemptID)
	if filter.QuestionID > 0 {
		q.Filters = append(q.Filters, cms.Eq("question_id", filter.QuestionID))
	}

	records, err := r.Backend.List(ctx, coll, q)
	if err != nil {
		logFailure("list answers failed", coll, err)
		return []model.QuizAttemptAnswer{}
	}
	out := make([]model.QuizAttemptAnswer, 0, len(records))
	for _, rec := range records {
		out = append(out, toAnswer(rec))
	}
	return out
}

func (r *QuizAttemptAnswerRepository) Get(ctx context.Context, ref model.Ref) *model.QuizAttemptAnswer {
	const coll = cms.CollectionQuizAttemptAnswers

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("get answer: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}
	rec, err := r.Backend.Get(ctx, coll, doc, answerPopulate...)
	if err != nil {
		logFailure("get answer failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	answer := toAnswer(*rec)
	return &answer
}

func (r *QuizAttemptAnswerRepository) Delete(ctx context.Context, ref model.Ref) bool {
	const coll = cms.CollectionQuizAttemptAnswers

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("delete answer: resolve failed", coll, err, zap.String("ref", ref.String()))
		return false
	}
	if err := r.Backend.Delete(ctx, coll, doc); err != nil {
		logFailure("delete answer failed", coll, err, zap.String("documentId", doc))
		return false
	}
	return true
}

func toAnswer(rec cms.Record) model.QuizAttemptAnswer {
	return model.QuizAttemptAnswer{
		ID:            rec.ID,
		DocumentID:    rec.DocumentID,
		Attempt:       relationRef(rec, "attempt"),
		QuestionID:    rec.Int64("question_id"),
		SelectedLine:  relationRef(rec, "selected_line"),
		SelectedLines: rec.Int64Slice("selected_lines"),
		IsCorrect:     rec.Bool("is_correct"),
		PointsAwarded: rec.FloatPtr("points_awarded"),
	}
}
