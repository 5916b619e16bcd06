package repository

import (
	"context"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"

	"go.uber.org/zap"
)

var attemptPopulate = []string{"user.avatar", "certificate_program", "course_content", "issued_certificate"}

type QuizAttemptRepository struct {
	Backend  cms.Backend
	Resolver RelationResolver
	Profiles UserProfileResolver
	Media    MediaURLResolver
}

func NewQuizAttemptRepository(backend cms.Backend, resolver RelationResolver, profiles UserProfileResolver, media MediaURLResolver) *QuizAttemptRepository {
	return &QuizAttemptRepository{Backend: backend, Resolver: resolver, Profiles: profiles, Media: media}
}

// Create 依次解析用户、证书项目（必需）和课程内容（可选），再创建记录
func (r *QuizAttemptRepository) Create(ctx context.Context, in model.CreateAttemptInput) *model.QuizAttempt {
	const coll = cms.CollectionQuizAttempts

	userDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionUsers, in.UserID)
	if err != nil {
		logFailure("create quiz attempt: resolve user failed", coll, err, zap.String("user", in.UserID.String()))
		return nil
	}
	programDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCertificatePrograms, in.CertificateProgramID)
	if err != nil {
		logFailure("create quiz attempt: resolve program failed", coll, err, zap.String("program", in.CertificateProgramID.String()))
		return nil
	}

	status := in.Status
	if status == "" {
		status = model.AttemptInProgress
	}
	maxScore := float64(model.DefaultMaxScore)
	if in.MaxScore != nil {
		maxScore = *in.MaxScore
	}
	data := map[string]any{
		"user":                cms.Connect(userDoc),
		"certificate_program": cms.Connect(programDoc),
		"status":              string(status),
		"max_score":           maxScore,
		"started_at":          timeValue(in.StartedAt),
	}
	if !in.CourseContentID.IsZero() {
		contentDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCourseContents, in.CourseContentID)
		if err != nil {
			logFailure("create quiz attempt: course content not linked", coll, err, zap.String("content", in.CourseContentID.String()))
		} else {
			data["course_content"] = cms.Connect(contentDoc)
		}
	}
	if in.Metadata != nil {
		data["metadata"] = in.Metadata
	}

	rec, err := r.Backend.Create(ctx, coll, data, attemptPopulate...)
	if err != nil {
		logFailure("create quiz attempt failed", coll, err)
		return nil
	}
	attempt := r.toModel(*rec)
	return &attempt
}

// Update 只写入 patch 中给出的字段；不校验状态与分数的组合
func (r *QuizAttemptRepository) Update(ctx context.Context, ref model.Ref, patch model.AttemptPatch) *model.QuizAttempt {
	const coll = cms.CollectionQuizAttempts

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("update quiz attempt: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}

	data := map[string]any{}
	if patch.Status != nil {
		data["status"] = string(*patch.Status)
	}
	if patch.Score != nil {
		data["score"] = *patch.Score
	}
	if patch.MaxScore != nil {
		data["max_score"] = *patch.MaxScore
	}
	if patch.CompletedAt != nil {
		data["completed_at"] = cms.FormatTime(*patch.CompletedAt)
	}
	if patch.DurationSeconds != nil {
		data["duration_seconds"] = *patch.DurationSeconds
	}
	if patch.Metadata != nil {
		data["metadata"] = patch.Metadata
	}
	if !patch.IssuedCertificate.IsZero() {
		issuedDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCertificateIssuance, patch.IssuedCertificate)
		if err != nil {
			logFailure("update quiz attempt: resolve issuance failed", coll, err, zap.String("issuance", patch.IssuedCertificate.String()))
			return nil
		}
		data["issued_certificate"] = cms.Connect(issuedDoc)
	}

	rec, err := r.Backend.Update(ctx, coll, doc, data, attemptPopulate...)
	if err != nil {
		logFailure("update quiz attempt failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	attempt := r.toModel(*rec)
	return &attempt
}

func (r *QuizAttemptRepository) List(ctx context.Context, filter model.AttemptFilter) []model.QuizAttempt {
	const coll = cms.CollectionQuizAttempts

	q := cms.Query{Populate: attemptPopulate, Sort: []string{"id:desc"}}
	addRefFilter(&q, "user", filter.UserID)
	addRefFilter(&q, "certificate_program", filter.CertificateProgramID)
	addRefFilter(&q, "course_content", filter.CourseContentID)
	if filter.Status != "" {
		q.Filters = append(q.Filters, cms.Eq("status", string(filter.Status)))
	}

	records, err := r.Backend.List(ctx, coll, q)
	if err != nil {
		logFailure("list quiz attempts failed", coll, err)
		return []model.QuizAttempt{}
	}
	out := make([]model.QuizAttempt, 0, len(records))
	for _, rec := range records {
		out = append(out, r.toModel(rec))
	}

	users := make([]*model.UserSummary, 0, len(out))
	for i := range out {
		users = append(users, out[i].User)
	}
	backfillUsers(ctx, r.Profiles, users)
	return out
}

func (r *QuizAttemptRepository) Get(ctx context.Context, ref model.Ref) *model.QuizAttempt {
	const coll = cms.CollectionQuizAttempts

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("get quiz attempt: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}
	rec, err := r.Backend.Get(ctx, coll, doc, attemptPopulate...)
	if err != nil {
		logFailure("get quiz attempt failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	attempt := r.toModel(*rec)
	backfillUsers(ctx, r.Profiles, []*model.UserSummary{attempt.User})
	return &attempt
}

func (r *QuizAttemptRepository) Delete(ctx context.Context, ref model.Ref) bool {
	const coll = cms.CollectionQuizAttempts

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("delete quiz attempt: resolve failed", coll, err, zap.String("ref", ref.String()))
		return false
	}
	if err := r.Backend.Delete(ctx, coll, doc); err != nil {
		logFailure("delete quiz attempt failed", coll, err, zap.String("documentId", doc))
		return false
	}
	return true
}

func (r *QuizAttemptRepository) toModel(rec cms.Record) model.QuizAttempt {
	a := model.QuizAttempt{
		ID:                 rec.ID,
		DocumentID:         rec.DocumentID,
		User:               userSummaryFrom(rec, "user", r.Media),
		CertificateProgram: relationRef(rec, "certificate_program"),
		CourseContent:      relationRef(rec, "course_content"),
		IssuedCertificate:  relationRef(rec, "issued_certificate"),
		Status:             model.AttemptStatus(rec.String("status")),
		Score:              rec.FloatPtr("score"),
		MaxScore:           model.DefaultMaxScore,
		StartedAt:          rec.Time("started_at"),
		CompletedAt:        rec.Time("completed_at"),
		DurationSeconds:    rec.IntPtr("duration_seconds"),
		Metadata:           rec.Map("metadata"),
	}
	if m := rec.FloatPtr("max_score"); m != nil {
		a.MaxScore = *m
	}
	return a
}
