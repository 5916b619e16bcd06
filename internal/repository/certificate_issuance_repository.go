package repository

import (
	"context"
	"time"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"

	"go.uber.org/zap"
)

var issuancePopulate = []string{"certificate_program", "user.avatar", "quiz_attempt"}

type CertificateIssuanceRepository struct {
	Backend  cms.Backend
	Resolver RelationResolver
	Profiles UserProfileResolver
	Media    MediaURLResolver
}

func NewCertificateIssuanceRepository(backend cms.Backend, resolver RelationResolver, profiles UserProfileResolver, media MediaURLResolver) *CertificateIssuanceRepository {
	return &CertificateIssuanceRepository{Backend: backend, Resolver: resolver, Profiles: profiles, Media: media}
}

// Create 证书项目和用户必须能解析；来源答题记录解析失败时仍然创建
func (r *CertificateIssuanceRepository) Create(ctx context.Context, in model.CreateIssuanceInput) *model.CertificateIssuance {
	const coll = cms.CollectionCertificateIssuance

	programDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionCertificatePrograms, in.CertificateProgramID)
	if err != nil {
		logFailure("create issuance: resolve program failed", coll, err, zap.String("program", in.CertificateProgramID.String()))
		return nil
	}
	userDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionUsers, in.UserID)
	if err != nil {
		logFailure("create issuance: resolve user failed", coll, err, zap.String("user", in.UserID.String()))
		return nil
	}

	status := in.Status
	if status == "" {
		status = model.IssuanceActive
	}
	data := map[string]any{
		"certificate_program": cms.Connect(programDoc),
		"user":                cms.Connect(userDoc),
		"issued_at":           timeValue(in.IssuedAt),
		"status":              string(status),
	}
	if in.ValidUntil != nil {
		data["valid_until"] = cms.FormatTime(*in.ValidUntil)
	}
	if status == model.IssuanceRevoked {
		data["revoked_at"] = cms.FormatTime(time.Now())
	}
	if in.Metadata != nil {
		data["metadata"] = in.Metadata
	}
	if !in.QuizAttemptID.IsZero() {
		attemptDoc, err := ResolveRef(ctx, r.Resolver, cms.CollectionQuizAttempts, in.QuizAttemptID)
		if err != nil {
			logFailure("create issuance: quiz attempt not linked", coll, err, zap.String("attempt", in.QuizAttemptID.String()))
		} else {
			data["quiz_attempt"] = cms.Connect(attemptDoc)
		}
	}

	rec, err := r.Backend.Create(ctx, coll, data, issuancePopulate...)
	if err != nil {
		logFailure("create issuance failed", coll, err)
		return nil
	}
	issuance := r.toModel(*rec)
	return &issuance
}

// Update revoked_at 只随 revoked 状态写入，切回其他状态时清空
func (r *CertificateIssuanceRepository) Update(ctx context.Context, ref model.Ref, patch model.IssuancePatch) *model.CertificateIssuance {
	const coll = cms.CollectionCertificateIssuance

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("update issuance: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}

	data := map[string]any{}
	if patch.Status != nil {
		data["status"] = string(*patch.Status)
		if *patch.Status == model.IssuanceRevoked {
			data["revoked_at"] = timeValue(patch.RevokedAt)
		} else {
			data["revoked_at"] = nil
		}
	}
	if patch.ValidUntil != nil {
		data["valid_until"] = cms.FormatTime(*patch.ValidUntil)
	}
	if patch.Metadata != nil {
		data["metadata"] = patch.Metadata
	}

	rec, err := r.Backend.Update(ctx, coll, doc, data, issuancePopulate...)
	if err != nil {
		logFailure("update issuance failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	issuance := r.toModel(*rec)
	return &issuance
}

func (r *CertificateIssuanceRepository) Revoke(ctx context.Context, ref model.Ref) *model.CertificateIssuance {
	status := model.IssuanceRevoked
	now := time.Now()
	return r.Update(ctx, ref, model.IssuancePatch{Status: &status, RevokedAt: &now})
}

func (r *CertificateIssuanceRepository) List(ctx context.Context, filter model.IssuanceFilter) []model.CertificateIssuance {
	const coll = cms.CollectionCertificateIssuance

	q := cms.Query{Populate: issuancePopulate, Sort: []string{"id:desc"}}
	addRefFilter(&q, "user", filter.UserID)
	addRefFilter(&q, "certificate_program", filter.CertificateProgramID)
	addRefFilter(&q, "quiz_attempt", filter.QuizAttemptID)
	if filter.Status != "" {
		q.Filters = append(q.Filters, cms.Eq("status", string(filter.Status)))
	}

	records, err := r.Backend.List(ctx, coll, q)
	if err != nil {
		logFailure("list issuances failed", coll, err)
		return []model.CertificateIssuance{}
	}
	out := make([]model.CertificateIssuance, 0, len(records))
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

func (r *CertificateIssuanceRepository) Get(ctx context.Context, ref model.Ref) *model.CertificateIssuance {
	const coll = cms.CollectionCertificateIssuance

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("get issuance: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}
	rec, err := r.Backend.Get(ctx, coll, doc, issuancePopulate...)
	if err != nil {
		logFailure("get issuance failed", coll, err, zap.String("documentId", doc))
		return nil
	}
	issuance := r.toModel(*rec)
	backfillUsers(ctx, r.Profiles, []*model.UserSummary{issuance.User})
	return &issuance
}

func (r *CertificateIssuanceRepository) Delete(ctx context.Context, ref model.Ref) bool {
	const coll = cms.CollectionCertificateIssuance

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("delete issuance: resolve failed", coll, err, zap.String("ref", ref.String()))
		return false
	}
	if err := r.Backend.Delete(ctx, coll, doc); err != nil {
		logFailure("delete issuance failed", coll, err, zap.String("documentId", doc))
		return false
	}
	return true
}

func (r *CertificateIssuanceRepository) toModel(rec cms.Record) model.CertificateIssuance {
	return model.CertificateIssuance{
		ID:                 rec.ID,
		DocumentID:         rec.DocumentID,
		CertificateProgram: relationRef(rec, "certificate_program"),
		User:               userSummaryFrom(rec, "user", r.Media),
		QuizAttempt:        relationRef(rec, "quiz_attempt"),
		IssuedAt:           rec.Time("issued_at"),
		ValidUntil:         rec.Time("valid_until"),
		RevokedAt:          rec.Time("revoked_at"),
		Status:             model.IssuanceStatus(rec.String("status")),
		Metadata:           rec.Map("metadata"),
	}
}
