package repository

import (
	"context"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"

	"go.uber.org/zap"
)

type CertificateProgramRepository struct {
	Backend  cms.Backend
	Resolver RelationResolver
}

func NewCertificateProgramRepository(backend cms.Backend, resolver RelationResolver) *CertificateProgramRepository {
	return &CertificateProgramRepository{Backend: backend, Resolver: resolver}
}

// Get 未配置及格线时按 70 分处理
func (r *CertificateProgramRepository) Get(ctx context.Context, ref model.Ref) *model.CertificateProgram {
	const coll = cms.CollectionCertificatePrograms

	doc, err := ResolveRef(ctx, r.Resolver, coll, ref)
	if err != nil {
		logFailure("get program: resolve failed", coll, err, zap.String("ref", ref.String()))
		return nil
	}
	rec, err := r.Backend.Get(ctx, coll, doc)
	if err != nil {
		logFailure("get program failed", coll, err, zap.String("documentId", doc))
		return nil
	}

	p := &model.CertificateProgram{
		ID:           rec.ID,
		DocumentID:   rec.DocumentID,
		Name:         rec.String("name"),
		PassingScore: model.DefaultPassingScore,
		ValidityDays: rec.IntPtr("validity_days"),
		IssuerName:   rec.String("issuer_name"),
	}
	if s := rec.FloatPtr("passing_score"); s != nil {
		p.PassingScore = *s
	}
	return p
}
