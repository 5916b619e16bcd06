package repository

import (
	"context"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"
)

type UserProfileResolver interface {
	Resolve(ctx context.Context, ids []model.UserIdentifier) []model.UserProfile
}

type UserProfileRepository struct {
	Backend cms.Backend
	Media   MediaURLResolver
}

func NewUserProfileRepository(backend cms.Backend, media MediaURLResolver) *UserProfileRepository {
	return &UserProfileRepository{Backend: backend, Media: media}
}

// Resolve 去重后一次查询 id in (...) OR documentId in (...)，并展开头像
func (r *UserProfileRepository) Resolve(ctx context.Context, ids []model.UserIdentifier) []model.UserProfile {
	var numeric []int64
	var docs []string
	seenID := map[int64]bool{}
	seenDoc := map[string]bool{}
	for _, id := range ids {
		if id.ID > 0 && !seenID[id.ID] {
			seenID[id.ID] = true
			numeric = append(numeric, id.ID)
		}
		if id.DocumentID != "" && !seenDoc[id.DocumentID] {
			seenDoc[id.DocumentID] = true
			docs = append(docs, id.DocumentID)
		}
	}
	if len(numeric) == 0 && len(docs) == 0 {
		return []model.UserProfile{}
	}

	q := cms.Query{
		Populate: []string{"avatar"},
		PageSize: len(numeric) + len(docs),
	}
	if len(numeric) > 0 {
		q.Or = append(q.Or, cms.In("id", numeric))
	}
	if len(docs) > 0 {
		q.Or = append(q.Or, cms.In("documentId", docs))
	}

	records, err := r.Backend.List(ctx, cms.CollectionUsers, q)
	if err != nil {
		logFailure("resolve user profiles failed", cms.CollectionUsers, err)
		return []model.UserProfile{}
	}
	out := make([]model.UserProfile, 0, len(records))
	for _, rec := range records {
		out = append(out, r.toModel(rec))
	}
	return out
}

func (r *UserProfileRepository) toModel(rec cms.Record) model.UserProfile {
	return model.UserProfile{
		ID:           rec.ID,
		DocumentID:   rec.DocumentID,
		Username:     rec.String("username"),
		Email:        rec.String("email"),
		DisplayName:  displayNameOf(rec),
		Bio:          rec.String("bio"),
		Avatar:       avatarFrom(rec, r.Media),
		MinGroupSize: rec.IntPtr("min_group_size"),
		MaxGroupSize: rec.IntPtr("max_group_size"),
	}
}
