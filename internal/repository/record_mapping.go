package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"course_studio_backend/internal/model"
	"course_studio_backend/pkg/cms"
	"course_studio_backend/pkg/logger"

	"go.uber.org/zap"
)

// MediaURLResolver 把 CMS 返回的相对媒体地址转换为可访问地址
type MediaURLResolver interface {
	ResolveMediaURL(raw string) string
}

// 记录层失败只记日志，调用方拿到的是 nil / 空切片 / false
func logFailure(msg, collection string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("collection", collection), zap.Error(err))
	logger.Log.Error(msg, fields...)
}

func fallbackUserName(id int64) string {
	return fmt.Sprintf("User #%d", id)
}

func relationRef(rec cms.Record, key string) *model.EntityRef {
	rel := rec.Relation(key)
	if rel == nil {
		return nil
	}
	return &model.EntityRef{ID: rel.ID, DocumentID: rel.DocumentID}
}

func resolveMedia(media MediaURLResolver, raw string) string {
	if raw == "" || media == nil {
		return raw
	}
	return media.ResolveMediaURL(raw)
}

func avatarFrom(user cms.Record, media MediaURLResolver) *model.Avatar {
	rel := user.Relation("avatar")
	if rel == nil || rel.String("url") == "" {
		return nil
	}
	a := &model.Avatar{
		URL:  resolveMedia(media, rel.String("url")),
		Name: rel.String("name"),
		Mime: rel.String("mime"),
	}
	if w := rel.IntPtr("width"); w != nil {
		a.Width = *w
	}
	if h := rel.IntPtr("height"); h != nil {
		a.Height = *h
	}
	return a
}

func displayNameOf(user cms.Record) string {
	for _, key := range []string{"display_name", "username"} {
		if s := user.String(key); s != "" {
			return s
		}
	}
	return fallbackUserName(user.ID)
}

func userSummaryFrom(rec cms.Record, key string, media MediaURLResolver) *model.UserSummary {
	rel := rec.Relation(key)
	if rel == nil {
		return nil
	}
	s := &model.UserSummary{
		ID:          rel.ID,
		DocumentID:  rel.DocumentID,
		Username:    rel.String("username"),
		Email:       rel.String("email"),
		DisplayName: displayNameOf(*rel),
	}
	if a := avatarFrom(*rel, media); a != nil {
		s.AvatarURL = a.URL
	}
	return s
}

// needsBackfill 展开的用户信息不完整（兜底名称或缺头像）
func needsBackfill(u *model.UserSummary) bool {
	if u == nil {
		return false
	}
	return u.DisplayName == "" || u.DisplayName == fallbackUserName(u.ID) || u.AvatarURL == ""
}

// backfillUsers 批量补全用户展示信息，失败不影响返回
func backfillUsers(ctx context.Context, profiles UserProfileResolver, users []*model.UserSummary) {
	if profiles == nil {
		return
	}
	var ids []model.UserIdentifier
	for _, u := range users {
		if needsBackfill(u) {
			ids = append(ids, model.UserIdentifier{ID: u.ID, DocumentID: u.DocumentID})
		}
	}
	if len(ids) == 0 {
		return
	}
	resolved := profiles.Resolve(ctx, ids)
	if len(resolved) == 0 {
		return
	}
	byID := make(map[int64]model.UserProfile, len(resolved))
	byDoc := make(map[string]model.UserProfile, len(resolved))
	for _, p := range resolved {
		byID[p.ID] = p
		if p.DocumentID != "" {
			byDoc[p.DocumentID] = p
		}
	}
	for _, u := range users {
		if !needsBackfill(u) {
			continue
		}
		p, ok := byID[u.ID]
		if !ok {
			p, ok = byDoc[u.DocumentID]
		}
		if !ok {
			continue
		}
		if p.DisplayName != "" {
			u.DisplayName = p.DisplayName
		}
		if u.Username == "" {
			u.Username = p.Username
		}
		if u.Email == "" {
			u.Email = p.Email
		}
		if p.Avatar != nil && p.Avatar.URL != "" {
			u.AvatarURL = p.Avatar.URL
		}
	}
}

// refFilter 数字引用按 field.id 过滤，否则按 field.documentId
func refFilter(field string, ref model.Ref) (cms.Filter, bool) {
	if ref.IsZero() {
		return cms.Filter{}, false
	}
	if id, ok := ref.NumericID(); ok {
		return cms.Eq(field+".id", id), true
	}
	return cms.Eq(field+".documentId", ref.String()), true
}

func addRefFilter(q *cms.Query, field string, ref model.Ref) {
	if f, ok := refFilter(field, ref); ok {
		q.Filters = append(q.Filters, f)
	}
}

func timeValue(t *time.Time) string {
	if t == nil {
		return cms.FormatTime(time.Now())
	}
	return cms.FormatTime(*t)
}

func isNotFound(err error) bool {
	return errors.Is(err, cms.ErrNotFound)
}
