package repository

import (
	"context"
	"fmt"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
)

// RelationResolver 把数字 id 换成 documentId。创建/更新时关联必须按 documentId 写入，
// 否则后台管理界面看不到这条关联。
type RelationResolver interface {
	DocumentID(ctx context.Context, collection string, id int64) (string, error)
}

type CMSRelationResolver struct {
	Backend cms.Backend
}

func NewRelationResolver(backend cms.Backend) *CMSRelationResolver {
	return &CMSRelationResolver{Backend: backend}
}

func (r *CMSRelationResolver) DocumentID(ctx context.Context, collection string, id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("%s #%d: %w", collection, id, util.ErrInvalidReference)
	}
	records, err := r.Backend.List(ctx, collection, cms.Query{
		Filters:  []cms.Filter{cms.Eq("id", id)},
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("resolve %s #%d: %w", collection, id, err)
	}
	if len(records) == 0 || records[0].DocumentID == "" {
		return "", fmt.Errorf("resolve %s #%d: %w", collection, id, util.ErrRelationNotFound)
	}
	return records[0].DocumentID, nil
}

// ResolveRef 纯数字引用走一次查询，其余直接当作 documentId
func ResolveRef(ctx context.Context, resolver RelationResolver, collection string, ref model.Ref) (string, error) {
	if ref.IsZero() {
		return "", fmt.Errorf("%s: %w", collection, util.ErrInvalidReference)
	}
	if id, ok := ref.NumericID(); ok {
		return resolver.DocumentID(ctx, collection, id)
	}
	return ref.String(), nil
}
