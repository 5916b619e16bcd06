package repository

import (
	"context"
	"fmt"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
)

// CourseRepository 课程编辑器使用的课程/章节/内容读写。
// 与答题记录不同，这里把错误交给上层，编辑器需要展示失败原因并允许重试。
type CourseRepository struct {
	Backend  cms.Backend
	Resolver RelationResolver
}

var basicsPopulate = []string{"categories", "instructor"}

func NewCourseRepository(backend cms.Backend, resolver RelationResolver) *CourseRepository {
	return &CourseRepository{Backend: backend, Resolver: resolver}
}

func (r *CourseRepository) ResolveCourse(ctx context.Context, ref model.Ref) (string, error) {
	return ResolveRef(ctx, r.Resolver, cms.CollectionCourses, ref)
}

func (r *CourseRepository) GetBasics(ctx context.Context, courseDoc string) (*model.CourseBasics, error) {
	rec, err := r.Backend.Get(ctx, cms.CollectionCourses, courseDoc, basicsPopulate...)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("course %s: %w", courseDoc, util.ErrCourseNotFound)
		}
		return nil, err
	}
	b := toBasics(*rec)
	return &b, nil
}

// UpdateBasics categories 为 documentId 列表，整体替换
func (r *CourseRepository) UpdateBasics(ctx context.Context, courseDoc string, b model.CourseBasics) (*model.CourseBasics, error) {
	data := map[string]any{
		"title":       b.Title,
		"description": b.Description,
		"price":       b.Price,
		"is_free":     b.IsFree,
		"language":    b.Language,
		"level":       b.Level,
		"tags":        b.Tags,
	}
	if b.Status != "" {
		data["status"] = string(b.Status)
	}
	if b.DiscountPrice != nil {
		data["discount_price"] = *b.DiscountPrice
	} else {
		data["discount_price"] = nil
	}
	if b.Categories != nil {
		set := make([]map[string]any, 0, len(b.Categories))
		for _, c := range b.Categories {
			if c.DocumentID != "" {
				set = append(set, map[string]any{"documentId": c.DocumentID})
			}
		}
		data["categories"] = map[string]any{"set": set}
	}
	rec, err := r.Backend.Update(ctx, cms.CollectionCourses, courseDoc, data, basicsPopulate...)
	if err != nil {
		return nil, err
	}
	out := toBasics(*rec)
	return &out, nil
}

func (r *CourseRepository) SetStatus(ctx context.Context, courseDoc string, status model.CourseStatus) error {
	_, err := r.Backend.Update(ctx, cms.CollectionCourses, courseDoc, map[string]any{"status": string(status)})
	return err
}

func (r *CourseRepository) ListMaterials(ctx context.Context, courseDoc string) ([]model.CourseMaterial, error) {
	records, err := r.Backend.List(ctx, cms.CollectionCourseMaterials, cms.Query{
		Filters: []cms.Filter{cms.Eq("course.documentId", courseDoc)},
		Sort:    []string{"order_index:asc", "id:asc"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.CourseMaterial, 0, len(records))
	for _, rec := range records {
		out = append(out, toMaterial(rec))
	}
	return out, nil
}

func (r *CourseRepository) CreateMaterial(ctx context.Context, courseDoc string, m model.CourseMaterial) (*model.CourseMaterial, error) {
	rec, err := r.Backend.Create(ctx, cms.CollectionCourseMaterials, map[string]any{
		"course":      cms.Connect(courseDoc),
		"title":       m.Title,
		"description": m.Description,
		"order_index": m.OrderIndex,
	})
	if err != nil {
		return nil, err
	}
	out := toMaterial(*rec)
	return &out, nil
}

func (r *CourseRepository) SetMaterialOrder(ctx context.Context, materialDoc string, index int) error {
	_, err := r.Backend.Update(ctx, cms.CollectionCourseMaterials, materialDoc, map[string]any{"order_index": index})
	return err
}

func (r *CourseRepository) ListContents(ctx context.Context, materialDoc string) ([]model.CourseContent, error) {
	records, err := r.Backend.List(ctx, cms.CollectionCourseContents, cms.Query{
		Filters: []cms.Filter{cms.Eq("material.documentId", materialDoc)},
		Sort:    []string{"order_index:asc", "id:asc"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.CourseContent, 0, len(records))
	for _, rec := range records {
		c := toContent(rec)
		c.MaterialID = materialDoc
		out = append(out, c)
	}
	return out, nil
}

func (r *CourseRepository) GetContent(ctx context.Context, contentDoc string) (*model.CourseContent, error) {
	rec, err := r.Backend.Get(ctx, cms.CollectionCourseContents, contentDoc, "material")
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", contentDoc, util.ErrContentNotFound)
		}
		return nil, err
	}
	c := toContent(*rec)
	return &c, nil
}

func (r *CourseRepository) CreateContent(ctx context.Context, materialDoc string, c model.CourseContent) (*model.CourseContent, error) {
	data := map[string]any{
		"material":    cms.Connect(materialDoc),
		"type":        string(c.Type),
		"title":       c.Title,
		"url":         c.URL,
		"article":     c.Article,
		"order_index": c.OrderIndex,
	}
	if c.DurationSeconds != nil {
		data["duration_seconds"] = *c.DurationSeconds
	}
	if c.Copyright.Status != model.CopyrightUnchecked {
		data["copyright_check_status"] = string(c.Copyright.Status)
	}
	rec, err := r.Backend.Create(ctx, cms.CollectionCourseContents, data)
	if err != nil {
		return nil, err
	}
	out := toContent(*rec)
	out.MaterialID = materialDoc
	return &out, nil
}

// SetContentPlacement 更新排序；materialDoc 非空时同时改挂到该章节
func (r *CourseRepository) SetContentPlacement(ctx context.Context, contentDoc, materialDoc string, index int) error {
	data := map[string]any{"order_index": index}
	if materialDoc != "" {
		data["material"] = cms.Connect(materialDoc)
	}
	_, err := r.Backend.Update(ctx, cms.CollectionCourseContents, contentDoc, data)
	return err
}

func (r *CourseRepository) SetCopyright(ctx context.Context, contentDoc string, check model.CopyrightCheck) error {
	data := map[string]any{
		"copyright_check_status": string(check.Status),
		"copyright_violations":   nonNil(check.Violations),
		"copyright_warnings":     nonNil(check.Warnings),
	}
	if check.CheckedAt != nil {
		data["copyright_checked_at"] = cms.FormatTime(*check.CheckedAt)
	}
	_, err := r.Backend.Update(ctx, cms.CollectionCourseContents, contentDoc, data)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toBasics(rec cms.Record) model.CourseBasics {
	b := model.CourseBasics{
		ID:            rec.ID,
		DocumentID:    rec.DocumentID,
		Title:         rec.String("title"),
		Description:   rec.String("description"),
		DiscountPrice: rec.FloatPtr("discount_price"),
		IsFree:        rec.Bool("is_free"),
		Status:        model.CourseStatus(rec.String("status")),
		Language:      rec.String("language"),
		Level:         rec.String("level"),
		Tags:          rec.StringSlice("tags"),
	}
	if p := rec.FloatPtr("price"); p != nil {
		b.Price = *p
	}
	if b.Status == "" {
		b.Status = model.CourseDraft
	}
	b.Instructor = userSummaryFrom(rec, "instructor", nil)
	switch v := rec.Fields["categories"].(type) {
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				c := cms.RecordFromMap(m)
				b.Categories = append(b.Categories, model.EntityRef{ID: c.ID, DocumentID: c.DocumentID})
			}
		}
	case map[string]any:
		c := cms.RecordFromMap(v)
		b.Categories = []model.EntityRef{{ID: c.ID, DocumentID: c.DocumentID}}
	}
	return b
}

func toMaterial(rec cms.Record) model.CourseMaterial {
	return model.CourseMaterial{
		ID:          rec.ID,
		DocumentID:  rec.DocumentID,
		Title:       rec.String("title"),
		Description: rec.String("description"),
		OrderIndex:  int(rec.Int64("order_index")),
	}
}

func toContent(rec cms.Record) model.CourseContent {
	c := model.CourseContent{
		ID:              rec.ID,
		DocumentID:      rec.DocumentID,
		Type:            model.ContentType(rec.String("type")),
		Title:           rec.String("title"),
		URL:             rec.String("url"),
		Article:         rec.String("article"),
		OrderIndex:      int(rec.Int64("order_index")),
		DurationSeconds: rec.IntPtr("duration_seconds"),
		Copyright: model.CopyrightCheck{
			Status:     model.CopyrightStatus(rec.String("copyright_check_status")),
			Violations: rec.StringSlice("copyright_violations"),
			Warnings:   rec.StringSlice("copyright_warnings"),
			CheckedAt:  rec.Time("copyright_checked_at"),
		},
	}
	if m := rec.Relation("material"); m != nil {
		c.MaterialID = m.DocumentID
	}
	return c
}
