package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const openConcurrency = 4

// AuthoringService 课程编辑器的工作集协调：先改本地视图，再写后端，失败时整表回滚
type AuthoringService struct {
	Courses  *repository.CourseRepository
	Sessions SessionStore
	Checker  CopyrightChecker

	mu sync.Mutex
}

func NewAuthoringService(courses *repository.CourseRepository, sessions SessionStore, checker CopyrightChecker) *AuthoringService {
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	if checker == nil {
		checker = DisabledCopyrightChecker{}
	}
	return &AuthoringService{Courses: courses, Sessions: sessions, Checker: checker}
}

// withSession 在锁内读改写会话，fn 中不做网络调用
func (s *AuthoringService) withSession(ctx context.Context, courseID string, fn func(ws *authoring.WorkingSet) error) (*authoring.WorkingSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.Sessions.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := fn(ws); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return ws, nil
}

// Open 从后端加载课程、章节和内容；已有会话中未完成的待保存内容会保留
func (s *AuthoringService) Open(ctx context.Context, ref model.Ref) (*authoring.WorkingSet, error) {
	courseID, err := s.Courses.ResolveCourse(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve course: %w", err)
	}
	basics, err := s.Courses.GetBasics(ctx, courseID)
	if err != nil {
		return nil, err
	}
	materials, err := s.Courses.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}

	ws := authoring.NewWorkingSet(*basics)
	ws.CourseID = courseID
	ws.Materials = materials

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(openConcurrency)
	for _, m := range materials {
		materialID := m.DocumentID
		g.Go(func() error {
			contents, err := s.Courses.ListContents(gctx, materialID)
			if err != nil {
				return fmt.Errorf("load contents of %s: %w", materialID, err)
			}
			mu.Lock()
			ws.Contents[materialID] = contents
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ws.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, err := s.Sessions.Load(ctx, courseID); err == nil {
		ws.Pending = prev.Pending
		ws.Pending.Compact()
	}
	if err := s.Sessions.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return ws, nil
}

// ResolveCourse 路由参数可以是数字 id 或 documentId
func (s *AuthoringService) ResolveCourse(ctx context.Context, ref model.Ref) (string, error) {
	return s.Courses.ResolveCourse(ctx, ref)
}

// CourseOwner 返回课程 documentId 与其作者，作者为空表示课程未指定归属
func (s *AuthoringService) CourseOwner(ctx context.Context, ref model.Ref) (string, *model.UserSummary, error) {
	courseID, err := s.Courses.ResolveCourse(ctx, ref)
	if err != nil {
		return "", nil, err
	}
	basics, err := s.Courses.GetBasics(ctx, courseID)
	if err != nil {
		return "", nil, err
	}
	return courseID, basics.Instructor, nil
}

func (s *AuthoringService) Session(ctx context.Context, courseID string) (*authoring.WorkingSet, error) {
	return s.Sessions.Load(ctx, courseID)
}

func (s *AuthoringService) Close(ctx context.Context, courseID string) error {
	return s.Sessions.Delete(ctx, courseID)
}

// UpdateBasics 发布状态只能通过 Publish 修改
func (s *AuthoringService) UpdateBasics(ctx context.Context, courseID string, basics model.CourseBasics) (*model.CourseBasics, error) {
	if _, err := s.Sessions.Load(ctx, courseID); err != nil {
		return nil, err
	}
	basics.Status = ""
	updated, err := s.Courses.UpdateBasics(ctx, courseID, basics)
	if err != nil {
		return nil, fmt.Errorf("update basics: %w", err)
	}
	if _, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		ws.Basics = *updated
		return nil
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *AuthoringService) AddMaterial(ctx context.Context, courseID string, m model.CourseMaterial) (*model.CourseMaterial, error) {
	ws, err := s.Sessions.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	m.OrderIndex = len(ws.Materials)
	created, err := s.Courses.CreateMaterial(ctx, courseID, m)
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	if _, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		ws.Materials = append(ws.Materials, *created)
		ws.Contents[created.DocumentID] = []model.CourseContent{}
		return nil
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// AddContent 先以 saving 状态进入待保存列表，再写后端。
// 写入失败时条目变为 error，返回的 error 只表示请求本身无效。
func (s *AuthoringService) AddContent(ctx context.Context, courseID, materialID string, draft model.CourseContent) (authoring.PendingItem, error) {
	if err := authoring.ValidateContent(draft); err != nil {
		return authoring.PendingItem{}, err
	}
	localID := "local-" + uuid.NewString()
	_, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		if !ws.HasMaterial(materialID) {
			return fmt.Errorf("material %s: %w", materialID, util.ErrMaterialNotFound)
		}
		draft.DocumentID = ""
		draft.MaterialID = materialID
		draft.OrderIndex = ws.NextContentIndex(materialID)
		ws.Pending.Append(authoring.PendingEvent{
			LocalID:    localID,
			MaterialID: materialID,
			Status:     authoring.StatusSaving,
			Content:    draft,
		})
		return nil
	})
	if err != nil {
		return authoring.PendingItem{}, err
	}
	return s.persist(ctx, courseID, localID, draft)
}

// RetryContent 用原始内容重新保存；失败的那次没有在后端留下记录
func (s *AuthoringService) RetryContent(ctx context.Context, courseID, localID string) (authoring.PendingItem, error) {
	var item authoring.PendingItem
	retry := false
	_, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		it, ok := ws.Pending.Lookup(localID)
		if !ok {
			return fmt.Errorf("%s: %w", localID, util.ErrPendingNotFound)
		}
		item = it
		if it.Status != authoring.StatusError {
			return nil
		}
		retry = true
		ws.Pending.Append(authoring.PendingEvent{
			LocalID:    localID,
			MaterialID: it.MaterialID,
			Status:     authoring.StatusSaving,
			Content:    it.Content,
		})
		return nil
	})
	if err != nil || !retry {
		return item, err
	}
	return s.persist(ctx, courseID, localID, item.Content)
}

func (s *AuthoringService) persist(ctx context.Context, courseID, localID string, draft model.CourseContent) (authoring.PendingItem, error) {
	saved, createErr := s.Courses.CreateContent(ctx, draft.MaterialID, draft)

	ws, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		if createErr != nil {
			ws.Pending.Append(authoring.PendingEvent{
				LocalID:    localID,
				MaterialID: draft.MaterialID,
				Status:     authoring.StatusError,
				Message:    createErr.Error(),
				Content:    draft,
			})
			return nil
		}
		ws.Confirm(localID, *saved)
		return nil
	})
	if err != nil {
		return authoring.PendingItem{}, err
	}
	if createErr != nil {
		logger.Log.Warn("Content save failed",
			zap.String("course", courseID), zap.String("localId", localID), zap.Error(createErr))
	}
	item, _ := ws.Pending.Lookup(localID)
	return item, nil
}

func (s *AuthoringService) ReorderMaterials(ctx context.Context, courseID string, from, to int) ([]model.CourseMaterial, error) {
	var snap authoring.Snapshot
	var changes []authoring.IndexChange
	ws, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		moved, ch, err := authoring.ReorderMaterials(ws.Materials, from, to)
		if err != nil {
			return err
		}
		snap = ws.SnapshotMaterials()
		ws.Materials = moved
		changes = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = applyIndexChanges(changes, func(ch authoring.IndexChange) error {
		return s.Courses.SetMaterialOrder(ctx, ch.DocumentID, ch.OrderIndex)
	})
	if err != nil {
		restored := snap.Materials
		if ws := s.rollback(ctx, courseID, snap); ws != nil {
			restored = ws.Materials
		}
		return restored, fmt.Errorf("reorder materials: %w", err)
	}
	return ws.Materials, nil
}

func (s *AuthoringService) ReorderContents(ctx context.Context, courseID, materialID string, from, to int) ([]model.CourseContent, error) {
	var snap authoring.Snapshot
	var changes []authoring.IndexChange
	ws, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		if !ws.HasMaterial(materialID) {
			return fmt.Errorf("material %s: %w", materialID, util.ErrMaterialNotFound)
		}
		moved, ch, err := authoring.ReorderContents(ws.Contents[materialID], from, to)
		if err != nil {
			return err
		}
		snap = ws.SnapshotContents(materialID)
		ws.Contents[materialID] = moved
		changes = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = applyIndexChanges(changes, func(ch authoring.IndexChange) error {
		return s.Courses.SetContentPlacement(ctx, ch.DocumentID, "", ch.OrderIndex)
	})
	if err != nil {
		restored := snap.Contents[materialID]
		if ws := s.rollback(ctx, courseID, snap); ws != nil {
			restored = ws.Contents[materialID]
		}
		return restored, fmt.Errorf("reorder contents: %w", err)
	}
	return ws.Contents[materialID], nil
}

// MoveContent 跨章节移动，源和目标两个列表一起提交或一起回滚
func (s *AuthoringService) MoveContent(ctx context.Context, courseID, contentID, toMaterial string, toIndex int) (*authoring.WorkingSet, error) {
	ws, err := s.Sessions.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	fromMaterial, fromIndex, ok := ws.FindContent(contentID)
	if !ok {
		return nil, fmt.Errorf("content %s: %w", contentID, util.ErrContentNotFound)
	}
	if fromMaterial == toMaterial {
		if _, err := s.ReorderContents(ctx, courseID, toMaterial, fromIndex, toIndex); err != nil {
			return nil, err
		}
		return s.Sessions.Load(ctx, courseID)
	}

	var snap authoring.Snapshot
	var changes []authoring.IndexChange
	ws, err = s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		if !ws.HasMaterial(toMaterial) {
			return fmt.Errorf("material %s: %w", toMaterial, util.ErrMaterialNotFound)
		}
		src, idx, ok := ws.FindContent(contentID)
		if !ok || src != fromMaterial {
			return fmt.Errorf("content %s: %w", contentID, util.ErrContentNotFound)
		}
		newSrc, newDst, ch, err := authoring.MoveContent(ws.Contents[src], ws.Contents[toMaterial], idx, toIndex, toMaterial)
		if err != nil {
			return err
		}
		snap = ws.SnapshotContents(src, toMaterial)
		ws.Contents[src] = newSrc
		ws.Contents[toMaterial] = newDst
		changes = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = applyIndexChanges(changes, func(ch authoring.IndexChange) error {
		return s.Courses.SetContentPlacement(ctx, ch.DocumentID, ch.MaterialID, ch.OrderIndex)
	})
	if err != nil {
		s.rollback(ctx, courseID, snap)
		return nil, fmt.Errorf("move content: %w", err)
	}
	return ws, nil
}

// applyIndexChanges 并发写入并等待全部完成，任一失败即视为整体失败
func applyIndexChanges(changes []authoring.IndexChange, apply func(authoring.IndexChange) error) error {
	var g errgroup.Group
	for _, ch := range changes {
		g.Go(func() error {
			return apply(ch)
		})
	}
	return g.Wait()
}

func (s *AuthoringService) rollback(ctx context.Context, courseID string, snap authoring.Snapshot) *authoring.WorkingSet {
	ws, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		ws.Restore(snap)
		return nil
	})
	if err != nil {
		logger.Log.Error("Failed to roll back working set", zap.String("course", courseID), zap.Error(err))
		return nil
	}
	return ws
}

// RequestCopyrightCheck 标记为 checking 后调用检测服务，结果写回内容记录
func (s *AuthoringService) RequestCopyrightCheck(ctx context.Context, courseID, contentID string) (*model.CourseContent, error) {
	var content model.CourseContent
	var previous model.CopyrightCheck
	if _, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		mid, idx, ok := ws.FindContent(contentID)
		if !ok {
			return fmt.Errorf("content %s: %w", contentID, util.ErrContentNotFound)
		}
		content = ws.Contents[mid][idx]
		previous = content.Copyright
		content.Copyright = model.CopyrightCheck{Status: model.CopyrightChecking}
		ws.Contents[mid][idx] = content
		return nil
	}); err != nil {
		return nil, err
	}

	check, err := s.runCheck(ctx, content, previous)
	if err != nil {
		s.setCopyright(ctx, courseID, contentID, previous)
		return nil, err
	}
	content.Copyright = check
	s.setCopyright(ctx, courseID, contentID, check)
	return &content, nil
}

func (s *AuthoringService) runCheck(ctx context.Context, content model.CourseContent, previous model.CopyrightCheck) (model.CopyrightCheck, error) {
	if err := s.Courses.SetCopyright(ctx, content.DocumentID, model.CopyrightCheck{Status: model.CopyrightChecking}); err != nil {
		return model.CopyrightCheck{}, fmt.Errorf("mark checking: %w", err)
	}
	check, err := s.Checker.Check(ctx, content)
	if err != nil {
		if !errors.Is(err, util.ErrCopyrightDisabled) {
			err = fmt.Errorf("copyright check: %w", err)
		}
		if restoreErr := s.Courses.SetCopyright(ctx, content.DocumentID, previous); restoreErr != nil {
			logger.Log.Warn("Failed to restore copyright status", zap.String("content", content.DocumentID), zap.Error(restoreErr))
		}
		return model.CopyrightCheck{}, err
	}
	if err := s.Courses.SetCopyright(ctx, content.DocumentID, check); err != nil {
		return model.CopyrightCheck{}, fmt.Errorf("save copyright result: %w", err)
	}
	return check, nil
}

func (s *AuthoringService) setCopyright(ctx context.Context, courseID, contentID string, check model.CopyrightCheck) {
	if _, err := s.withSession(ctx, courseID, func(ws *authoring.WorkingSet) error {
		mid, idx, ok := ws.FindContent(contentID)
		if ok {
			ws.Contents[mid][idx].Copyright = check
		}
		return nil
	}); err != nil {
		logger.Log.Warn("Failed to update session copyright", zap.String("content", contentID), zap.Error(err))
	}
}

// Publish 重新加载课程后执行版权闸门，被拦截时返回问题列表与 ErrPublishBlocked
func (s *AuthoringService) Publish(ctx context.Context, courseID string, target model.CourseStatus) (authoring.GateResult, error) {
	switch target {
	case model.CourseDraft, model.CoursePublished, model.CourseArchived:
	default:
		return authoring.GateResult{}, fmt.Errorf("unknown course status %q", target)
	}
	ws, err := s.Open(ctx, model.Ref(courseID))
	if err != nil {
		return authoring.GateResult{}, err
	}
	result := authoring.CheckPublish(ws.Basics, target, ws.AllContents())
	if !result.Allowed {
		return result, util.ErrPublishBlocked
	}
	if err := s.Courses.SetStatus(ctx, ws.CourseID, target); err != nil {
		return result, fmt.Errorf("set course status: %w", err)
	}
	_, err = s.withSession(ctx, ws.CourseID, func(ws *authoring.WorkingSet) error {
		ws.Basics.Status = target
		return nil
	})
	return result, err
}
