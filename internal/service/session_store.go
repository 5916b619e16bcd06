package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"

	"github.com/go-redis/redis/v8"
)

// SessionStore 保存编辑会话的工作集快照（JSON）
type SessionStore interface {
	Load(ctx context.Context, courseID string) (*authoring.WorkingSet, error)
	Save(ctx context.Context, ws *authoring.WorkingSet) error
	Delete(ctx context.Context, courseID string) error
}

type MemorySessionStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{items: make(map[string][]byte)}
}

func (s *MemorySessionStore) Load(ctx context.Context, courseID string) (*authoring.WorkingSet, error) {
	s.mu.RLock()
	raw, ok := s.items[courseID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, util.ErrSessionNotFound)
	}
	return decodeSession(raw)
}

func (s *MemorySessionStore) Save(ctx context.Context, ws *authoring.WorkingSet) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[ws.CourseID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, courseID string) error {
	s.mu.Lock()
	delete(s.items, courseID)
	s.mu.Unlock()
	return nil
}

const sessionKeyPrefix = "course_studio:authoring:"

// RedisSessionStore 多实例部署时共享编辑会话
type RedisSessionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{Client: client, TTL: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, courseID string) (*authoring.WorkingSet, error) {
	raw, err := s.Client.Get(ctx, sessionKeyPrefix+courseID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("course %s: %w", courseID, util.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", courseID, err)
	}
	return decodeSession(raw)
}

func (s *RedisSessionStore) Save(ctx context.Context, ws *authoring.WorkingSet) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, sessionKeyPrefix+ws.CourseID, raw, s.TTL).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, courseID string) error {
	return s.Client.Del(ctx, sessionKeyPrefix+courseID).Err()
}

func decodeSession(raw []byte) (*authoring.WorkingSet, error) {
	var ws authoring.WorkingSet
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if ws.Contents == nil {
		ws.Contents = map[string][]model.CourseContent{}
	}
	return &ws, nil
}
