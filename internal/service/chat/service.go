package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
)

var (
	ErrKeyRequired = errors.New("session key is required")
	ErrInvalidRole = errors.New("role must be human or assistant")
)

// Store 按会话保存对话历史。会话按需创建、不过期，
// 只能通过 Clear 清空。
type Store interface {
	GetOrCreate(ctx context.Context, key string) (chat.Session, error)
	Append(ctx context.Context, key string, role chat.Role, content string) error
	Clear(ctx context.Context, key string) error
	Export(ctx context.Context, key string) ([]chat.Record, error)
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context, key string) (int, error)
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewMemoryStore 创建空存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// GetOrCreate 返回会话快照，不存在则创建
func (s *MemoryStore) GetOrCreate(_ context.Context, key string) (chat.Session, error) {
	if key == "" {
		return chat.Session{}, ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.ensureLocked(key)
	session.Messages = append([]chat.Message(nil), s.messages[key]...)
	return session, nil
}

// Append 追加一条消息，首次使用时创建会话
func (s *MemoryStore) Append(_ context.Context, key string, role chat.Role, content string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(key)
	s.messages[key] = append(s.messages[key], chat.Message{
		ID:         uuid.NewString(),
		SessionKey: key,
		Role:       role,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// Clear 清空历史，未知 key 不做处理
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		s.messages[key] = make([]chat.Message, 0, 16)
	}
	return nil
}

// Export 返回历史副本，未知 key 返回空列表
func (s *MemoryStore) Export(_ context.Context, key string) ([]chat.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return chat.Records(s.messages[key]), nil
}

// List 按创建顺序返回会话 key
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]chat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Key < sessions[j].Key
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	keys := make([]string, len(sessions))
	for i, session := range sessions {
		keys[i] = session.Key
	}
	return keys, nil
}

// Count 已存消息数，未知 key 为 0
func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages[key]), nil
}

func (s *MemoryStore) ensureLocked(key string) chat.Session {
	session, ok := s.sessions[key]
	if !ok {
		session = chat.Session{Key: key, CreatedAt: time.Now().UTC()}
		s.sessions[key] = session
		s.messages[key] = make([]chat.Message, 0, 16)
	}
	return session
}
