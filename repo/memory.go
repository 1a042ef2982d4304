package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"HealthIntake/model"
)

// MemoryStore keeps submissions in a process-local map
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[string]model.Submission
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[string]model.Submission)}
}

func (m *MemoryStore) Create(_ context.Context, s model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.submissions[s.ID]; exists {
		return fmt.Errorf("questionnaire %s already exists", s.ID)
	}
	m.submissions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, model.ErrSubmissionNotFound
	}
	out := clone(s)
	return &out, nil
}

func (m *MemoryStore) GetMany(_ context.Context, ids []string) ([]model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Submission
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := m.submissions[id]; ok {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) SetMessageIDs(_ context.Context, id string, messageIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return model.ErrSubmissionNotFound
	}
	s.MessageIDs = append([]int(nil), messageIDs...)
	s.UpdatedAt = nowFunc().UTC()
	m.submissions[id] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[id]; !ok {
		return model.ErrSubmissionNotFound
	}
	delete(m.submissions, id)
	return nil
}

func (m *MemoryStore) FindByContact(_ context.Context, query model.ContactKey) ([]model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Submission
	for _, s := range m.submissions {
		if s.Contact.Key().Matches(query) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteBefore(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.submissions {
		if s.CreatedAt.Before(t) {
			delete(m.submissions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.submissions), nil
}

func (m *MemoryStore) Close() error { return nil }

// clone copies the reference fields so callers never share maps with the store
func clone(s model.Submission) model.Submission {
	answers := make(model.Answers, len(s.Answers))
	for k, v := range s.Answers {
		v.Values = append([]string(nil), v.Values...)
		answers[k] = v
	}
	s.Answers = answers
	additional := make(map[string]string, len(s.Additional))
	for k, v := range s.Additional {
		additional[k] = v
	}
	s.Additional = additional
	s.MessageIDs = append([]int(nil), s.MessageIDs...)
	return s
}
