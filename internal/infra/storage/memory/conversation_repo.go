package memory

import (
	"context"
	"sync"
	"time"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*ConversationRepo)(nil)

// ConversationRepo keeps conversations in process memory. It stores and
// returns copies so callers never share a timeline slice.
type ConversationRepo struct {
	mu    sync.RWMutex
	convs map[string]*model.Conversation
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{convs: make(map[string]*model.Conversation)}
}

func (r *ConversationRepo) Save(_ context.Context, c *model.Conversation) error {
	if c == nil || c.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[c.ID] = c.Clone()
	return nil
}

func (r *ConversationRepo) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *ConversationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.convs, id)
	return nil
}

// DeleteIdle drops conversations not updated since before. Conversations
// with a reply in flight are kept.
func (r *ConversationRepo) DeleteIdle(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.convs {
		if !c.Typing && c.IdleSince(before) {
			delete(r.convs, id)
			n++
		}
	}
	return n, nil
}

func (r *ConversationRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}
