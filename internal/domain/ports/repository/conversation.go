package repository

import (
	"context"

	"mindfulbot/internal/domain/model"
)

// -----------------------------
// Conversations
// -----------------------------

type ConversationRepository interface {
	Save(ctx context.Context, c *model.Conversation) error
	// FindByID returns a copy of the stored conversation or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	Delete(ctx context.Context, id string) error
}
