package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*ConversationRepo)(nil)

// ConversationRepo stores each conversation as one JSON value with a sliding
// TTL. It lets several server replicas share live sessions; it is not a
// durable store.
type ConversationRepo struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	cipher Cipher
}

// Cipher seals stored values. *security.Sealer implements it.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type RepoOption func(*ConversationRepo)

// WithCipher encrypts conversation values before they reach Redis.
func WithCipher(c Cipher) RepoOption {
	return func(r *ConversationRepo) { r.cipher = c }
}

func NewConversationRepo(client RedisClient, prefix string, ttl time.Duration, opts ...RepoOption) *ConversationRepo {
	if prefix == "" {
		prefix = "mindfulbot:"
	}
	r := &ConversationRepo{client: client, prefix: prefix, ttl: ttl}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *ConversationRepo) key(id string) string {
	return r.prefix + "conversation:" + id
}

func (r *ConversationRepo) Save(ctx context.Context, c *model.Conversation) error {
	if c == nil || c.ID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if r.cipher != nil {
		if data, err = r.cipher.Seal(data); err != nil {
			return fmt.Errorf("seal conversation: %w", err)
		}
	}
	return r.client.Store(ctx, r.key(c.ID), data, r.ttl)
}

func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	raw, err := r.client.Load(ctx, r.key(id))
	if errors.Is(err, Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.cipher != nil {
		if raw, err = r.cipher.Open(raw); err != nil {
			return nil, fmt.Errorf("open conversation %s: %w", id, err)
		}
	}
	var c model.Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &c, nil
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	existed, err := r.client.Remove(ctx, r.key(id))
	if err != nil {
		return err
	}
	if !existed {
		return domain.ErrNotFound
	}
	return nil
}
