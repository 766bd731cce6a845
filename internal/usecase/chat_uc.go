// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/domain/ports/adapter"
	"mindfulbot/internal/domain/ports/repository"
	"mindfulbot/internal/infra/logging"
	"mindfulbot/internal/infra/metrics"
	"mindfulbot/internal/responder"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	StartChat(ctx context.Context) (*model.Conversation, error)
	// Submit appends a user message and schedules the bot reply. Blank input
	// is a silent no-op and returns (nil, nil).
	Submit(ctx context.Context, sessionID, text string) (*model.Message, error)
	Timeline(ctx context.Context, sessionID string) (*model.Conversation, error)
	EndChat(ctx context.Context, sessionID string) error
}

// Selector picks the bot reply for a user message.
type Selector interface {
	Select(input string) responder.Reply
}

// Delayer runs fn once, later, and reports the delay it chose.
type Delayer interface {
	Schedule(fn func()) time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Locker guards one conversation across processes sharing its store.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

type ChatOption func(*chatUC)

func WithClock(now func() time.Time) ChatOption {
	return func(c *chatUC) { c.now = now }
}

// WithLimiter caps submissions per session.
func WithLimiter(l Limiter) ChatOption {
	return func(c *chatUC) { c.limiter = l }
}

// WithLocker adds a shared lock around every conversation update, for
// stores that several replicas write to.
func WithLocker(l Locker) ChatOption {
	return func(c *chatUC) { c.locker = l }
}

// WithDevMode logs user text unredacted.
func WithDevMode(dev bool) ChatOption {
	return func(c *chatUC) { c.devMode = dev }
}

const (
	continuationTimeout = 10 * time.Second
	// a failed load in the continuation is retried this many times
	replyLoadRetries = 2
	replyLoadBackoff = 100 * time.Millisecond
)

type chatUC struct {
	convs    repository.ConversationRepository
	selector Selector
	delayer  Delayer
	events   adapter.EventPublisher
	greeting string
	log      *zerolog.Logger

	limiter Limiter
	locker  Locker
	now     func() time.Time
	devMode bool

	// guards load-mutate-save; replies land on timer goroutines
	mu sync.Mutex
}

// lock takes the process mutex and, when configured, the shared lock.
func (c *chatUC) lock(ctx context.Context, sessionID string) (func(), error) {
	c.mu.Lock()
	if c.locker == nil {
		return c.mu.Unlock, nil
	}
	release, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		c.mu.Unlock()
	}, nil
}

func NewChatUseCase(
	convs repository.ConversationRepository,
	selector Selector,
	delayer Delayer,
	events adapter.EventPublisher,
	greeting string,
	logger *zerolog.Logger,
	opts ...ChatOption,
) *chatUC {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &chatUC{
		convs:    convs,
		selector: selector,
		delayer:  delayer,
		events:   events,
		greeting: greeting,
		log:      logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *chatUC) StartChat(ctx context.Context) (*model.Conversation, error) {
	conv := model.NewConversation(uuid.NewString(), c.greeting, c.now())
	if err := c.convs.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	metrics.IncSessionStarted()
	logging.With(logging.WithSessID(ctx, conv.ID), c.log).Info().Msg("conversation started")
	return conv, nil
}

func (c *chatUC) Submit(ctx context.Context, sessionID, text string) (*model.Message, error) {
	ctx = logging.WithSessID(ctx, sessionID)
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.Submit")()

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if c.limiter != nil {
		ok, err := c.limiter.Allow(ctx, sessionID)
		switch {
		case err != nil:
			// fail open: a broken limiter must not silence the conversation
			log.Warn().Err(err).Msg("rate limiter unavailable")
		case !ok:
			metrics.IncRejected("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	msg, err := c.appendUserMessage(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("text", logging.Redact(text, c.devMode)).Msg("user message appended")

	metrics.TypingStarted()
	delay := c.delayer.Schedule(func() { c.reply(sessionID, text, log) })
	metrics.ObserveReplyDelay(delay)
	log.Debug().Dur("delay", delay).Msg("reply scheduled")
	return msg, nil
}

func (c *chatUC) appendUserMessage(ctx context.Context, sessionID, text string) (*model.Message, error) {
	unlock, err := c.lock(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			metrics.IncRejected("busy")
		}
		return nil, err
	}
	defer unlock()

	conv, err := c.convs.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncRejected("not_found")
		}
		return nil, err
	}
	if conv.Typing {
		metrics.IncRejected("pending")
		return nil, domain.ErrReplyPending
	}

	now := c.now()
	msg := model.NewMessage(model.SenderUser, text, now)
	conv.Append(msg)
	conv.SetTyping(true, now)
	if err := c.convs.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	c.events.Publish(model.MessageEvent(sessionID, msg))
	c.events.Publish(model.TypingEvent(sessionID, true))
	return &msg, nil
}

// reply is the delayed continuation of Submit. It runs detached from the
// request that scheduled it.
func (c *chatUC) reply(sessionID, text string, log *zerolog.Logger) {
	defer metrics.TypingStopped()

	ctx, cancel := context.WithTimeout(context.Background(), continuationTimeout)
	defer cancel()

	// a held lock expires after its TTL, well inside continuationTimeout
	unlock, err := c.lock(ctx, sessionID)
	for errors.Is(err, domain.ErrBusy) && ctx.Err() == nil {
		unlock, err = c.lock(ctx, sessionID)
	}
	if err != nil {
		// without the shared lock the flag cannot be cleared safely; the
		// store TTL ends the conversation
		log.Error().Err(err).Msg("lock conversation for reply")
		return
	}
	defer unlock()

	conv, err := c.loadForReply(ctx, sessionID, log)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Msg("conversation ended before reply; dropping it")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load conversation for reply")
		c.clearTyping(ctx, sessionID, log)
		return
	}

	r := c.selector.Select(text)
	now := c.now()
	bot := model.NewMessage(model.SenderBot, r.Text, now)
	conv.Append(bot)
	conv.SetTyping(false, now)
	if err := c.convs.Save(ctx, conv); err != nil {
		log.Error().Err(err).Msg("save bot reply")
		c.clearTyping(ctx, sessionID, log)
		return
	}

	c.events.Publish(model.MessageEvent(sessionID, bot))
	c.events.Publish(model.TypingEvent(sessionID, false))
	metrics.IncTurn(r.Category)
	log.Info().Str("category", r.Category).Msg("bot replied")
}

// loadForReply retries transient load failures. ErrNotFound is final.
func (c *chatUC) loadForReply(ctx context.Context, sessionID string, log *zerolog.Logger) (*model.Conversation, error) {
	conv, err := c.convs.FindByID(ctx, sessionID)
	for i := 0; i < replyLoadRetries && err != nil && !errors.Is(err, domain.ErrNotFound); i++ {
		log.Warn().Err(err).Int("attempt", i+1).Msg("load conversation for reply; retrying")
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(replyLoadBackoff):
		}
		conv, err = c.convs.FindByID(ctx, sessionID)
	}
	return conv, err
}

// clearTyping is a best-effort reset so a failed reply does not lock the
// conversation in the composing state. Caller holds the conversation lock.
func (c *chatUC) clearTyping(ctx context.Context, sessionID string, log *zerolog.Logger) {
	conv, err := c.convs.FindByID(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("clear typing flag: load conversation")
		return
	}
	conv.SetTyping(false, c.now())
	if err := c.convs.Save(ctx, conv); err != nil {
		log.Error().Err(err).Msg("clear typing flag")
		return
	}
	c.events.Publish(model.TypingEvent(sessionID, false))
}

func (c *chatUC) Timeline(ctx context.Context, sessionID string) (*model.Conversation, error) {
	return c.convs.FindByID(ctx, sessionID)
}

// EndChat discards the conversation. A reply still in flight is dropped.
func (c *chatUC) EndChat(ctx context.Context, sessionID string) error {
	unlock, err := c.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.convs.Delete(ctx, sessionID); err != nil {
		return err
	}
	metrics.IncSessionEnded("ended")
	logging.With(logging.WithSessID(ctx, sessionID), c.log).Info().Msg("conversation ended")
	return nil
}
