//go:build !integration

package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/responder"
)

// ---- Fakes ----

type memConvRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Conversation
	saveErr error
	saves   int
	// findErrs makes the next n finds fail with a transient error
	findErrs int
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{byID: map[string]*model.Conversation{}}
}

func (m *memConvRepo) Save(_ context.Context, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byID[c.ID] = c.Clone()
	return nil
}

func (m *memConvRepo) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErrs > 0 {
		m.findErrs--
		return nil, errors.New("i/o timeout")
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *memConvRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// manualDelayer holds continuations until the test fires them.
type manualDelayer struct {
	mu      sync.Mutex
	pending []func()
}

func (d *manualDelayer) Schedule(fn func()) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, fn)
	return 1500 * time.Millisecond
}

func (d *manualDelayer) fire() int {
	d.mu.Lock()
	ps := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range ps {
		fn()
	}
	return len(ps)
}

type recPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recPublisher) Publish(ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		s := string(ev.Kind)
		if ev.Kind == model.EventTyping {
			if ev.Typing {
				s += ":on"
			} else {
				s += ":off"
			}
		}
		out = append(out, s)
	}
	return out
}

type countingSelector struct {
	inner *responder.Selector
	calls int
	seen  []string
}

func (s *countingSelector) Select(input string) responder.Reply {
	s.calls++
	s.seen = append(s.seen, input)
	return s.inner.Select(input)
}

type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

type stubLimiter struct {
	allow bool
	err   error
}

func (l stubLimiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	locks    []string
	unlocked int
}

func (l *fakeLocker) Lock(_ context.Context, id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.locks = append(l.locks, id)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked++
	}, nil
}

const greeting = "Hello! I'm your mental health support companion."

type harness struct {
	uc    *chatUC
	repo  *memConvRepo
	delay *manualDelayer
	pub   *recPublisher
	sel   *countingSelector
}

func newHarness(opts ...ChatOption) *harness {
	h := &harness{
		repo:  newMemConvRepo(),
		delay: &manualDelayer{},
		pub:   &recPublisher{},
		sel:   &countingSelector{inner: responder.NewSelector(nil, responder.WithRand(fixedRand{}))},
	}
	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]ChatOption{WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})}, opts...)
	h.uc = NewChatUseCase(h.repo, h.sel, h.delay, h.pub, greeting, nil, opts...)
	return h
}

func (h *harness) start(t *testing.T) *model.Conversation {
	t.Helper()
	c, err := h.uc.StartChat(context.Background())
	require.NoError(t, err)
	return c
}

func (h *harness) timeline(t *testing.T, id string) *model.Conversation {
	t.Helper()
	c, err := h.uc.Timeline(context.Background(), id)
	require.NoError(t, err)
	return c
}

// ---- Tests ----

func TestStartChatSeedsGreeting(t *testing.T) {
	h := newHarness()
	c := h.start(t)

	require.NotEmpty(t, c.ID)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, model.SenderBot, c.Messages[0].Sender)
	assert.Equal(t, greeting, c.Messages[0].Text)
	assert.False(t, c.Typing)

	other := h.start(t)
	assert.NotEqual(t, c.ID, other.ID)
}

func TestSubmitFullTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)

	msg, err := h.uc.Submit(ctx, c.ID, "I feel so anxious today")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, model.SenderUser, msg.Sender)
	assert.Equal(t, "I feel so anxious today", msg.Text)

	// user message is visible immediately, bot reply is not
	mid := h.timeline(t, c.ID)
	assert.Equal(t, 2, mid.Len())
	assert.True(t, mid.Typing)
	assert.Equal(t, 0, h.sel.calls)

	require.Equal(t, 1, h.delay.fire())

	after := h.timeline(t, c.ID)
	require.Equal(t, 3, after.Len())
	assert.False(t, after.Typing)
	bot := after.Last()
	assert.Equal(t, model.SenderBot, bot.Sender)
	assert.Equal(t, responder.DefaultTable().Categories[1].Replies[0], bot.Text)
	assert.Equal(t, []string{"I feel so anxious today"}, h.sel.seen)

	assert.Equal(t, []string{"message", "typing:on", "message", "typing:off"}, h.pub.kinds())

	// chronological order
	for i := 1; i < after.Len(); i++ {
		assert.False(t, after.Messages[i].Timestamp.Before(after.Messages[i-1].Timestamp))
	}
}

func TestSubmitScenarios(t *testing.T) {
	cases := []struct {
		in       string
		category string
	}{
		{"hello", "greeting"},
		{"purple elephants", responder.FallbackName},
		{"I'm worried but it's good", "anxiety"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			h := newHarness()
			c := h.start(t)
			_, err := h.uc.Submit(context.Background(), c.ID, tc.in)
			require.NoError(t, err)
			h.delay.fire()

			got := h.timeline(t, c.ID).Last().Text
			pool := responder.DefaultTable().Fallback.Replies
			for _, cat := range responder.DefaultTable().Categories {
				if cat.Name == tc.category {
					pool = cat.Replies
				}
			}
			assert.True(t, slices.Contains(pool, got), "%q not in %s pool", got, tc.category)
		})
	}
}

func TestSubmitBlankIsNoop(t *testing.T) {
	h := newHarness()
	c := h.start(t)
	saves := h.repo.saves

	for _, in := range []string{"", "   ", "\n\t "} {
		msg, err := h.uc.Submit(context.Background(), c.ID, in)
		assert.NoError(t, err)
		assert.Nil(t, msg)
	}

	got := h.timeline(t, c.ID)
	assert.Equal(t, 1, got.Len())
	assert.False(t, got.Typing)
	assert.Equal(t, saves, h.repo.saves)
	assert.Zero(t, h.delay.fire())
	assert.Zero(t, h.sel.calls)
	assert.Empty(t, h.pub.kinds())
}

func TestSubmitKeepsOriginalText(t *testing.T) {
	h := newHarness()
	c := h.start(t)
	msg, err := h.uc.Submit(context.Background(), c.ID, "  feeling down\nreally  ")
	require.NoError(t, err)
	assert.Equal(t, "  feeling down\nreally  ", msg.Text)
}

func TestSubmitWhileComposingIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)

	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)

	_, err = h.uc.Submit(ctx, c.ID, "are you there?")
	assert.ErrorIs(t, err, domain.ErrReplyPending)
	assert.Equal(t, 2, h.timeline(t, c.ID).Len())

	h.delay.fire()
	_, err = h.uc.Submit(ctx, c.ID, "thanks")
	assert.NoError(t, err)
	h.delay.fire()
	assert.Equal(t, 5, h.timeline(t, c.ID).Len())
}

func TestSubmitUnknownSession(t *testing.T) {
	h := newHarness()
	_, err := h.uc.Submit(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.delay.fire())
}

func TestEndChatDropsPendingReply(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)

	_, err := h.uc.Submit(ctx, c.ID, "I feel sad")
	require.NoError(t, err)
	require.NoError(t, h.uc.EndChat(ctx, c.ID))

	assert.Equal(t, 1, h.delay.fire())
	assert.Zero(t, h.sel.calls)
	_, err = h.uc.Timeline(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, h.uc.EndChat(ctx, c.ID), domain.ErrNotFound)
}

func TestReplySaveFailureClearsTypingEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)
	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)

	h.repo.saveErr = errors.New("disk full")
	h.delay.fire()

	// store still holds the composing state since every save failed
	assert.True(t, h.timeline(t, c.ID).Typing)
	assert.Equal(t, []string{"message", "typing:on"}, h.pub.kinds())
}

func TestReplyRetriesTransientLoadFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)
	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)

	h.repo.findErrs = 1
	h.delay.fire()

	after := h.timeline(t, c.ID)
	require.Equal(t, 3, after.Len())
	assert.Equal(t, model.SenderBot, after.Messages[2].Sender)
	assert.False(t, after.Typing)
	assert.Equal(t, []string{"message", "typing:on", "message", "typing:off"}, h.pub.kinds())
}

func TestReplyLoadFailureClearsTyping(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.start(t)
	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)

	// every reply load fails; the reset after it succeeds
	h.repo.findErrs = 1 + replyLoadRetries
	h.delay.fire()

	after := h.timeline(t, c.ID)
	assert.Equal(t, 2, after.Len())
	assert.False(t, after.Typing)
	assert.Equal(t, []string{"message", "typing:on", "typing:off"}, h.pub.kinds())

	// the conversation accepts input again
	_, err = h.uc.Submit(ctx, c.ID, "are you there?")
	require.NoError(t, err)
	assert.Equal(t, 1, h.delay.fire())
	assert.Equal(t, 4, h.timeline(t, c.ID).Len())
}

func TestLockerWrapsEveryUpdate(t *testing.T) {
	ctx := context.Background()
	lk := &fakeLocker{}
	h := newHarness(WithLocker(lk))
	c := h.start(t)

	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)
	h.delay.fire()
	require.NoError(t, h.uc.EndChat(ctx, c.ID))

	assert.Equal(t, []string{c.ID, c.ID, c.ID}, lk.locks)
	assert.Equal(t, 3, lk.unlocked)
}

func TestSubmitBusyElsewhere(t *testing.T) {
	ctx := context.Background()
	lk := &fakeLocker{}
	h := newHarness(WithLocker(lk))
	c := h.start(t)

	lk.err = domain.ErrBusy
	_, err := h.uc.Submit(ctx, c.ID, "hello")
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, 0, h.delay.fire())
	assert.Equal(t, 1, h.timeline(t, c.ID).Len())

	// the process mutex was released with the failed lock
	lk.err = nil
	_, err = h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)
}

func TestSubmitRateLimited(t *testing.T) {
	h := newHarness(WithLimiter(stubLimiter{allow: false}))
	c := h.start(t)
	_, err := h.uc.Submit(context.Background(), c.ID, "hello")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, h.timeline(t, c.ID).Len())
}

func TestSubmitLimiterErrorFailsOpen(t *testing.T) {
	h := newHarness(WithLimiter(stubLimiter{err: errors.New("redis down")}))
	c := h.start(t)
	_, err := h.uc.Submit(context.Background(), c.ID, "hello")
	assert.NoError(t, err)
}

// busyOnce reports ErrBusy for the first n locks.
type busyOnce struct {
	fakeLocker
	busy int
}

func (l *busyOnce) Lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	if l.busy > 0 {
		l.busy--
		l.mu.Unlock()
		return nil, domain.ErrBusy
	}
	l.mu.Unlock()
	return l.fakeLocker.Lock(ctx, id)
}

func TestReplyWaitsOutContendedLock(t *testing.T) {
	ctx := context.Background()
	lk := &busyOnce{}
	h := newHarness(WithLocker(lk))
	c := h.start(t)
	_, err := h.uc.Submit(ctx, c.ID, "hello")
	require.NoError(t, err)

	lk.busy = 2
	h.delay.fire()

	after := h.timeline(t, c.ID)
	assert.Equal(t, 3, after.Len())
	assert.False(t, after.Typing)
}
