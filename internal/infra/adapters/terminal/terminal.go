// Package terminal runs a conversation in an interactive terminal.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ergochat/readline"
	"github.com/rs/zerolog"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/domain/ports/adapter"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/logging"
	"mindfulbot/internal/usecase"
)

const (
	prompt         = "you> "
	continuePrompt = "...> "
	quitCommand    = "/quit"
	timeLayout     = "15:04"
)

// LineReader is the line editor the session reads from and prints through.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Write(p []byte) (int, error)
	Close() error
}

// NewLineReader opens a readline editor on the controlling terminal. Close
// may be called more than once.
func NewLineReader() (LineReader, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return nil, err
	}
	return &editor{Instance: rl}, nil
}

type editor struct {
	*readline.Instance
	once sync.Once
	err  error
}

func (e *editor) Close() error {
	e.once.Do(func() { e.err = e.Instance.Close() })
	return e.err
}

type Session struct {
	chat   usecase.ChatUseCase
	events adapter.EventSubscriber
	tr     *i18n.Translator
	rl     LineReader
	log    *zerolog.Logger

	outMu sync.Mutex
}

func NewSession(chat usecase.ChatUseCase, events adapter.EventSubscriber, tr *i18n.Translator, rl LineReader, logger *zerolog.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{chat: chat, events: events, tr: tr, rl: rl, log: logger}
}

// Run starts a fresh conversation and reads messages until /quit, EOF or
// ctx cancellation. The conversation is discarded on return.
func (s *Session) Run(ctx context.Context) error {
	conv, err := s.chat.StartChat(ctx)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	sessionID := conv.ID

	events, cancel := s.events.Subscribe(sessionID)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		s.render(events)
	}()

	stop := context.AfterFunc(ctx, func() { _ = s.rl.Close() })
	defer stop()

	s.println(s.tr.T(i18n.AppTitle) + " - " + s.tr.T(i18n.AppSubtitle))
	s.println(s.tr.T(i18n.Disclaimer))
	s.println(s.tr.T(i18n.TerminalHelp))
	s.println("")
	for _, m := range conv.Messages {
		s.printMessage(m)
	}

	err = s.loop(ctx, sessionID)

	cancel()
	<-printed
	if endErr := s.chat.EndChat(context.WithoutCancel(ctx), sessionID); endErr != nil && !errors.Is(endErr, domain.ErrNotFound) {
		s.log.Warn().Err(endErr).Str("session_id", sessionID).Msg("end conversation")
	}
	s.println(s.tr.T(i18n.TerminalGoodbye))
	return err
}

func (s *Session) loop(ctx context.Context, sessionID string) error {
	var buf []string
	for {
		line, err := s.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if len(buf) == 0 {
				return nil
			}
			buf = buf[:0]
			s.rl.SetPrompt(prompt)
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}

		if len(buf) == 0 && strings.TrimSpace(line) == quitCommand {
			return nil
		}
		if strings.HasSuffix(line, `\`) {
			buf = append(buf, strings.TrimSuffix(line, `\`))
			s.rl.SetPrompt(continuePrompt)
			continue
		}
		text := strings.Join(append(buf, line), "\n")
		buf = buf[:0]
		s.rl.SetPrompt(prompt)

		if err := s.submit(ctx, sessionID, text); err != nil {
			return err
		}
	}
}

func (s *Session) submit(ctx context.Context, sessionID, text string) error {
	_, err := s.chat.Submit(ctx, sessionID, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrReplyPending), errors.Is(err, domain.ErrBusy):
		s.println(s.tr.T(i18n.ReplyPending))
		return nil
	case errors.Is(err, domain.ErrRateLimited):
		s.println(s.tr.T(i18n.RateLimited))
		return nil
	default:
		return fmt.Errorf("submit: %w", err)
	}
}

// render prints bot replies and the typing indicator until events closes.
func (s *Session) render(events <-chan model.Event) {
	for ev := range events {
		switch ev.Kind {
		case model.EventTyping:
			if ev.Typing {
				s.println(s.tr.T(i18n.TypingIndicator))
			}
		case model.EventMessage:
			if ev.Message != nil && ev.Message.Sender == model.SenderBot {
				s.printMessage(*ev.Message)
			}
		}
	}
}

func (s *Session) printMessage(m model.Message) {
	s.println(fmt.Sprintf("[%s] %s: %s", m.Timestamp.Local().Format(timeLayout), s.tr.T(i18n.AppTitle), m.Text))
}

func (s *Session) println(line string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = s.rl.Write([]byte(line + "\n"))
}
