package api

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/infra/logging"
	"mindfulbot/internal/infra/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

// snapshotFrame is the first frame of every stream so clients never miss
// events published between their GET and the handshake.
type snapshotFrame struct {
	Kind    string              `json:"kind"`
	Session *model.Conversation `json:"session"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
	if len(s.opts.AllowedOrigins) > 0 {
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, err := url.Parse(origin); err != nil {
				return false
			}
			return slices.Contains(s.opts.AllowedOrigins, origin)
		}
	}
	return u
}

// handleEvents streams conversation events over a websocket until either
// side closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logging.With(r.Context(), s.log)

	events, cancel := s.events.Subscribe(id)
	defer cancel()

	conv, err := s.chat.Timeline(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	metrics.StreamOpened()
	defer metrics.StreamClosed()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The client never sends data frames; reading drives pong and close handling.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshotFrame{Kind: "snapshot", Session: conv}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		}
	}
}
