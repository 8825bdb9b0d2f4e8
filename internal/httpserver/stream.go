// internal/httpserver/stream.go
//
// Live session feed. GET /sessions/{id}/stream upgrades to a websocket and
// pushes one JSON envelope {type, payload} per session event, in order:
//   view     → the full snapshot, sent once on connect
//   log      → {line}
//   warning  → {line}
//   result   → {type, message}
//   connect  → {block, neighborId}
//   complete → {success, rewards, metrics}
// The feed is read-only; client messages are discarded. A client that falls
// behind loses messages rather than blocking the session.

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// upgrader accepts same-host pages and the configured client origin.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == s.cfg.ClientOrigin {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub tracks stream clients per session.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*client]struct{})}
}

func (h *hub) subscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[sessionID] = set
	}
	set[c] = struct{}{}
}

// unsubscribe removes c and closes its send channel; safe to repeat.
func (h *hub) unsubscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

func (h *hub) closeSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[sessionID] {
		close(c.send)
	}
	delete(h.subs, sessionID)
}

func (h *hub) publish(sessionID string, ev session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sessionID]
	if len(set) == 0 {
		return
	}
	msg, err := json.Marshal(toEnvelope(ev))
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("encode event")
		return
	}
	for c := range set {
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("session", sessionID).Msg("stream client lagging, message dropped")
		}
	}
}

func toEnvelope(ev session.Event) envelope {
	e := envelope{Type: string(ev.Type)}
	switch ev.Type {
	case session.EventLog, session.EventWarning:
		e.Payload = map[string]string{"line": ev.Line}
	case session.EventResult:
		e.Payload = ev.Result
	case session.EventConnect:
		e.Payload = map[string]any{"block": ev.Block, "neighborId": ev.Neighbor}
	case session.EventComplete:
		e.Payload = ev.Completion
	}
	return e
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.owned(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	first, _ := json.Marshal(envelope{Type: "view", Payload: sess.View()})
	c.send <- first
	s.hub.subscribe(sess.ID(), c)
	log.Debug().Str("session", sess.ID()).Msg("stream attached")

	go writePump(c)
	readPump(c)
	s.hub.unsubscribe(sess.ID(), c)
}

// readPump discards client frames until the connection closes.
func readPump(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pingPeriod * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingPeriod * 2))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
