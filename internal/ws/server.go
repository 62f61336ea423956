package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
	"github.com/obiente/translate/urduwriter/internal/pipeline"
	"github.com/obiente/translate/urduwriter/internal/retry"
)

const (
	readTimeout = 60 * time.Second
	// queueSize bounds the messages waiting behind the one being handled.
	queueSize = 8
)

type Server struct {
	svc      *pipeline.Service
	language string
	font     string
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	sessions map[string]*pipeline.State
}

// NewServer serves one writing session per connection. language and font
// are the defaults a new session starts with.
func NewServer(svc *pipeline.Service, language, font string) *Server {
	return &Server{
		svc:      svc,
		language: language,
		font:     font,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		sessions: make(map[string]*pipeline.State),
	}
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// conn serializes writes to one websocket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(payload); err != nil {
		log.Debug().Err(err).Msg("ws write failed")
	}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer wsConn.Close()
	c := &conn{ws: wsConn}

	id := uuid.NewString()
	st := pipeline.NewState(s.language, s.font)
	s.mu.Lock()
	s.sessions[id] = st
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		log.Info().Str("session", id).Msg("session closed")
	}()
	log.Info().Str("session", id).Str("remote", r.RemoteAddr).Msg("session opened")

	// ctx ends when the socket does, aborting whatever request is in flight.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = retry.WithNotify(ctx, func(w retry.Warning) {
		c.send(map[string]any{"type": "warning", "message": w.Message()})
	})

	_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error { _ = wsConn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	msgs := make(chan map[string]any, queueSize)
	go func() {
		defer cancel()
		defer close(msgs)
		for {
			mt, data, err := wsConn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("session", id).Msg("ws read failed")
				}
				return
			}
			_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
			if mt != websocket.TextMessage {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				c.send(map[string]any{"type": "error", "detail": "invalid json"})
				continue
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			default:
				log.Warn().Str("session", id).Msg("ws queue full, message dropped")
				c.send(map[string]any{"type": "error", "detail": "busy"})
			}
		}
	}()

	// Keep the read deadline moving while a long request blocks the session.
	go func() {
		t := time.NewTicker(readTimeout / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wsConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	c.send(map[string]any{"type": "ready", "session_id": id, "draft": st.Draft})

	for msg := range msgs {
		s.dispatch(ctx, c, st, msg)
	}
}

// dispatch handles one client message. Messages of a session run one at a
// time, in arrival order.
func (s *Server) dispatch(ctx context.Context, c *conn, st *pipeline.State, msg map[string]any) {
	typ, _ := msg["type"].(string)
	log.Debug().Str("type", typ).Msg("ws message")

	var out pipeline.Outcome
	switch typ {
	case "ping":
		c.send(map[string]any{"type": "pong", "ts": msg["ts"]})
		return
	case "settings":
		out = s.svc.Settings(st, str(msg, "language"), str(msg, "font"))
	case "audio", "dictate":
		clip, ok := decodeClip(msg)
		if !ok {
			c.send(map[string]any{"type": "error", "detail": "invalid base64 audio"})
			return
		}
		log.Debug().Str("type", typ).Int("bytes", len(clip.Data)).Str("format", string(clip.Format)).Msg("ws audio received")
		if typ == "audio" {
			out = s.svc.SubmitAudio(ctx, st, clip)
		} else {
			out = s.svc.DictateWord(ctx, clip)
		}
	case "edit":
		out = s.svc.Edit(st, str(msg, "text"))
	case "replace":
		out = s.svc.Replace(st, str(msg, "old"), str(msg, "new"))
	case "proofread":
		out = s.svc.Proofread(ctx, st)
	case "accept":
		out = s.svc.Accept(st)
	case "discard":
		out = s.svc.Discard(st)
	case "save":
		out = s.svc.Save(st)
	case "clear":
		out = s.svc.Clear(st)
	default:
		c.send(map[string]any{"type": "error", "detail": "unknown message type"})
		return
	}
	if ctx.Err() != nil {
		return
	}
	emit(c, out)
	c.send(map[string]any{
		"type":     "state",
		"draft":    st.Draft,
		"pending":  st.Pending != nil,
		"language": st.Language,
		"font":     st.Font,
	})
}

func emit(c *conn, out pipeline.Outcome) {
	if t := out.Transcript; t != nil {
		c.send(map[string]any{"type": "transcript", "text": t.Text, "language": t.Language})
	}
	if r := out.Review; r != nil {
		c.send(map[string]any{
			"type":      "correction",
			"corrected": r.Corrected,
			"changes":   r.Changes,
			"diff":      r.Diff,
			"tokens":    r.Tokens,
		})
	}
	if out.Dictated != "" {
		c.send(map[string]any{"type": "dictated", "word": out.Dictated})
	}
	if sv := out.Saved; sv != nil {
		c.send(map[string]any{"type": "saved", "timestamp": sv.Timestamp, "path": sv.Path})
	}
	for _, m := range out.Info {
		c.send(map[string]any{"type": "info", "message": m})
	}
	for _, m := range out.Warnings {
		c.send(map[string]any{"type": "warning", "message": m})
	}
	for _, m := range out.Errors {
		c.send(map[string]any{"type": "error", "detail": m})
	}
}

func decodeClip(msg map[string]any) (audio.Clip, bool) {
	b64, _ := msg["data"].(string)
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return audio.Clip{}, false
	}
	return audio.Clip{Data: data, Format: audio.ParseFormat(str(msg, "format"))}, true
}

func str(msg map[string]any, key string) string {
	v, _ := msg[key].(string)
	return v
}
