package eventstream

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riverahendrick/quantsail-bot-sub001/internal/persistence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	defaultBacklogLimit  = 100
	defaultPollInterval  = 1 * time.Second
	defaultHeartbeatIdle = 15 * time.Second
)

// EventSource supplies events after a given cursor. Satisfied by
// internal/persistence.Repository.
type EventSource interface {
	QueryEvents(ctx context.Context, afterSeq uint64, limit int) ([]persistence.EventRecord, error)
}

// Authenticator validates the live-stream connection's bearer token and
// reports the caller's role. spec.md §6 restricts the stream to
// {OWNER, CEO, DEVELOPER}.
type Authenticator interface {
	Authenticate(r *http.Request) (role string, ok bool)
}

var allowedRoles = map[string]bool{"OWNER": true, "CEO": true, "DEVELOPER": true}

// Server serves the authenticated live event stream over WebSocket.
// Grounded on yohannesjx-sniperterminal/hub.go's upgrade/heartbeat
// mechanics, wired to spec.md §4.10's cursor/backlog/poll/heartbeat
// protocol and §6's RBAC + redaction rules.
type Server struct {
	hub    *Hub
	events EventSource
	auth   Authenticator
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, events EventSource, auth Authenticator) *Server {
	return &Server{
		hub:    hub,
		events: events,
		auth:   auth,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role, authorized := s.auth.Authenticate(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !authorized || !allowedRoles[role] {
		s.closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	var cursor uint64
	if c := r.URL.Query().Get("cursor"); c != "" {
		parsed, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			s.closeWith(conn, websocket.CloseUnsupportedData, "invalid cursor")
			return
		}
		cursor = parsed
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readLoop(conn, cancel)

	client := NewClient(r.RemoteAddr)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	cursor, err = s.drainBacklog(ctx, conn, cursor)
	if err != nil {
		return
	}

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	pollTicker := time.NewTicker(defaultPollInterval)
	defer pollTicker.Stop()
	idleTimer := time.NewTimer(defaultHeartbeatIdle)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case env, ok := <-client.Recv():
			if !ok {
				// The hub dropped this client for falling behind its
				// bounded buffer; tell it why instead of silently dying.
				s.closeWith(conn, websocket.CloseInternalServerErr, "client too slow")
				return
			}
			if err := s.writeEnvelope(conn, env); err != nil {
				return
			}
			if env.Cursor > cursor {
				cursor = env.Cursor
			}
			resetTimer(idleTimer, defaultHeartbeatIdle)

		case <-pollTicker.C:
			newCursor, moved, err := s.pollOnce(ctx, conn, cursor)
			if err != nil {
				return
			}
			if moved {
				cursor = newCursor
				resetTimer(idleTimer, defaultHeartbeatIdle)
			}

		case <-idleTimer.C:
			if err := s.writeEnvelope(conn, Envelope{Type: EnvelopeTypeStatus, Timestamp: time.Now().UTC(), Cursor: cursor}); err != nil {
				return
			}
			idleTimer.Reset(defaultHeartbeatIdle)
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) drainBacklog(ctx context.Context, conn *websocket.Conn, cursor uint64) (uint64, error) {
	records, err := s.events.QueryEvents(ctx, cursor, defaultBacklogLimit)
	if err != nil {
		return cursor, err
	}
	for _, rec := range records {
		env := toEnvelope(rec)
		if err := s.writeEnvelope(conn, env); err != nil {
			return cursor, err
		}
		cursor = rec.Seq
	}
	return cursor, nil
}

func (s *Server) pollOnce(ctx context.Context, conn *websocket.Conn, cursor uint64) (uint64, bool, error) {
	records, err := s.events.QueryEvents(ctx, cursor, defaultBacklogLimit)
	if err != nil {
		return cursor, false, err
	}
	moved := false
	for _, rec := range records {
		env := toEnvelope(rec)
		if err := s.writeEnvelope(conn, env); err != nil {
			return cursor, moved, err
		}
		cursor = rec.Seq
		moved = true
	}
	return cursor, moved, nil
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (s *Server) writeEnvelope(conn *websocket.Conn, env Envelope) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func toEnvelope(rec persistence.EventRecord) Envelope {
	var payload map[string]any
	_ = decodeJSON(rec.PayloadJSON, &payload)
	return Envelope{
		Type:       EnvelopeTypeEvent,
		Timestamp:  rec.CreatedAt,
		Cursor:     rec.Seq,
		EventType:  rec.EventType,
		Level:      rec.Level,
		Symbol:     rec.Symbol,
		TradeID:    rec.TradeID,
		PublicSafe: rec.PublicSafe,
		Payload:    RedactPayload(payload),
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
