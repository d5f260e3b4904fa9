package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"codecollab/internal/collab"
	"codecollab/internal/metrics"
	"codecollab/internal/models"
	"codecollab/internal/session"
	"codecollab/internal/store"
	"codecollab/internal/utils"
)

// sessionStore is what the HTTP surface reads and writes directly.
type sessionStore interface {
	CreateSession(ctx context.Context, id, creatorName string) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
}

type Options struct {
	QueueSize    int
	HistoryLimit int
}

type Handlers struct {
	log        *utils.Logger
	store      sessionStore
	controller *collab.Controller
	opts       Options
}

func NewHandlers(log *utils.Logger, st sessionStore, ctrl *collab.Controller, opts Options) *Handlers {
	if opts.QueueSize <= 0 {
		opts.QueueSize = session.DefaultQueueSize
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultHistoryLimit
	}
	return &Handlers{log: log, store: st, controller: ctrl, opts: opts}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

/*** Session HTTP surface ***/

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = utils.NewSessionID()
	}
	err := h.store.CreateSession(r.Context(), id, req.Creator)
	if errors.Is(err, store.ErrDuplicateSession) {
		utils.WriteError(w, http.StatusConflict, "session already exists")
		return
	}
	if err != nil {
		h.log.Error("create session failed", "session", id, "error", err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, models.CreateSessionResponse{SessionID: id})
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		utils.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.log.Error("get session failed", "session", id, "error", err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.SessionView{
		Session:      *sess,
		Participants: h.controller.Participants(id),
	})
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := h.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	msgs, err := h.controller.History(r.Context(), id, limit)
	if err != nil {
		h.log.Error("list messages failed", "session", id, "error", err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	utils.WriteJSON(w, http.StatusOK, msgs)
}

/*** Collab WebSocket: join/leave, shared code, chat, typing ***/
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// connState is the association a connection gains on join and loses on leave.
type connState struct {
	sessionID string
	username  string
}

func (s *connState) joined() bool { return s.sessionID != "" }

func (s *connState) clear() { *s = connState{} }

func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// the connection outlives request-scoped timeouts
	ctx := context.WithoutCancel(r.Context())

	client := session.NewClient(conn, h.opts.QueueSize)
	go client.WritePump()
	defer client.Close()

	state := &connState{}
	defer h.disconnect(ctx, client, state)

	if id := chi.URLParam(r, "id"); id != "" {
		h.join(ctx, client, state, models.JoinRequest{SessionID: id, Username: r.URL.Query().Get("username")})
	}

	for {
		var frame models.InboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.HandleFrame(ctx, client, state, frame)
	}
}

// HandleFrame validates one inbound event and delegates it to the controller.
func (h *Handlers) HandleFrame(ctx context.Context, client *session.Client, state *connState, frame models.InboundFrame) {
	switch frame.Type {
	case models.EventJoinSession:
		var req models.JoinRequest
		if !h.decode(client, frame, &req) {
			return
		}
		h.join(ctx, client, state, req)

	case models.EventLeaveSession:
		if !state.joined() {
			return
		}
		err := h.controller.Leave(ctx, client, state.sessionID, state.username)
		h.record(client, frame.Type, state.sessionID, err)
		state.clear()

	case models.EventCodeChange:
		if !state.joined() {
			return
		}
		var req models.CodeChange
		if !h.decode(client, frame, &req) {
			return
		}
		if req.Language == "" {
			req.Language = models.DefaultLanguage
		}
		err := h.controller.CodeChange(ctx, client, state.sessionID, req.Code, req.Language)
		h.record(client, frame.Type, state.sessionID, err)

	case models.EventChatMessage:
		if !state.joined() {
			return
		}
		var req models.ChatRequest
		if !h.decode(client, frame, &req) {
			return
		}
		text := strings.TrimSpace(req.Message)
		if text == "" {
			metrics.Events.WithLabelValues(frame.Type, "rejected").Inc()
			return
		}
		_, err := h.controller.ChatMessage(ctx, client, state.sessionID, state.username, text)
		h.record(client, frame.Type, state.sessionID, err)

	case models.EventTyping:
		if !state.joined() {
			return
		}
		var req models.TypingRequest
		if !h.decode(client, frame, &req) {
			return
		}
		h.controller.Typing(ctx, client, state.sessionID, state.username, req.Typing)
		h.record(client, frame.Type, state.sessionID, nil)

	case models.EventEndSession:
		if !state.joined() {
			return
		}
		err := h.controller.EndSession(ctx, client, state.sessionID, state.username)
		h.record(client, frame.Type, state.sessionID, err)
		if err == nil {
			state.clear()
		}

	default:
		client.Send(errFrame("unknown_type"))
	}
}

func (h *Handlers) join(ctx context.Context, client *session.Client, state *connState, req models.JoinRequest) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		metrics.Events.WithLabelValues(models.EventJoinSession, "rejected").Inc()
		client.Send(errFrame(collab.ErrMissingSessionID.Error()))
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = utils.DefaultUsername()
	}

	if state.joined() {
		if err := h.controller.Leave(ctx, client, state.sessionID, state.username); err != nil {
			h.log.Warn("leave before rejoin failed", "session", state.sessionID, "error", err.Error())
		}
		state.clear()
	}

	res, err := h.controller.Join(ctx, client, sessionID, username)
	h.record(client, models.EventJoinSession, sessionID, err)
	if err != nil {
		return
	}
	state.sessionID = res.SessionID
	state.username = res.Username
}

// disconnect is an implicit leave for connections that never sent one.
func (h *Handlers) disconnect(ctx context.Context, client *session.Client, state *connState) {
	if !state.joined() {
		return
	}
	if err := h.controller.Leave(ctx, client, state.sessionID, state.username); err != nil {
		h.log.Error("leave on disconnect failed", "session", state.sessionID, "participant", state.username, "error", err.Error())
	}
	state.clear()
}

func (h *Handlers) decode(client *session.Client, frame models.InboundFrame, out any) bool {
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return true
	}
	if err := json.Unmarshal(frame.Data, out); err != nil {
		metrics.Events.WithLabelValues(frame.Type, "rejected").Inc()
		client.Send(errFrame("invalid_payload"))
		return false
	}
	return true
}

// record counts the outcome and reports failures to the originating connection.
func (h *Handlers) record(client *session.Client, eventType, sessionID string, err error) {
	if err == nil {
		metrics.Events.WithLabelValues(eventType, "ok").Inc()
		return
	}
	metrics.Events.WithLabelValues(eventType, "error").Inc()
	if errors.Is(err, collab.ErrMissingSessionID) {
		client.Send(errFrame(err.Error()))
		return
	}
	h.log.Error("event failed", "event", eventType, "session", sessionID, "error", err.Error())
	client.Send(errFrame(eventType + "_failed"))
}

func errFrame(msg string) models.WSFrame {
	return models.WSFrame{Type: models.EventError, Data: models.ErrorEvent{Message: msg}}
}
