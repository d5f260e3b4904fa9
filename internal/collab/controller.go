package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codecollab/internal/metrics"
	"codecollab/internal/models"
	"codecollab/internal/session"
	"codecollab/internal/store"
	"codecollab/internal/utils"
)

var ErrMissingSessionID = errors.New("session_id is required")

// Store is the persistence the controller reconciles the registry with.
type Store interface {
	CreateSession(ctx context.Context, id, creatorName string) error
	GetActiveSession(ctx context.Context, id string) (*models.Session, error)
	UpdateCode(ctx context.Context, id, code, language string) error
	EndSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, id, sender, message string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, id string, limit int) ([]models.ChatMessage, error)
}

// Rooms is the fan-out capability; *session.Broadcaster implements it.
type Rooms interface {
	Subscribe(sessionID string, c *session.Client)
	Unsubscribe(sessionID string, c *session.Client)
	Member(sessionID string, c *session.Client) bool
	Broadcast(ctx context.Context, sessionID, eventType string, payload any, origin *session.Client, excludeOriginator bool)
	SendTo(c *session.Client, eventType string, payload any)
	Close(sessionID string)
}

// Controller owns join/leave/end transitions for sessions. It never holds a
// lock across a registry mutation and its paired store write.
type Controller struct {
	store    Store
	registry *session.Registry
	rooms    Rooms
	log      *utils.Logger
}

func NewController(st Store, reg *session.Registry, rooms Rooms, log *utils.Logger) *Controller {
	return &Controller{store: st, registry: reg, rooms: rooms, log: log}
}

type JoinResult struct {
	SessionID    string
	Username     string
	Code         string
	Language     string
	Participants []string
}

// Join loads or creates the session, registers the participant and announces it.
func (c *Controller) Join(ctx context.Context, conn *session.Client, sessionID, username string) (*JoinResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if username == "" {
		username = utils.DefaultUsername()
	}

	code, language, err := c.loadOrCreate(ctx, sessionID, username)
	if err != nil {
		return nil, err
	}

	c.rooms.Subscribe(sessionID, conn)
	members := c.registry.AddParticipant(sessionID, username)
	c.refreshGauges()
	metrics.Participants.Inc()

	res := &JoinResult{
		SessionID:    sessionID,
		Username:     username,
		Code:         code,
		Language:     language,
		Participants: members,
	}
	c.rooms.SendTo(conn, models.EventSessionJoined, models.SessionJoined{
		SessionID:    sessionID,
		Username:     username,
		Code:         code,
		Language:     language,
		Participants: members,
	})
	c.rooms.Broadcast(ctx, sessionID, models.EventParticipantJoined, models.ParticipantEvent{
		Participant:  username,
		Participants: members,
	}, conn, false)

	c.log.Info("participant joined", "session", sessionID, "participant", username, "members", len(members))
	return res, nil
}

// loadOrCreate returns the persisted snapshot, creating the row for unseen ids.
// An ended id keeps its inactive row; the joiner gets blank default state.
func (c *Controller) loadOrCreate(ctx context.Context, sessionID, username string) (string, string, error) {
	sess, err := c.store.GetActiveSession(ctx, sessionID)
	if err == nil {
		return sess.Code, languageOrDefault(sess.Language), nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return "", "", fmt.Errorf("load session: %w", err)
	}

	err = c.store.CreateSession(ctx, sessionID, username)
	switch {
	case err == nil:
		c.log.Info("session created", "session", sessionID, "creator", username)
	case errors.Is(err, store.ErrDuplicateSession):
		// a concurrent first joiner may have inserted it
		if sess, getErr := c.store.GetActiveSession(ctx, sessionID); getErr == nil {
			return sess.Code, languageOrDefault(sess.Language), nil
		}
		c.log.Warn("joining ended session id with blank state", "session", sessionID)
	default:
		return "", "", fmt.Errorf("create session: %w", err)
	}
	return "", models.DefaultLanguage, nil
}

// Leave removes the participant; the last one out ends the persisted session.
// A connection whose room was already dissolved has nothing to leave.
func (c *Controller) Leave(ctx context.Context, conn *session.Client, sessionID, username string) error {
	if !c.rooms.Member(sessionID, conn) {
		return nil
	}
	c.rooms.Unsubscribe(sessionID, conn)
	members, emptied, found := c.registry.RemoveParticipant(sessionID, username)
	if !found {
		return nil
	}
	metrics.Participants.Dec()
	c.refreshGauges()

	if emptied {
		if err := c.store.EndSession(ctx, sessionID); err != nil {
			return fmt.Errorf("end drained session: %w", err)
		}
		c.log.Info("session drained and ended", "session", sessionID)
	}
	c.rooms.Broadcast(ctx, sessionID, models.EventParticipantLeft, models.ParticipantEvent{
		Participant:  username,
		Participants: members,
	}, conn, true)

	c.log.Info("participant left", "session", sessionID, "participant", username, "members", len(members))
	return nil
}

// CodeChange writes through to the store and echoes to everyone but the author.
// Last write wins; there is no merge.
func (c *Controller) CodeChange(ctx context.Context, conn *session.Client, sessionID, code, language string) error {
	if !c.rooms.Member(sessionID, conn) {
		return nil
	}
	language = languageOrDefault(language)
	if err := c.store.UpdateCode(ctx, sessionID, code, language); err != nil {
		return fmt.Errorf("update code: %w", err)
	}
	c.rooms.Broadcast(ctx, sessionID, models.EventCodeUpdated, models.CodeUpdated{
		Code:     code,
		Language: language,
	}, conn, true)
	return nil
}

// ChatMessage persists then broadcasts. Blank text, a connection outside the
// room and an ended session all yield (nil, nil).
func (c *Controller) ChatMessage(ctx context.Context, conn *session.Client, sessionID, username, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || !c.rooms.Member(sessionID, conn) {
		return nil, nil
	}
	msg, err := c.store.AppendMessage(ctx, sessionID, username, text)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	c.rooms.Broadcast(ctx, sessionID, models.EventChatMessage, models.ChatBroadcast{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Message:   msg.Message,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}, conn, false)
	return msg, nil
}

func (c *Controller) Typing(ctx context.Context, conn *session.Client, sessionID, username string, typing bool) {
	if !c.rooms.Member(sessionID, conn) {
		return
	}
	c.rooms.Broadcast(ctx, sessionID, models.EventUserTyping, models.UserTyping{
		Participant: username,
		Typing:      typing,
	}, conn, true)
}

// EndSession terminates the session for every member. Only a connection in
// the live room may end it.
func (c *Controller) EndSession(ctx context.Context, conn *session.Client, sessionID, username string) error {
	if !c.rooms.Member(sessionID, conn) {
		return nil
	}
	if err := c.store.EndSession(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n := c.registry.Delete(sessionID); n > 0 {
		metrics.Participants.Sub(float64(n))
	}
	c.refreshGauges()

	c.rooms.Broadcast(ctx, sessionID, models.EventSessionEnded, models.SessionEnded{
		Message: "Session ended by " + username,
	}, conn, false)
	c.rooms.Close(sessionID)

	c.log.Info("session ended", "session", sessionID, "by", username)
	return nil
}

// History returns the most recent chat messages, oldest first.
func (c *Controller) History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return c.store.ListMessages(ctx, sessionID, limit)
}

// Participants is the live membership snapshot for sessionID.
func (c *Controller) Participants(sessionID string) []string {
	return c.registry.MembersOf(sessionID)
}

func (c *Controller) refreshGauges() {
	metrics.LiveSessions.Set(float64(c.registry.Sessions()))
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return models.DefaultLanguage
	}
	return lang
}
