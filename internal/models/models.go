package models

import (
	"encoding/json"
	"time"
)

const DefaultLanguage = "python"

/*** Persisted collaboration state ***/

// Session is the durable record of one collaborative editing context.
type Session struct {
	ID          string    `gorm:"primaryKey;size:128" json:"id"`
	CreatorName string    `gorm:"not null" json:"creatorName"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"createdAt"`
	Active      bool      `gorm:"not null" json:"active"`
}

func (Session) TableName() string { return "collaboration_sessions" }

// ChatMessage is immutable once stored.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"index;not null;size:128" json:"sessionId"`
	Sender    string    `gorm:"not null" json:"sender"`
	Message   string    `gorm:"not null" json:"message"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

func (ChatMessage) TableName() string { return "collaboration_messages" }

/*** Websocket frames ***/

// Inbound event types.
const (
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventCodeChange   = "code_change"
	EventChatMessage  = "chat_message"
	EventTyping       = "typing"
	EventEndSession   = "end_session"
)

// Outbound event types. chat_message is shared with the inbound set.
const (
	EventSessionJoined     = "session_joined"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventCodeUpdated       = "code_updated"
	EventUserTyping        = "user_typing"
	EventSessionEnded      = "session_ended"
	EventError             = "error"
)

type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundFrame keeps the payload raw until the handler knows its shape.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type JoinRequest struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username,omitempty"`
}

type CodeChange struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type TypingRequest struct {
	Typing bool `json:"typing"`
}

type SessionJoined struct {
	SessionID    string   `json:"session_id"`
	Username     string   `json:"username"`
	Code         string   `json:"code"`
	Language     string   `json:"language"`
	Participants []string `json:"participants"`
}

type ParticipantEvent struct {
	Participant  string   `json:"participant"`
	Participants []string `json:"participants"`
}

type CodeUpdated struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ChatBroadcast struct {
	ID        uint   `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type UserTyping struct {
	Participant string `json:"participant"`
	Typing      bool   `json:"typing"`
}

type SessionEnded struct {
	Message string `json:"message"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

/*** HTTP payloads ***/

type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Creator   string `json:"creator,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type SessionView struct {
	Session
	Participants []string `json:"participants"`
}
