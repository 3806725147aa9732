package events

import (
	"encoding/json"
	"fmt"
)

// Client -> server
const (
	JoinTeam    = "join_team"
	LeaveTeam   = "leave_team"
	SendMessage = "send_message"
	Typing      = "typing"
)

// Server -> client
const (
	UserJoined     = "user_joined"
	UserLeft       = "user_left"
	ReceiveMessage = "receive_message"
	UserTyping     = "user_typing"
)

// Frame - one event on the wire in either direction
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data and wraps it into a frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}

	return json.Marshal(Frame{Event: event, Data: raw})
}

// Decode parses a single frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}

	if f.Event == "" {
		return Frame{}, fmt.Errorf("frame without event name")
	}

	return f, nil
}

// JoinTeamEvent - join_team payload
type JoinTeamEvent struct {
	TeamID   string `json:"teamId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// SendMessageEvent - send_message payload
type SendMessageEvent struct {
	TeamID   string `json:"teamId"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// TypingEvent - typing payload
type TypingEvent struct {
	TeamID   string `json:"teamId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// UserJoinedEvent - announced to room peers when someone joins
type UserJoinedEvent struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// UserLeftEvent - announced to room peers when a connection goes away
type UserLeftEvent struct {
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage - receive_message payload
type ChatMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp string `json:"timestamp"`
}

// UserTypingEvent - user_typing payload
type UserTypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}
