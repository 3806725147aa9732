package connector

import (
	"encoding/json"

	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
)

type TypingUser struct {
	UserID   string
	UserName string
	IsTyping bool
}

// Notice is a presence line: someone joined or left.
type Notice struct {
	Event     string
	UserID    string
	UserName  string
	Message   string
	Timestamp string
}

// State is what a chat view renders. Snapshots never share slices with the live state.
type State struct {
	Messages    []events.ChatMessage
	TypingUsers []TypingUser
	Notices     []Notice
	IsConnected bool
}

func (s State) clone() State {
	return State{
		Messages:    append([]events.ChatMessage(nil), s.Messages...),
		TypingUsers: append([]TypingUser(nil), s.TypingUsers...),
		Notices:     append([]Notice(nil), s.Notices...),
		IsConnected: s.IsConnected,
	}
}

// apply folds one server frame into the state. Unknown or malformed frames leave it unchanged.
func apply(s State, f events.Frame) (State, bool) {
	switch f.Event {
	case events.ReceiveMessage:
		var msg events.ChatMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return s, false
		}

		return appendMessage(s, msg)

	case events.UserTyping:
		var t events.UserTypingEvent
		if err := json.Unmarshal(f.Data, &t); err != nil || t.UserID == "" {
			return s, false
		}

		return setTyping(s, TypingUser{UserID: t.UserID, UserName: t.UserName, IsTyping: t.IsTyping}), true

	case events.UserJoined:
		var j events.UserJoinedEvent
		if err := json.Unmarshal(f.Data, &j); err != nil {
			return s, false
		}

		s.Notices = append(s.Notices, Notice{
			Event: f.Event, UserID: j.UserID, UserName: j.UserName, Message: j.Message, Timestamp: j.Timestamp,
		})

		return s, true

	case events.UserLeft:
		var l events.UserLeftEvent
		if err := json.Unmarshal(f.Data, &l); err != nil {
			return s, false
		}

		s.Notices = append(s.Notices, Notice{
			Event: f.Event, UserID: l.UserID, UserName: l.UserName, Message: l.Message, Timestamp: l.Timestamp,
		})

		return s, true
	}

	return s, false
}

// appendMessage skips ids already in the list, which happens when a reconnect races a broadcast.
func appendMessage(s State, msg events.ChatMessage) (State, bool) {
	if msg.ID != "" {
		for _, m := range s.Messages {
			if m.ID == msg.ID {
				return s, false
			}
		}
	}

	s.Messages = append(s.Messages, msg)

	return s, true
}

// setTyping replaces the entry for the user, or removes it when they stopped.
func setTyping(s State, t TypingUser) State {
	users := make([]TypingUser, 0, len(s.TypingUsers)+1)
	for _, u := range s.TypingUsers {
		if u.UserID != t.UserID {
			users = append(users, u)
		}
	}

	if t.IsTyping {
		users = append(users, t)
	}

	s.TypingUsers = users

	return s
}
