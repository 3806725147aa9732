package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Unmesh-12634/HackMate-sub001/internal/connector"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
)

func TestTypingLine(t *testing.T) {
	assert.Equal(t, "", typingLine(nil))
	assert.Equal(t, "Bob is typing...", typingLine([]connector.TypingUser{{UserID: "u2", UserName: "Bob"}}))
	assert.Equal(t, "Bob, anonymous are typing...", typingLine([]connector.TypingUser{
		{UserID: "u2", UserName: "Bob"},
		{UserID: "u3"},
	}))
}

func TestNoticeText(t *testing.T) {
	assert.Equal(t, "Bob joined the chat", noticeText(connector.Notice{Event: events.UserJoined, Message: "Bob joined the chat"}))
	assert.Equal(t, "Bob left", noticeText(connector.Notice{Event: events.UserLeft, UserName: "Bob"}))
	assert.Equal(t, "anonymous joined", noticeText(connector.Notice{Event: events.UserJoined}))
}
