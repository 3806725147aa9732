package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/models"
)

func TestSessionTracker(t *testing.T) {
	s := NewSessionTracker()

	_, ok := s.Lookup("c1")
	assert.False(t, ok)

	s.Record(models.Session{ConnID: "c1", TeamID: "t1", UserID: "u1", UserName: "Alice"})

	got, ok := s.Lookup("c1")
	assert.True(t, ok)
	assert.Equal(t, "t1", got.TeamID)
	assert.Equal(t, "Alice", got.UserName)

	// second join overwrites the slot
	s.Record(models.Session{ConnID: "c1", TeamID: "t2", UserID: "u1", UserName: "Alice"})

	got, _ = s.Lookup("c1")
	assert.Equal(t, "t2", got.TeamID)
	assert.Equal(t, 1, s.Count())

	s.Forget("c1")
	s.Forget("c1")

	_, ok = s.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}
