package models

import (
	"time"

	"github.com/google/uuid"
)

// Message - a fanned-out chat message as handed to the Data Service
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
