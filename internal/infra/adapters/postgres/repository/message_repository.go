package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/models"
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *models.Message) error
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, msg *models.Message) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO messages (id, team_id, user_id, user_name, content, created_at)
		VALUES (:id, :team_id, :user_id, :user_name, :content, :created_at)
		ON CONFLICT (id) DO NOTHING`,
		msg,
	)

	return err
}
