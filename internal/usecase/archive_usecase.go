package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/models"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/postgres/repository"
)

const archiveWriteTimeout = 5 * time.Second

// ArchiveUsecase hands fanned-out messages to the Data Service off the gateway loop.
type ArchiveUsecase interface {
	MessageSink
	Run(ctx context.Context)
}

type archiveUsecase struct {
	messageRepo repository.MessageRepository
	queue       chan models.Message
}

func NewArchiveUsecase(messageRepo repository.MessageRepository, buffer int) ArchiveUsecase {
	return &archiveUsecase{
		messageRepo: messageRepo,
		queue:       make(chan models.Message, buffer),
	}
}

func (a *archiveUsecase) Submit(msg models.Message) {
	select {
	case a.queue <- msg:
	default:
		metric.RecordDroppedFrame("archive_backlog")
		slog.Warn("archive queue full, message not stored", slog.String(constant.TeamID, msg.TeamID))
	}
}

func (a *archiveUsecase) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.queue:
			a.store(ctx, msg)
		}
	}
}

func (a *archiveUsecase) store(ctx context.Context, msg models.Message) {
	writeCtx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()

	if err := a.messageRepo.Insert(writeCtx, &msg); err != nil {
		slog.Error(
			"insert message",
			slog.String(constant.TeamID, msg.TeamID),
			slog.String(constant.UserID, msg.UserID),
			slog.Any(constant.Error, err),
		)
	}
}
