package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/config"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/memory"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/ports/http/dto"
	"github.com/Unmesh-12634/HackMate-sub001/internal/usecase"
)

const maxPollBody = 256 * 1024

// PollHandler serves the long-polling fallback for clients that cannot hold a websocket.
type PollHandler struct {
	gateway  usecase.GatewayUsecase
	sessions memory.PollSessionRepository

	wait        time.Duration
	idleTimeout time.Duration
	queueSize   int

	now func() time.Time
}

func NewPollHandler(
	cfg *config.Config,
	gateway usecase.GatewayUsecase,
	sessions memory.PollSessionRepository,
) *PollHandler {
	return &PollHandler{
		gateway:     gateway,
		sessions:    sessions,
		wait:        cfg.Poll.Wait,
		idleTimeout: cfg.Poll.IdleTimeout,
		queueSize:   cfg.Gateway.SendBuffer,
		now:         time.Now,
	}
}

func (h *PollHandler) Open(c echo.Context) error {
	session := memory.NewPollSession(uuid.NewString(), h.queueSize, h.now())

	h.sessions.Add(session)
	h.gateway.Attach(session)
	metric.IncrementActiveConnections(transportPoll)

	slog.Debug("poll session opened", slog.String(constant.SID, session.ID()))

	return c.JSON(http.StatusOK, dto.OpenPollResponse{SID: session.ID()})
}

func (h *PollHandler) Poll(c echo.Context) error {
	session, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown session"})
	}

	frames, err := session.Poll(c.Request().Context(), h.wait, h.now)
	if err != nil {
		if errors.Is(err, memory.ErrSessionClosed) {
			h.close(session)
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "session closed"})
		}

		// client went away mid-poll; the sweeper will notice if it does not come back
		return nil
	}

	resp := make(dto.PollFramesResponse, 0, len(frames))
	for _, f := range frames {
		resp = append(resp, json.RawMessage(f))
	}

	return c.JSON(http.StatusOK, resp)
}

// Send accepts a single frame or an array of frames.
func (h *PollHandler) Send(c echo.Context) error {
	session, ok := h.sessions.Get(c.Param("sid"))
	if !ok || session.Closed() {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown session"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPollBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "read body"})
	}

	session.Touch(h.now())

	for _, frame := range splitFrames(body) {
		h.gateway.Dispatch(session.ID(), frame)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PollHandler) Close(c echo.Context) error {
	session, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}

	h.close(session)

	return c.NoContent(http.StatusNoContent)
}

// RunSweeper disconnects sessions that stopped polling until ctx is done.
func (h *PollHandler) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *PollHandler) sweep() {
	for _, session := range h.sessions.Stale(h.now(), h.idleTimeout) {
		slog.Debug("poll session expired", slog.String(constant.SID, session.ID()))
		h.close(session)
	}
}

func (h *PollHandler) close(session *memory.PollSession) {
	if !h.sessions.Remove(session.ID()) {
		return
	}

	session.Close()
	h.gateway.Detach(session.ID())
	metric.DecrementActiveConnections(transportPoll)
}

// splitFrames leaves malformed input to the gateway, which drops it.
func splitFrames(body []byte) [][]byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] != '[' {
		return [][]byte{trimmed}
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return [][]byte{trimmed}
	}

	frames := make([][]byte, 0, len(batch))
	for _, f := range batch {
		frames = append(frames, f)
	}

	return frames
}
