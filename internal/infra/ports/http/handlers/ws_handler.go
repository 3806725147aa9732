package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/config"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
	"github.com/Unmesh-12634/HackMate-sub001/internal/usecase"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 * 1024
	transportWS    = "websocket"
	transportPoll  = "polling"
	closeGraceTime = time.Second
)

var (
	errConnClosed = errors.New("connection closed")
	errSlowReader = errors.New("outbound buffer full")
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	gateway    usecase.GatewayUsecase
	sendBuffer int
}

func NewWebSocketHandler(cfg *config.Config, gateway usecase.GatewayUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		gateway:    gateway,
		sendBuffer: cfg.Gateway.SendBuffer,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}

	conn := newWSConn(uuid.NewString(), ws, h.sendBuffer)

	metric.IncrementActiveConnections(transportWS)
	defer metric.DecrementActiveConnections(transportWS)

	h.gateway.Attach(conn)
	defer h.gateway.Detach(conn.ID())

	go conn.writePump()

	ws.SetReadLimit(maxFrameSize)
	if err = ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug(
					"webSocket read error",
					slog.String(constant.ConnID, conn.ID()),
					slog.Any(constant.Error, err),
				)
			}

			return nil
		}

		h.gateway.Dispatch(conn.ID(), msg)
	}
}

// wsConn queues outbound frames for a single writer goroutine.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(id string, ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		metric.RecordDroppedFrame("slow_consumer")
		c.Close()
		return errSlowReader
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("write to websocket", slog.String(constant.ConnID, c.id), slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", slog.String(constant.ConnID, c.id), slog.Any(constant.Error, err))
				return
			}

		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGraceTime),
			)
			return
		}
	}
}
