package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/models"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/memory"
)

// TimestampLayout matches what browsers produce with Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const opsBuffer = 1024

// Conn is a transport connection attached to the gateway.
type Conn interface {
	memory.Conn
	Close()
}

// Relay republishes room frames to other gateway instances. Publish must not block.
type Relay interface {
	Publish(teamID string, frame []byte, excludeID string)
}

// MessageSink hands fanned-out messages to the Data Service. Submit must not block.
type MessageSink interface {
	Submit(msg models.Message)
}

type GatewayUsecase interface {
	// Run owns all room and session state until ctx is done.
	Run(ctx context.Context)

	Attach(conn Conn)
	Dispatch(connID string, frame []byte)
	Detach(connID string)

	// DeliverRemote fans a frame received from another instance out to local members.
	DeliverRemote(teamID string, frame []byte, excludeID string)

	Stats() GatewayStats
}

type GatewayStats struct {
	Connections int64 `json:"connections"`
	Sessions    int   `json:"sessions"`
	Rooms       int   `json:"rooms"`
}

type GatewayOption func(*gateway)

func WithRelay(relay Relay) GatewayOption {
	return func(g *gateway) { g.relay = relay }
}

func WithMessageSink(sink MessageSink) GatewayOption {
	return func(g *gateway) { g.sink = sink }
}

// WithTypingTTL enables server-side retraction of typing indicators after ttl of silence.
func WithTypingTTL(ttl time.Duration) GatewayOption {
	return func(g *gateway) { g.typingTTL = ttl }
}

type stopper interface {
	Stop() bool
}

type typingKey struct {
	teamID string
	userID string
}

type typingState struct {
	connID   string
	userName string
	gen      uint64
	timer    stopper
}

type handlerFunc func(conn Conn, data json.RawMessage)

type gateway struct {
	rooms    memory.RoomRegistry
	sessions memory.SessionTracker

	relay Relay
	sink  MessageSink

	// conns and typing are touched only from the loop
	conns    map[string]Conn
	typing   map[typingKey]*typingState
	handlers map[string]handlerFunc

	typingTTL time.Duration
	typingGen uint64

	ops         chan func()
	done        chan struct{}
	connections atomic.Int64

	now       func() time.Time
	newID     func() string
	afterFunc func(time.Duration, func()) stopper
}

func NewGatewayUsecase(
	rooms memory.RoomRegistry,
	sessions memory.SessionTracker,
	opts ...GatewayOption,
) GatewayUsecase {
	return newGateway(rooms, sessions, opts...)
}

func newGateway(rooms memory.RoomRegistry, sessions memory.SessionTracker, opts ...GatewayOption) *gateway {
	g := &gateway{
		rooms:    rooms,
		sessions: sessions,
		conns:    make(map[string]Conn),
		typing:   make(map[typingKey]*typingState),
		ops:      make(chan func(), opsBuffer),
		done:     make(chan struct{}),
		now:      time.Now,
		newID:    newMessageID,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}

	g.handlers = map[string]handlerFunc{
		events.JoinTeam:    g.handleJoinTeam,
		events.LeaveTeam:   g.handleLeaveTeam,
		events.SendMessage: g.handleSendMessage,
		events.Typing:      g.handleTyping,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (g *gateway) Run(ctx context.Context) {
	defer close(g.done)

	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return
		case op := <-g.ops:
			op()
		}
	}
}

func (g *gateway) shutdown() {
	slog.Info("gateway shutting down", slog.Int("connections", len(g.conns)))

	for key, st := range g.typing {
		st.timer.Stop()
		delete(g.typing, key)
	}

	// no user_left on shutdown: every peer is going away too
	for id, conn := range g.conns {
		if session, ok := g.sessions.Lookup(id); ok {
			g.rooms.Leave(session.TeamID, id)
			g.sessions.Forget(id)
		}

		conn.Close()
		delete(g.conns, id)
		g.connections.Add(-1)
	}

	metric.SetRooms(g.rooms.RoomCount())
}

func (g *gateway) enqueue(op func()) {
	select {
	case g.ops <- op:
	case <-g.done:
	}
}

func (g *gateway) Attach(conn Conn) {
	g.enqueue(func() { g.attach(conn) })
}

func (g *gateway) Dispatch(connID string, frame []byte) {
	g.enqueue(func() { g.dispatch(connID, frame) })
}

func (g *gateway) Detach(connID string) {
	g.enqueue(func() { g.detach(connID) })
}

func (g *gateway) DeliverRemote(teamID string, frame []byte, excludeID string) {
	g.enqueue(func() { g.rooms.BroadcastFrame(teamID, frame, excludeID) })
}

func (g *gateway) Stats() GatewayStats {
	return GatewayStats{
		Connections: g.connections.Load(),
		Sessions:    g.sessions.Count(),
		Rooms:       g.rooms.RoomCount(),
	}
}

func (g *gateway) attach(conn Conn) {
	if _, ok := g.conns[conn.ID()]; ok {
		return
	}

	g.conns[conn.ID()] = conn
	g.connections.Add(1)

	slog.Debug("connection attached", slog.String(constant.ConnID, conn.ID()))
}

func (g *gateway) dispatch(connID string, raw []byte) {
	conn, ok := g.conns[connID]
	if !ok {
		return
	}

	frame, err := events.Decode(raw)
	if err != nil {
		g.drop(connID, "malformed", err)
		return
	}

	handler, ok := g.handlers[frame.Event]
	if !ok {
		g.drop(connID, "unknown_event", fmt.Errorf("unknown event %q", frame.Event))
		return
	}

	metric.RecordEvent(frame.Event)

	handler(conn, frame.Data)
}

func (g *gateway) drop(connID, reason string, err error) {
	metric.RecordDroppedFrame(reason)

	slog.Debug(
		"drop inbound frame",
		slog.String(constant.ConnID, connID),
		slog.String("reason", reason),
		slog.Any(constant.Error, err),
	)
}

// detach is the disconnect path: prune membership, announce departure, forget.
func (g *gateway) detach(connID string) {
	conn, ok := g.conns[connID]
	if !ok {
		return
	}

	delete(g.conns, connID)
	g.connections.Add(-1)

	conn.Close()

	session, ok := g.sessions.Lookup(connID)
	if !ok {
		slog.Debug("connection detached", slog.String(constant.ConnID, connID))
		return
	}

	g.rooms.Leave(session.TeamID, connID)
	g.retractTyping(session.TeamID, session.UserID, connID)

	g.broadcast(session.TeamID, events.UserLeft, events.UserLeftEvent{
		UserID:    session.UserID,
		UserName:  session.UserName,
		Message:   leftText(session.UserName),
		Timestamp: g.timestamp(),
	}, connID)

	g.sessions.Forget(connID)
	metric.SetRooms(g.rooms.RoomCount())

	slog.Info(
		"user left",
		slog.String(constant.ConnID, connID),
		slog.String(constant.TeamID, session.TeamID),
		slog.String(constant.UserID, session.UserID),
	)
}

func (g *gateway) handleJoinTeam(conn Conn, data json.RawMessage) {
	var join events.JoinTeamEvent
	if err := json.Unmarshal(data, &join); err != nil {
		g.drop(conn.ID(), "bad_payload", err)
		return
	}

	if join.TeamID == "" {
		return
	}

	// single slot per connection: moving to another team leaves the old room
	if prev, ok := g.sessions.Lookup(conn.ID()); ok && prev.TeamID != join.TeamID {
		g.rooms.Leave(prev.TeamID, conn.ID())
		g.retractTyping(prev.TeamID, prev.UserID, conn.ID())
	}

	g.rooms.Join(join.TeamID, conn)
	g.sessions.Record(models.Session{
		ConnID:   conn.ID(),
		TeamID:   join.TeamID,
		UserID:   join.UserID,
		UserName: join.UserName,
	})
	metric.SetRooms(g.rooms.RoomCount())

	slog.Info(
		"user joined",
		slog.String(constant.ConnID, conn.ID()),
		slog.String(constant.TeamID, join.TeamID),
		slog.String(constant.UserID, join.UserID),
	)

	g.broadcast(join.TeamID, events.UserJoined, events.UserJoinedEvent{
		UserID:    join.UserID,
		UserName:  join.UserName,
		Message:   joinedText(join.UserName),
		Timestamp: g.timestamp(),
	}, conn.ID())
}

func (g *gateway) handleLeaveTeam(conn Conn, data json.RawMessage) {
	var teamID string
	if err := json.Unmarshal(data, &teamID); err != nil {
		g.drop(conn.ID(), "bad_payload", err)
		return
	}

	if teamID == "" {
		return
	}

	g.rooms.Leave(teamID, conn.ID())

	if session, ok := g.sessions.Lookup(conn.ID()); ok && session.TeamID == teamID {
		g.retractTyping(teamID, session.UserID, conn.ID())
		g.sessions.Forget(conn.ID())
	}

	metric.SetRooms(g.rooms.RoomCount())
}

func (g *gateway) handleSendMessage(conn Conn, data json.RawMessage) {
	var in events.SendMessageEvent
	if err := json.Unmarshal(data, &in); err != nil {
		g.drop(conn.ID(), "bad_payload", err)
		return
	}

	if in.TeamID == "" || in.Message == "" {
		return
	}

	now := g.now()
	msg := events.ChatMessage{
		ID:        g.newID(),
		Message:   in.Message,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Timestamp: now.UTC().Format(TimestampLayout),
	}

	// the sender is included so its own UI renders through the same path as peers
	g.broadcast(in.TeamID, events.ReceiveMessage, msg, "")

	if g.sink == nil {
		return
	}

	id, err := uuid.Parse(msg.ID)
	if err != nil {
		id = uuid.New()
	}

	g.sink.Submit(models.Message{
		ID:        id,
		TeamID:    in.TeamID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Content:   in.Message,
		CreatedAt: now,
	})
}

func (g *gateway) handleTyping(conn Conn, data json.RawMessage) {
	var in events.TypingEvent
	if err := json.Unmarshal(data, &in); err != nil {
		g.drop(conn.ID(), "bad_payload", err)
		return
	}

	if in.TeamID == "" {
		return
	}

	g.broadcast(in.TeamID, events.UserTyping, events.UserTypingEvent{
		UserID:   in.UserID,
		UserName: in.UserName,
		IsTyping: in.IsTyping,
	}, conn.ID())

	if g.typingTTL <= 0 {
		return
	}

	key := typingKey{teamID: in.TeamID, userID: in.UserID}

	if st, ok := g.typing[key]; ok {
		st.timer.Stop()
		delete(g.typing, key)
	}

	if !in.IsTyping {
		return
	}

	g.typingGen++
	gen := g.typingGen

	g.typing[key] = &typingState{
		connID:   conn.ID(),
		userName: in.UserName,
		gen:      gen,
		timer: g.afterFunc(g.typingTTL, func() {
			g.enqueue(func() { g.expireTyping(key, gen) })
		}),
	}
}

func (g *gateway) expireTyping(key typingKey, gen uint64) {
	st, ok := g.typing[key]
	if !ok || st.gen != gen {
		return
	}

	delete(g.typing, key)

	slog.Debug(
		"typing indicator expired",
		slog.String(constant.TeamID, key.teamID),
		slog.String(constant.UserID, key.userID),
	)

	g.broadcast(key.teamID, events.UserTyping, events.UserTypingEvent{
		UserID:   key.userID,
		UserName: st.userName,
		IsTyping: false,
	}, st.connID)
}

// retractTyping clears a pending indicator owned by connID and tells the room it stopped.
func (g *gateway) retractTyping(teamID, userID, connID string) {
	key := typingKey{teamID: teamID, userID: userID}

	st, ok := g.typing[key]
	if !ok || st.connID != connID {
		return
	}

	st.timer.Stop()
	delete(g.typing, key)

	g.broadcast(teamID, events.UserTyping, events.UserTypingEvent{
		UserID:   userID,
		UserName: st.userName,
		IsTyping: false,
	}, connID)
}

func (g *gateway) broadcast(teamID, event string, payload any, excludeID string) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		slog.Error("encode outbound frame", slog.String(constant.Event, event), slog.Any(constant.Error, err))
		return
	}

	g.rooms.BroadcastFrame(teamID, frame, excludeID)

	if g.relay != nil {
		g.relay.Publish(teamID, frame, excludeID)
	}
}

func (g *gateway) timestamp() string {
	return g.now().UTC().Format(TimestampLayout)
}

func joinedText(userName string) string {
	if userName == "" {
		return "A user joined the chat"
	}

	return userName + " joined the chat"
}

func leftText(userName string) string {
	if userName == "" {
		return "A user left the chat"
	}

	return userName + " left the chat"
}
