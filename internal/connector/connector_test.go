package connector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
)

const waitFor = 2 * time.Second

type fakeLink struct {
	inbound chan []byte

	mu     sync.Mutex
	sent   []events.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (l *fakeLink) Send(_ context.Context, frame []byte) error {
	select {
	case <-l.closed:
		return errLinkClosed
	default:
	}

	f, err := events.Decode(frame)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, f)
	return nil
}

func (l *fakeLink) Receive(_ context.Context) ([][]byte, error) {
	select {
	case f := <-l.inbound:
		return [][]byte{f}, nil
	case <-l.closed:
		return nil, errLinkClosed
	}
}

func (l *fakeLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeLink) Transport() string { return "fake" }

func (l *fakeLink) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *fakeLink) sentNamed(name string) []events.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []events.Frame
	for _, f := range l.sent {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (l *fakeLink) typingFlags(t *testing.T) []bool {
	t.Helper()

	var flags []bool
	for _, f := range l.sentNamed(events.Typing) {
		var ev events.TypingEvent
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		flags = append(flags, ev.IsTyping)
	}
	return flags
}

func (l *fakeLink) push(t *testing.T, event string, data any) {
	t.Helper()

	b, err := events.Encode(event, data)
	require.NoError(t, err)
	l.inbound <- b
}

type fakeDialer struct {
	mu    sync.Mutex
	fails int
	dials int
	links chan *fakeLink
}

func (d *fakeDialer) dial(ctx context.Context) (link, error) {
	d.mu.Lock()
	d.dials++
	if d.fails > 0 {
		d.fails--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()

	l := newFakeLink()
	select {
	case d.links <- l:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type harness struct {
	c      *Connector
	dialer *fakeDialer
	timers []*fakeTimer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	c, err := New(Options{
		URL:              "http://gateway.test",
		ReconnectInitial: time.Millisecond,
		ReconnectMax:     5 * time.Millisecond,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	h := &harness{c: c, dialer: &fakeDialer{links: make(chan *fakeLink, 4)}}
	c.dial = h.dialer.dial
	c.afterFunc = func(d time.Duration, f func()) stopper {
		timer := &fakeTimer{d: d, f: f}
		h.timers = append(h.timers, timer)
		return timer
	}

	t.Cleanup(c.Close)

	return h
}

func (h *harness) nextLink(t *testing.T) *fakeLink {
	t.Helper()

	select {
	case l := <-h.dialer.links:
		return l
	case <-time.After(waitFor):
		t.Fatal("connector did not dial")
		return nil
	}
}

// connect returns the link once join_team went out on it.
func (h *harness) connect(t *testing.T, teamID, userID, userName string) *fakeLink {
	t.Helper()

	h.c.Connect(teamID, userID, userName)

	l := h.nextLink(t)
	require.Eventually(t, func() bool { return len(l.sentNamed(events.JoinTeam)) == 1 }, waitFor, time.Millisecond)

	return l
}

func TestConnectJoinsTeam(t *testing.T) {
	h := newHarness(t)

	l := h.connect(t, "t1", "u1", "Alice")

	var join events.JoinTeamEvent
	require.NoError(t, json.Unmarshal(l.sentNamed(events.JoinTeam)[0].Data, &join))
	assert.Equal(t, events.JoinTeamEvent{TeamID: "t1", UserID: "u1", UserName: "Alice"}, join)

	assert.True(t, h.c.Snapshot().IsConnected)
	assert.Equal(t, "fake", h.c.Transport())

	// same team again is a no-op
	h.c.Connect("t1", "u1", "Alice")
	assert.False(t, l.isClosed())
	assert.Equal(t, 1, h.dialer.dialCount())
}

func TestConnectWithoutTeamDoesNothing(t *testing.T) {
	h := newHarness(t)

	h.c.Connect("", "u1", "Alice")

	assert.Equal(t, 0, h.dialer.dialCount())
	assert.False(t, h.c.Snapshot().IsConnected)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.c.SendMessage("hi"), "no connection yet")

	l := h.connect(t, "t1", "u1", "Alice")

	assert.False(t, h.c.SendMessage(""))
	assert.False(t, h.c.SendMessage("   "))
	assert.Empty(t, l.sentNamed(events.SendMessage))

	require.True(t, h.c.SendMessage("  hello team "))

	sent := l.sentNamed(events.SendMessage)
	require.Len(t, sent, 1)

	var msg events.SendMessageEvent
	require.NoError(t, json.Unmarshal(sent[0].Data, &msg))
	assert.Equal(t, events.SendMessageEvent{TeamID: "t1", Message: "hello team", UserID: "u1", UserName: "Alice"}, msg)
}

func TestStartTypingDebounces(t *testing.T) {
	h := newHarness(t)
	l := h.connect(t, "t1", "u1", "Alice")

	h.c.StartTyping()
	h.c.StartTyping()
	h.c.StartTyping()

	assert.Equal(t, []bool{true}, l.typingFlags(t))

	require.Len(t, h.timers, 3)
	assert.True(t, h.timers[0].stopped)
	assert.True(t, h.timers[1].stopped)
	assert.False(t, h.timers[2].stopped)
	assert.Equal(t, DefaultTypingTimeout, h.timers[2].d)

	// a superseded timer firing late changes nothing
	h.timers[0].f()
	assert.Equal(t, []bool{true}, l.typingFlags(t))

	h.timers[2].f()
	assert.Equal(t, []bool{true, false}, l.typingFlags(t))

	// typing again after expiry announces again
	h.c.StartTyping()
	assert.Equal(t, []bool{true, false, true}, l.typingFlags(t))
}

func TestStopTypingCancelsTimer(t *testing.T) {
	h := newHarness(t)
	l := h.connect(t, "t1", "u1", "Alice")

	h.c.StartTyping()
	h.c.StopTyping()

	assert.Equal(t, []bool{true, false}, l.typingFlags(t))
	require.Len(t, h.timers, 1)
	assert.True(t, h.timers[0].stopped)

	h.timers[0].f()
	assert.Equal(t, []bool{true, false}, l.typingFlags(t))
}

func TestStartTypingWhileDisconnectedIsNoop(t *testing.T) {
	h := newHarness(t)

	h.c.StartTyping()

	assert.Empty(t, h.timers)
}

func TestIncomingEventsUpdateState(t *testing.T) {
	h := newHarness(t)
	l := h.connect(t, "t1", "u1", "Alice")

	msg := events.ChatMessage{ID: "m1", Message: "hi", UserID: "u2", UserName: "Bob"}
	l.push(t, events.ReceiveMessage, msg)
	l.push(t, events.ReceiveMessage, msg)
	l.push(t, events.UserTyping, events.UserTypingEvent{UserID: "u2", UserName: "Bob", IsTyping: true})
	l.inbound <- []byte("garbage")
	l.push(t, events.UserJoined, events.UserJoinedEvent{UserID: "u3", UserName: "Carol"})

	require.Eventually(t, func() bool { return len(h.c.Snapshot().Notices) == 1 }, waitFor, time.Millisecond)

	s := h.c.Snapshot()
	assert.Equal(t, []events.ChatMessage{msg}, s.Messages)
	assert.Equal(t, []TypingUser{{UserID: "u2", UserName: "Bob", IsTyping: true}}, s.TypingUsers)

	l.push(t, events.UserTyping, events.UserTypingEvent{UserID: "u2", IsTyping: false})
	require.Eventually(t, func() bool { return len(h.c.Snapshot().TypingUsers) == 0 }, waitFor, time.Millisecond)

	select {
	case <-h.c.Updates():
	default:
		t.Fatal("expected an update notification")
	}
}

func TestReconnectRejoins(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t, "t1", "u1", "Alice")

	h.dialer.mu.Lock()
	h.dialer.fails = 2
	h.dialer.mu.Unlock()

	// gateway restarted
	require.NoError(t, first.Close())

	second := h.nextLink(t)
	require.Eventually(t, func() bool { return len(second.sentNamed(events.JoinTeam)) == 1 }, waitFor, time.Millisecond)

	assert.True(t, h.c.Snapshot().IsConnected)
	assert.Equal(t, 4, h.dialer.dialCount())
}

func TestSendWhileReconnectingIsNoop(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t, "t1", "u1", "Alice")

	h.dialer.mu.Lock()
	h.dialer.fails = 1 << 30
	h.dialer.mu.Unlock()

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return !h.c.Snapshot().IsConnected }, waitFor, time.Millisecond)

	assert.False(t, h.c.SendMessage("anyone?"))
	assert.Empty(t, first.sentNamed(events.SendMessage))
}

func TestChangingTeamReconnects(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t, "t1", "u1", "Alice")
	first.push(t, events.ReceiveMessage, events.ChatMessage{ID: "m1", Message: "old team"})
	require.Eventually(t, func() bool { return len(h.c.Snapshot().Messages) == 1 }, waitFor, time.Millisecond)

	second := h.connect(t, "t2", "u1", "Alice")

	assert.True(t, first.isClosed())

	var join events.JoinTeamEvent
	require.NoError(t, json.Unmarshal(second.sentNamed(events.JoinTeam)[0].Data, &join))
	assert.Equal(t, "t2", join.TeamID)
	assert.Empty(t, h.c.Snapshot().Messages)
}

func TestCloseStopsTypingAndDisconnects(t *testing.T) {
	h := newHarness(t)
	l := h.connect(t, "t1", "u1", "Alice")

	h.c.StartTyping()
	h.c.Close()

	assert.Equal(t, []bool{true, false}, l.typingFlags(t))
	assert.True(t, l.isClosed())
	assert.False(t, h.c.Snapshot().IsConnected)
	assert.Equal(t, "", h.c.Transport())
	assert.False(t, h.c.SendMessage("bye"))

	// closing twice is fine
	h.c.Close()
}

func TestCloseWithoutTypingSendsNoTypingFrame(t *testing.T) {
	h := newHarness(t)
	l := h.connect(t, "t1", "u1", "Alice")

	h.c.Close()

	assert.True(t, l.isClosed())
	assert.Empty(t, l.sentNamed(events.Typing))
}

func TestChangingTeamWithoutTypingSendsNoTypingFrame(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t, "t1", "u1", "Alice")

	h.c.StartTyping()
	h.timers[0].f()
	require.Equal(t, []bool{true, false}, first.typingFlags(t))

	h.connect(t, "t2", "u1", "Alice")

	assert.Equal(t, []bool{true, false}, first.typingFlags(t), "an expired indicator is not stopped twice")
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{URL: "ftp://example.com"})
	require.ErrorIs(t, err, ErrBadURL)
}
