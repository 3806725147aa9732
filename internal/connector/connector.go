// Package connector is the client half of the team chat protocol. A Connector
// owns one gateway connection per active team view: it joins the team on every
// (re)connect, exposes the send primitives, and folds incoming events into a
// State that a UI can render.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
)

const (
	DefaultTypingTimeout = 3 * time.Second

	sendTimeout = 10 * time.Second
)

var ErrBadURL = errors.New("connector: base url must be http(s) or ws(s)")

type Options struct {
	// URL is the gateway base, e.g. http://localhost:3000.
	URL string
	// Transports are tried in order on every (re)connect.
	Transports []string

	TypingTimeout time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Header     http.Header
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type stopper interface {
	Stop() bool
}

type dialFunc func(ctx context.Context) (link, error)

type identity struct {
	teamID   string
	userID   string
	userName string
}

type Connector struct {
	opts Options

	dial      dialFunc
	afterFunc func(time.Duration, func()) stopper
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	who     identity
	link    link
	cancel  context.CancelFunc
	stopped chan struct{}

	typing      bool
	typingGen   uint64
	typingTimer stopper

	updates chan struct{}
}

func New(opts Options) (*Connector, error) {
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	switch base.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, ErrBadURL
	}

	if base.Scheme == "ws" {
		base.Scheme = "http"
	} else if base.Scheme == "wss" {
		base.Scheme = "https"
	}

	if len(opts.Transports) == 0 {
		opts.Transports = []string{TransportWebSocket, TransportPolling}
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Connector{
		opts:    opts,
		log:     opts.Logger,
		updates: make(chan struct{}, 1),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}

	c.dial = func(ctx context.Context) (link, error) {
		return c.dialAny(ctx, base)
	}

	return c, nil
}

// dialAny prefers the persistent stream and falls back to polling.
func (c *Connector) dialAny(ctx context.Context, base *url.URL) (link, error) {
	var errs []error

	for _, transport := range c.opts.Transports {
		var (
			l   link
			err error
		)

		switch transport {
		case TransportWebSocket:
			l, err = dialWebSocket(ctx, base, c.opts.Header)
		case TransportPolling:
			l, err = dialPolling(ctx, c.opts.HTTPClient, base, c.opts.Header)
		default:
			err = fmt.Errorf("unknown transport %q", transport)
		}

		if err == nil {
			return l, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", transport, err))
	}

	return nil, errors.Join(errs...)
}

// Connect opens the connection for a team view. Calling it again for the same
// team is a no-op; a different team tears the old connection down first.
// An empty teamID only tears down.
func (c *Connector) Connect(teamID, userID, userName string) {
	who := identity{teamID: teamID, userID: userID, userName: userName}

	c.mu.Lock()
	if c.cancel != nil && c.who == who {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.teardown()

	if teamID == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	c.mu.Lock()
	c.who = who
	c.state = State{}
	c.cancel = cancel
	c.stopped = stopped
	c.mu.Unlock()

	c.notify()

	go func() {
		defer close(stopped)
		c.run(ctx, who)
	}()
}

// Close stops typing, closes the transport and stops reconnecting.
func (c *Connector) Close() {
	c.teardown()
}

func (c *Connector) teardown() {
	c.stopTyping(false)

	c.mu.Lock()
	cancel, stopped, l := c.cancel, c.stopped, c.link
	c.cancel, c.stopped, c.link = nil, nil, nil
	c.state.IsConnected = false
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	if l != nil {
		_ = l.Close()
	}
	<-stopped

	c.notify()
}

func (c *Connector) run(ctx context.Context, who identity) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectInitial
	b.MaxInterval = c.opts.ReconnectMax

	for {
		l, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			wait := b.NextBackOff()
			c.log.Warn("gateway unreachable", slog.Duration("retry_in", wait), slog.Any(constant.Error, err))

			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		b.Reset()

		if !c.attach(ctx, l) {
			_ = l.Close()
			return
		}

		c.log.Info("connected to gateway", slog.String("transport", l.Transport()), slog.String(constant.TeamID, who.teamID))

		// state is process-local on the gateway: every new link has to join again
		c.emit(events.JoinTeam, events.JoinTeamEvent{TeamID: who.teamID, UserID: who.userID, UserName: who.userName})

		err = c.readLoop(ctx, l)

		c.detach(l)
		_ = l.Close()

		if ctx.Err() != nil {
			return
		}

		c.log.Warn("gateway connection lost", slog.Any(constant.Error, err))

		if !sleep(ctx, b.NextBackOff()) {
			return
		}
	}
}

func (c *Connector) attach(ctx context.Context, l link) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.link = l
	c.state.IsConnected = true
	c.mu.Unlock()

	c.notify()

	return true
}

func (c *Connector) detach(l link) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
		c.state.IsConnected = false
	}
	c.typing = false
	c.mu.Unlock()

	c.notify()
}

func (c *Connector) readLoop(ctx context.Context, l link) error {
	for {
		frames, err := l.Receive(ctx)
		if err != nil {
			return err
		}

		for _, raw := range frames {
			f, err := events.Decode(raw)
			if err != nil {
				c.log.Debug("drop frame from gateway", slog.Any(constant.Error, err))
				continue
			}

			c.mu.Lock()
			next, changed := apply(c.state, f)
			if changed {
				c.state = next
			}
			c.mu.Unlock()

			if changed {
				c.notify()
			}
		}
	}
}

// SendMessage reports whether the message went out. Blank text and a missing
// connection are no-ops.
func (c *Connector) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	who := c.who
	c.mu.Unlock()

	return c.emit(events.SendMessage, events.SendMessageEvent{
		TeamID:   who.teamID,
		Message:  text,
		UserID:   who.userID,
		UserName: who.userName,
	})
}

// StartTyping announces typing once and (re)arms the inactivity timer, so a
// burst of keystrokes produces one start and one stop.
func (c *Connector) StartTyping() {
	c.mu.Lock()
	if c.link == nil || c.who.teamID == "" {
		c.mu.Unlock()
		return
	}

	wasTyping := c.typing
	c.typing = true

	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}

	c.typingGen++
	gen := c.typingGen
	c.typingTimer = c.afterFunc(c.opts.TypingTimeout, func() { c.typingExpired(gen) })
	c.mu.Unlock()

	if !wasTyping {
		c.emitTyping(true)
	}
}

// StopTyping announces the stop right away and cancels the pending timer.
func (c *Connector) StopTyping() {
	c.stopTyping(true)
}

// stopTyping cancels the timer; unless always is set it only announces a stop
// that follows an announced start.
func (c *Connector) stopTyping(always bool) {
	c.mu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingGen++
	wasTyping := c.typing
	c.typing = false
	c.mu.Unlock()

	if always || wasTyping {
		c.emitTyping(false)
	}
}

func (c *Connector) typingExpired(gen uint64) {
	c.mu.Lock()
	if gen != c.typingGen || !c.typing {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.typingTimer = nil
	c.mu.Unlock()

	c.emitTyping(false)
}

func (c *Connector) emitTyping(isTyping bool) {
	c.mu.Lock()
	who := c.who
	c.mu.Unlock()

	c.emit(events.Typing, events.TypingEvent{
		TeamID:   who.teamID,
		UserID:   who.userID,
		UserName: who.userName,
		IsTyping: isTyping,
	})
}

func (c *Connector) emit(event string, data any) bool {
	c.mu.Lock()
	l, teamID := c.link, c.who.teamID
	c.mu.Unlock()

	if l == nil || teamID == "" {
		return false
	}

	frame, err := events.Encode(event, data)
	if err != nil {
		c.log.Error("encode frame", slog.String(constant.Event, event), slog.Any(constant.Error, err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err = l.Send(ctx, frame); err != nil {
		c.log.Warn("send frame", slog.String(constant.Event, event), slog.Any(constant.Error, err))
		return false
	}

	return true
}

// Snapshot returns a copy of the current state.
func (c *Connector) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.clone()
}

// Transport names the transport in use, or "" while disconnected.
func (c *Connector) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		return ""
	}

	return c.link.Transport()
}

// Updates signals (coalesced) whenever the state changes.
func (c *Connector) Updates() <-chan struct{} {
	return c.updates
}

func (c *Connector) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
