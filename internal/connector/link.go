package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

var errLinkClosed = errors.New("link closed")

// link is one established transport to the gateway.
type link interface {
	Send(ctx context.Context, frame []byte) error
	// Receive blocks until at least one frame arrives or the link fails.
	Receive(ctx context.Context) ([][]byte, error)
	Close() error
	Transport() string
}

type wsLink struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func dialWebSocket(ctx context.Context, base *url.URL, header http.Header) (link, error) {
	u := *base
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.String(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	return &wsLink{conn: conn}, nil
}

func (l *wsLink) Send(_ context.Context, frame []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	return l.conn.WriteMessage(websocket.TextMessage, frame)
}

func (l *wsLink) Receive(_ context.Context) ([][]byte, error) {
	_, msg, err := l.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	return [][]byte{msg}, nil
}

func (l *wsLink) Close() error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	_ = l.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)

	return l.conn.Close()
}

func (l *wsLink) Transport() string {
	return TransportWebSocket
}

// pollLink speaks the gateway's long-polling fallback.
type pollLink struct {
	client  *http.Client
	pollURL string

	closeOnce sync.Once
	closed    chan struct{}
}

func dialPolling(ctx context.Context, client *http.Client, base *url.URL, header http.Header) (link, error) {
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/poll"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open poll session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open poll session: unexpected status %d", resp.StatusCode)
	}

	var open struct {
		SID string `json:"sid"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&open); err != nil {
		return nil, fmt.Errorf("decode poll session: %w", err)
	}

	if open.SID == "" {
		return nil, errors.New("open poll session: empty sid")
	}

	return &pollLink{
		client:  client,
		pollURL: u.String() + "/" + url.PathEscape(open.SID),
		closed:  make(chan struct{}),
	}, nil
}

func (l *pollLink) Send(ctx context.Context, frame []byte) error {
	resp, err := l.do(ctx, http.MethodPost, bytes.NewReader(frame))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("send frame: unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (l *pollLink) Receive(ctx context.Context) ([][]byte, error) {
	for {
		ctx, cancel := l.closable(ctx)
		frames, err := l.poll(ctx)
		cancel()

		if err != nil {
			select {
			case <-l.closed:
				return nil, errLinkClosed
			default:
				return nil, err
			}
		}

		if len(frames) > 0 {
			return frames, nil
		}
	}
}

func (l *pollLink) poll(ctx context.Context) ([][]byte, error) {
	resp, err := l.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var batch []json.RawMessage
	if err = json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode poll batch: %w", err)
	}

	frames := make([][]byte, 0, len(batch))
	for _, f := range batch {
		frames = append(frames, f)
	}

	return frames, nil
}

// closable ties a request to Close so a pending long poll returns right away.
func (l *pollLink) closable(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		select {
		case <-l.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func (l *pollLink) Close() error {
	var err error

	l.closeOnce.Do(func() {
		close(l.closed)

		var resp *http.Response
		resp, err = l.do(context.Background(), http.MethodDelete, nil)
		if err == nil {
			resp.Body.Close()
		}
	})

	return err
}

func (l *pollLink) Transport() string {
	return TransportPolling
}

func (l *pollLink) do(ctx context.Context, method string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, l.pollURL, body)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return l.client.Do(req)
}
