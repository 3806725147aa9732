package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Unmesh-12634/HackMate-sub001/internal/connector"
	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/events"
)

var chatFlags struct {
	url       string
	team      string
	user      string
	name      string
	transport string
	verbose   bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join a team chat from the terminal",
	Long: `Join a team chat from the terminal. Every line read from stdin is sent as a message.

Commands:
  /typing   announce typing (cleared after a few seconds of silence)
  /stop     clear the typing indicator
  /quit     leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatFlags.url, "url", "http://localhost:3000", "gateway base url")
	f.StringVar(&chatFlags.team, "team", "", "team to join")
	f.StringVar(&chatFlags.user, "user", "", "user id (random when empty)")
	f.StringVar(&chatFlags.name, "name", "", "display name")
	f.StringVar(&chatFlags.transport, "transport", "", "force websocket or polling")
	f.BoolVar(&chatFlags.verbose, "verbose", false, "log connection details to stderr")

	_ = chatCmd.MarkFlagRequired("team")

	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	level := slog.LevelError
	if chatFlags.verbose {
		level = slog.LevelDebug
	}

	opts := connector.Options{
		URL:    chatFlags.url,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	switch chatFlags.transport {
	case "":
	case connector.TransportWebSocket, connector.TransportPolling:
		opts.Transports = []string{chatFlags.transport}
	default:
		return fmt.Errorf("unknown transport %q", chatFlags.transport)
	}

	c, err := connector.New(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	userID := chatFlags.user
	if userID == "" {
		userID = uuid.NewString()
	}

	c.Connect(chatFlags.team, userID, chatFlags.name)

	go render(ctx, c, out, userID)

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/typing":
				c.StartTyping()
			case "/stop":
				c.StopTyping()
			default:
				c.StopTyping()
				if !c.SendMessage(line) && strings.TrimSpace(line) != "" {
					fmt.Fprintln(out, "! not connected, message not sent")
				}
			}
		}
	}
}

// render prints whatever arrived since the previous snapshot.
func render(ctx context.Context, c *connector.Connector, out io.Writer, self string) {
	var (
		seenMessages int
		seenNotices  int
		connected    bool
		typing       string
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Updates():
		}

		s := c.Snapshot()

		if s.IsConnected != connected {
			connected = s.IsConnected
			if connected {
				fmt.Fprintf(out, "* connected (%s)\n", c.Transport())
			} else {
				fmt.Fprintln(out, "* disconnected, retrying")
			}
		}

		// a team switch resets the state
		if len(s.Messages) < seenMessages {
			seenMessages = 0
		}
		if len(s.Notices) < seenNotices {
			seenNotices = 0
		}

		for _, m := range s.Messages[seenMessages:] {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp, displayName(m.UserName, m.UserID == self), m.Message)
		}
		seenMessages = len(s.Messages)

		for _, n := range s.Notices[seenNotices:] {
			fmt.Fprintf(out, "* %s\n", noticeText(n))
		}
		seenNotices = len(s.Notices)

		if line := typingLine(s.TypingUsers); line != typing {
			typing = line
			if line != "" {
				fmt.Fprintf(out, "* %s\n", line)
			}
		}
	}
}

func displayName(name string, self bool) string {
	if self {
		return "you"
	}
	if name == "" {
		return "anonymous"
	}
	return name
}

func noticeText(n connector.Notice) string {
	if n.Message != "" {
		return n.Message
	}

	verb := "joined"
	if n.Event == events.UserLeft {
		verb = "left"
	}

	return displayName(n.UserName, false) + " " + verb
}

func typingLine(users []connector.TypingUser) string {
	if len(users) == 0 {
		return ""
	}

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, displayName(u.UserName, false))
	}

	if len(names) == 1 {
		return names[0] + " is typing..."
	}

	return strings.Join(names, ", ") + " are typing..."
}
