// Package shell is a connector that reads messages from a reader (stdin by
// default) and writes replies to a writer. It exists for local runs and for
// exercising the connector contract in tests.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/connector"
	"github.com/warblebot/warble/internal/event"
)

// Config configures the shell connector.
type Config struct {
	// BotName is the prompt prefix for replies. Default "warble".
	BotName string

	// Room is the target stamped on inbound messages. Default "shell".
	Room string

	// User is the display name for inbound messages. Default $USER.
	User string

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer

	// Delays are the thinking/typing delays applied to replies.
	Delays event.Delays
}

// Shell is the stdin/stdout connector.
type Shell struct {
	connector.Base
	cfg      Config
	dispatch *connector.Dispatch
	logger   zerolog.Logger

	mu sync.Mutex // serializes writes to Out
}

// New creates a shell connector with its outbound dispatch table.
func New(cfg Config, reg *event.Registry, logger zerolog.Logger) *Shell {
	if cfg.BotName == "" {
		cfg.BotName = "warble"
	}
	if cfg.Room == "" {
		cfg.Room = "shell"
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	s := &Shell{
		Base: connector.Base{
			ConnectorName: "shell",
			BotName:       cfg.BotName,
			DelayConfig:   cfg.Delays,
		},
		cfg:    cfg,
		logger: logger.With().Str("component", "connector").Str("connector", "shell").Logger(),
	}

	d := connector.NewDispatch(reg)
	d.SetDefaultTarget(cfg.Room)
	d.MustHandle(event.KindMessage, s.sendMessage, connector.WithSubclasses())
	d.MustHandle(event.KindTyping, s.sendTyping)
	s.dispatch = d
	return s
}

// Connect prints the prompt. There is no session to establish.
func (s *Shell) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.cfg.Out, "%s> ", s.cfg.BotName)
	return err
}

// Listen reads lines until EOF or cancellation, emitting each line as a
// Message event.
func (s *Shell) Listen(ctx context.Context, out chan<- event.Event) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.cfg.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.closeInput()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.logger.Debug().Msg("input closed")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			msg := event.NewMessage(line)
			msg.User = s.cfg.User
			msg.UserID = s.cfg.User
			msg.Target = s.cfg.Room
			msg.Connector = s

			select {
			case out <- msg:
			case <-ctx.Done():
				s.closeInput()
				return ctx.Err()
			}
		}
	}
}

// closeInput unblocks a Scan pending on a closable reader once listening
// ends. Stdin is left alone; it is shared with the rest of the process, so
// there the scanner goroutine lingers until the next line or EOF.
func (s *Shell) closeInput() {
	if c, ok := s.cfg.In.(io.Closer); ok && s.cfg.In != os.Stdin {
		c.Close()
	}
}

// Send dispatches on the event kind.
func (s *Shell) Send(ctx context.Context, ev event.Event) error {
	return s.dispatch.Send(ctx, ev)
}

// Disconnect has nothing to release.
func (s *Shell) Disconnect(_ context.Context) error { return nil }

func (s *Shell) sendMessage(_ context.Context, ev event.Event) error {
	fp, ok := ev.(event.FieldProvider)
	if !ok {
		return nil
	}
	text, _ := fp.Field("text")

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.cfg.Out, "%s\n%s> ", text, s.cfg.BotName)
	return err
}

func (s *Shell) sendTyping(_ context.Context, _ event.Event) error {
	// A terminal has no typing indicator.
	return nil
}
