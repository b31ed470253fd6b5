package shell

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/event"
)

func newShell(t *testing.T, input string) (*Shell, *bytes.Buffer) {
	t.Helper()
	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))

	var out bytes.Buffer
	s := New(Config{
		BotName: "testbot",
		Room:    "shell",
		User:    "tester",
		In:      strings.NewReader(input),
		Out:     &out,
	}, reg, zerolog.Nop())
	return s, &out
}

func TestListen_EmitsMessagesPerLine(t *testing.T) {
	s, _ := newShell(t, "hello\n\n  \nsecond line\n")

	out := make(chan event.Event, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, s.Listen(ctx, out))
	close(out)

	var texts []string
	for ev := range out {
		msg := ev.(*event.Message)
		assert.Equal(t, "tester", msg.User)
		assert.Equal(t, "shell", msg.Target)
		texts = append(texts, msg.Text)
	}
	// blank lines are dropped
	assert.Equal(t, []string{"hello", "second line"}, texts)
}

func TestListen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := newShell(t, "")
	err := s.Listen(ctx, make(chan event.Event))
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingReader blocks Read until it is closed, like a quiet terminal.
type blockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func newBlockingReader() *blockingReader {
	return &blockingReader{closed: make(chan struct{})}
}

func (r *blockingReader) Read([]byte) (int, error) {
	<-r.closed
	return 0, io.EOF
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestListen_CancelClosesReader(t *testing.T) {
	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))

	in := newBlockingReader()
	s := New(Config{BotName: "testbot", In: in, Out: &bytes.Buffer{}}, reg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Listen(ctx, make(chan event.Event)) }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listen did not return after cancel")
	}

	// The scanner goroutine is unblocked rather than left pending in Read.
	select {
	case <-in.closed:
	case <-time.After(time.Second):
		t.Fatal("reader was not closed")
	}
}

func TestSend_Message(t *testing.T) {
	s, out := newShell(t, "")
	require.NoError(t, s.Send(context.Background(), event.NewMessage("pong")))
	assert.Contains(t, out.String(), "pong\ntestbot> ")
}

func TestSend_EditedMessageViaSubclassHandler(t *testing.T) {
	s, out := newShell(t, "")
	require.NoError(t, s.Send(context.Background(), event.NewEditedMessage("fixed", nil)))
	assert.Contains(t, out.String(), "fixed")
}

func TestSend_TypingIsSilent(t *testing.T) {
	s, out := newShell(t, "")
	require.NoError(t, s.Send(context.Background(), event.NewTyping(true, time.Second)))
	assert.Empty(t, out.String())
}

func TestSend_UnsupportedKind(t *testing.T) {
	s, _ := newShell(t, "")
	err := s.Send(context.Background(), event.NewReaction("wave", nil))
	assert.ErrorIs(t, err, errors.ErrUnsupportedEvent)
}

func TestConnect_PrintsPrompt(t *testing.T) {
	s, out := newShell(t, "")
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, "testbot> ", out.String())
}

func TestIdentityAndDelays(t *testing.T) {
	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))
	s := New(Config{
		BotName: "warble",
		In:      strings.NewReader(""),
		Out:     &bytes.Buffer{},
		Delays:  event.Delays{Thinking: [2]float64{1, 2}},
	}, reg, zerolog.Nop())

	assert.Equal(t, "shell", s.Name())
	assert.Equal(t, "warble", s.Identity())
	assert.Equal(t, [2]float64{1, 2}, s.Delays().Thinking)
}
