package terminal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m4xw311/tgpt/chat"
	"github.com/m4xw311/tgpt/config"
	"github.com/m4xw311/tgpt/llm"
	"github.com/m4xw311/tgpt/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestState(t *testing.T, client llm.Client) *chat.State {
	t.Helper()
	cfg := config.Default()
	cfg.LLMClient = config.ProviderMock
	cfg.HistoryDir = t.TempDir()

	s, err := chat.New(cfg, client, nil)
	require.NoError(t, err)
	return s
}

func readLinesOf(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestRunChatAndExit(t *testing.T) {
	s := newTestState(t, &llm.MockClient{Reply: "Hi there"})
	var out bytes.Buffer

	err := New(s, strings.NewReader("Hello\nexit\n"), &out).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "ChatGPT Terminal Interface. Type 'exit' to end the chat.")
	assert.Contains(t, out.String(), "ChatGPT: Hi there\n")
	assert.True(t, strings.HasSuffix(out.String(), "Chat history saved. Exiting...\n"), out.String())

	lines := readLinesOf(t, s.Filename)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "] User: Hello")
	assert.True(t, strings.HasSuffix(lines[1], "] Assistant: Hi there"), lines[1])
}

func TestRunEOFPersists(t *testing.T) {
	s := newTestState(t, &llm.MockClient{Reply: "ok"})
	var out bytes.Buffer

	err := New(s, strings.NewReader("first\nsecond"), &out).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Chat history saved. Exiting...")
	assert.Len(t, readLinesOf(t, s.Filename), 4)
}

func TestRunExitWithoutMessagesCreatesFile(t *testing.T) {
	s := newTestState(t, &llm.MockClient{})
	var out bytes.Buffer

	require.NoError(t, New(s, strings.NewReader("EXIT\n"), &out).Run(context.Background()))
	_, err := os.Stat(s.Filename)
	assert.NoError(t, err)
	assert.Empty(t, readLinesOf(t, s.Filename))
}

func TestRunReportsAPIError(t *testing.T) {
	mock := &llm.MockClient{Err: &llm.APIError{StatusCode: 401, Body: `{"error":{"message":"bad key"}}`}}
	s := newTestState(t, mock)
	var out bytes.Buffer

	require.NoError(t, New(s, strings.NewReader("Hello\nexit\n"), &out).Run(context.Background()))
	assert.Contains(t, out.String(), `Error 401: {"error":{"message":"bad key"}}`)

	// The unanswered user turn is still saved on exit.
	lines := readLinesOf(t, s.Filename)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "] User: Hello")
}

func TestRunReportsUsageError(t *testing.T) {
	mock := &llm.MockClient{}
	s := newTestState(t, mock)
	var out bytes.Buffer

	require.NoError(t, New(s, strings.NewReader("lcht tell me more\nexit\n"), &out).Run(context.Background()))
	assert.Contains(t, out.String(), "Usage: lcht")
	assert.Empty(t, mock.Calls)
}

func TestRunPrintsNotices(t *testing.T) {
	s := newTestState(t, &llm.MockClient{})
	var out bytes.Buffer

	input := "load history nothing.txt\nhelp\nexit\n"
	require.NoError(t, New(s, strings.NewReader(input), &out).Run(context.Background()))
	assert.Contains(t, out.String(), "No chat history found for")
	assert.Contains(t, out.String(), chat.HelpText)
	assert.Equal(t, filepath.Join(s.Config.HistoryDir, "nothing.txt"), s.Filename)
}

func TestRunMalformedLoadIsFatal(t *testing.T) {
	s := newTestState(t, &llm.MockClient{Reply: "ok"})
	original := s.Filename
	bad := filepath.Join(s.Config.HistoryDir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("garbage\n"), 0644))

	var out bytes.Buffer
	err := New(s, strings.NewReader("Hello\nload history bad.txt\nnever sent\n"), &out).Run(context.Background())
	var parseErr *session.ParseError
	require.ErrorAs(t, err, &parseErr)

	assert.Equal(t, original, s.Filename)
	assert.Len(t, readLinesOf(t, original), 2)
	assert.Contains(t, out.String(), "Chat history saved. Exiting...")
}

func TestRunFatalErrorKeepsSaveFailure(t *testing.T) {
	s := newTestState(t, &llm.MockClient{Reply: "ok"})
	bad := filepath.Join(s.Config.HistoryDir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("garbage\n"), 0644))
	s.Filename = filepath.Join(s.Config.HistoryDir, "gone", "chat.txt")

	var out bytes.Buffer
	err := New(s, strings.NewReader("load history bad.txt\n"), &out).Run(context.Background())

	var parseErr *session.ParseError
	require.ErrorAs(t, err, &parseErr)
	var persistErr *chat.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, s.Filename, persistErr.Path)
	assert.Contains(t, out.String(), "Warning: ")
	assert.NotContains(t, out.String(), "Chat history saved.")
}

func TestRunSaveFailureIsWarning(t *testing.T) {
	s := newTestState(t, &llm.MockClient{})
	s.Filename = filepath.Join(s.Config.HistoryDir, "gone", "chat.txt")

	var out bytes.Buffer
	require.NoError(t, New(s, strings.NewReader("exit\n"), &out).Run(context.Background()))
	assert.Contains(t, out.String(), "Warning: ")
}

// blockingClient blocks every call until ctx is done.
type blockingClient struct {
	called chan struct{}
}

func (b *blockingClient) Chat(ctx context.Context, _ []llm.Message) (string, error) {
	close(b.called)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunInterruptDuringCall(t *testing.T) {
	client := &blockingClient{called: make(chan struct{})}
	s := newTestState(t, client)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	result := make(chan error, 1)
	go func() { result <- New(s, pr, &out).Run(ctx) }()

	_, err := io.WriteString(pw, "Hello\n")
	require.NoError(t, err)
	select {
	case <-client.called:
	case <-time.After(5 * time.Second):
		t.Fatal("chat request was not sent")
	}
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Contains(t, out.String(), "Chat history saved. Exiting...")
	lines := readLinesOf(t, s.Filename)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "] User: Hello")
}

func TestRunInterruptWhileReading(t *testing.T) {
	s := newTestState(t, &llm.MockClient{})
	pr, pw := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	result := make(chan error, 1)
	go func() { result <- New(s, pr, &out).Run(ctx) }()

	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	// Unblocks the reader goroutine.
	require.NoError(t, pw.Close())

	_, err := os.Stat(s.Filename)
	assert.NoError(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Error 500: down", describe(&llm.APIError{StatusCode: 500, Body: "down"}))
	assert.Equal(t, "Error: boom", describe(fmt.Errorf("boom")))
	assert.Equal(t, "Usage: sh <file> (missing filename)", describe(&chat.UsageError{Usage: "sh <file>", Msg: "missing filename"}))
}

func TestRendererPlain(t *testing.T) {
	r := newRenderer(false, false)
	assert.Equal(t, "You: ", r.prompt())
	assert.Equal(t, "ChatGPT: **hi**", r.reply("ChatGPT", "**hi**"))
	assert.Equal(t, "note", r.notice("note"))
}

func TestRendererMarkdown(t *testing.T) {
	r := newRenderer(false, true)
	require.NotNil(t, r.markdown)
	out := r.reply("ChatGPT", "# Title\n\nsome *text*")
	assert.True(t, strings.HasPrefix(out, "ChatGPT: "), out)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")
}
