package chat

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/m4xw311/tgpt/config"
	"github.com/m4xw311/tgpt/errors"
	"github.com/m4xw311/tgpt/llm"
	"github.com/m4xw311/tgpt/session"
)

// State is everything one chat session carries between inputs. It is owned
// by a single goroutine and is not safe for concurrent use.
type State struct {
	Config     *config.Config
	LLMClient  llm.Client
	Transcript session.Transcript
	// Filename is where the transcript is persisted after every reply and on exit.
	Filename string

	window    session.Transcript
	windowSet bool

	logger *zap.Logger
	now    func() time.Time
}

// Callbacks lets the caller decide how outcomes are shown. Nil callbacks are
// skipped.
type Callbacks struct {
	// OnReply receives a successful reply. The assistant turn has already been
	// appended.
	OnReply func(reply string)
	// OnNotice receives informational messages from commands.
	OnNotice func(message string)
	// OnError receives non-fatal failures: usage errors, failed remote calls
	// and failed saves.
	OnError func(err error)
}

func (c Callbacks) reply(s string) {
	if c.OnReply != nil {
		c.OnReply(s)
	}
}

func (c Callbacks) notice(format string, a ...interface{}) {
	if c.OnNotice != nil {
		c.OnNotice(fmt.Sprintf(format, a...))
	}
}

func (c Callbacks) failure(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// PersistError is returned by Send when the reply arrived but the transcript
// could not be written.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to save chat history to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// New creates a session with an empty transcript and a fresh dated filename
// in the configured history directory.
func New(cfg *config.Config, client llm.Client, logger *zap.Logger) (*State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryDir != "" {
		if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create history directory %s", cfg.HistoryDir)
		}
	}
	filename, err := session.DefaultFilename(cfg.HistoryDir, time.Now())
	if err != nil {
		return nil, err
	}
	return &State{
		Config:     cfg,
		LLMClient:  client,
		Transcript: session.Transcript{},
		Filename:   filename,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Window returns the active context window and whether one is set.
func (s *State) Window() (session.Transcript, bool) {
	return s.window, s.windowSet
}

// ProcessInput handles one line of user input. It returns exit=true when the
// user asked to leave. A non-nil error is fatal for the session: a session
// file that could not be parsed, or cancellation of ctx during a remote call.
// Everything else is reported through cb and the session continues.
func (s *State) ProcessInput(ctx context.Context, line string, cb Callbacks) (exit bool, err error) {
	if strings.TrimSpace(line) == "" {
		return false, nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		cb.failure(err)
		return false, nil
	}
	s.logger.Debug("input classified", zap.Stringer("kind", cmd.Kind))

	switch cmd.Kind {
	case KindExit:
		return true, nil

	case KindHelp:
		cb.notice("%s", HelpText)

	case KindLoad, KindLoadFull, KindLoadTruncated:
		if err := s.load(cmd.Arg, cb); err != nil {
			var parseErr *session.ParseError
			if errors.As(err, &parseErr) {
				return false, err
			}
			cb.failure(err)
			return false, nil
		}
		switch cmd.Kind {
		case KindLoadFull:
			s.SetWindow(false)
			cb.notice("Context window set to the full history (%d messages).", len(s.window))
		case KindLoadTruncated:
			s.SetWindow(true)
			cb.notice("Context window set to the last %d messages.", len(s.window))
		}

	case KindSave:
		if err := s.Save(cmd.Arg); err != nil {
			cb.failure(err)
			return false, nil
		}
		cb.notice("Chat history saved to %s.", s.Filename)

	case KindWindowFull:
		s.SetWindow(false)
		cb.notice("Context window set to the full history (%d messages).", len(s.window))

	case KindWindowTruncated:
		s.SetWindow(true)
		cb.notice("Context window set to the last %d messages.", len(s.window))

	case KindList:
		files, err := s.List(cmd.Arg)
		if err != nil {
			cb.failure(err)
			return false, nil
		}
		if len(files) == 0 {
			cb.notice("No chat history files found.")
			return false, nil
		}
		cb.notice("%s", strings.Join(files, "\n"))

	case KindChat:
		reply, err := s.Send(ctx, cmd.Arg)
		var persistErr *PersistError
		switch {
		case err == nil:
			cb.reply(reply)
		case errors.As(err, &persistErr):
			cb.reply(reply)
			cb.failure(err)
		case ctx.Err() != nil:
			return false, ctx.Err()
		default:
			cb.failure(err)
		}
	}
	return false, nil
}

func (s *State) load(name string, cb Callbacks) error {
	found, err := s.Load(name)
	if err != nil {
		return err
	}
	if found {
		cb.notice("Loaded chat history from %s.", s.Filename)
	} else {
		cb.notice("No chat history found for %s. Starting a new session.", s.Filename)
	}
	return nil
}

// Load replaces the transcript with the contents of name, resolved against the
// history directory, and makes it the current filename. A missing file starts
// an empty transcript and reports found=false. On any other error the state is
// left untouched. Loading clears the context window, which belonged to the
// previous transcript.
func (s *State) Load(name string) (found bool, err error) {
	path := session.Resolve(s.Config.HistoryDir, name)
	t, err := session.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t = session.Transcript{}
	case err != nil:
		return false, err
	default:
		found = true
	}

	s.Transcript = t
	s.Filename = path
	s.window, s.windowSet = nil, false
	s.logger.Info("session loaded", zap.String("file", path), zap.Int("turns", len(t)), zap.Bool("found", found))
	return found, nil
}

// Save writes the transcript to name and makes it the current filename. The
// filename only changes when the write succeeds.
func (s *State) Save(name string) error {
	path := session.Resolve(s.Config.HistoryDir, name)
	if err := session.Save(path, s.Transcript); err != nil {
		return errors.Wrapf(err, "failed to save chat history to %s", path)
	}
	s.Filename = path
	return nil
}

// Persist writes the transcript to the current filename.
func (s *State) Persist() error {
	if err := session.Save(s.Filename, s.Transcript); err != nil {
		s.logger.Warn("failed to persist session", zap.String("file", s.Filename), zap.Error(err))
		return &PersistError{Path: s.Filename, Err: err}
	}
	return nil
}

// SetWindow snapshots the transcript as the context for following messages:
// all of it, or only the configured number of most recent turns. The snapshot
// does not grow as the conversation continues.
func (s *State) SetWindow(truncated bool) {
	if truncated {
		s.window = s.Transcript.Last(s.windowSize())
	} else {
		s.window = s.Transcript.Clone()
	}
	s.windowSet = true
}

func (s *State) windowSize() int {
	if s.Config.WindowSize > 0 {
		return s.Config.WindowSize
	}
	return session.DefaultWindowSize
}

// List returns the session files in the history directory matching pattern.
func (s *State) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = session.DefaultListPattern
	}
	return session.List(s.Config.HistoryDir, pattern)
}

// Send records text as a user turn, asks the model for a reply, records the
// reply and persists the transcript. On a failed call only the user turn is
// recorded and nothing is written.
func (s *State) Send(ctx context.Context, text string) (string, error) {
	turnID := uuid.NewString()
	logger := s.logger.With(zap.String("turn", turnID))

	current := session.NewTurn(session.RoleUser, text, s.now())
	s.Transcript.Append(current)
	messages := s.messages(current)
	logger.Debug("sending chat request", zap.Int("messages", len(messages)), zap.Bool("window", s.windowSet))

	start := time.Now()
	reply, err := s.LLMClient.Chat(llm.WithRequestID(ctx, turnID), messages)
	if err != nil {
		logger.Debug("chat request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", err
	}
	logger.Debug("chat reply received", zap.Duration("duration", time.Since(start)), zap.Int("length", len(reply)))

	s.Transcript.Append(session.NewTurn(session.RoleAssistant, reply, s.now()))
	if err := s.Persist(); err != nil {
		return reply, err
	}
	return reply, nil
}

// messages builds the outgoing request for the user turn just appended.
func (s *State) messages(current session.Turn) []llm.Message {
	var history session.Transcript
	switch {
	case s.windowSet:
		history = append(s.window.Clone(), current)
	case s.Config.HistoryMode == config.HistoryCurrent:
		history = session.Transcript{current}
	default:
		history = s.Transcript
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.Config.SystemPrompt})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Content})
	}
	return msgs
}

// HelpText summarizes the available commands.
const HelpText = `Commands:
  exit                                    save the chat and quit
  load history <file>                     load a saved chat
  save history <file>, sh <file>          save the chat to a file
  load current history full, lchf         use the whole chat as context
  load current history truncated, lcht    use the most recent messages as context
  load history full <file>, lhf <file>    load a chat and use all of it as context
  load history truncated <file>, lht <file>
                                          load a chat and use its most recent messages as context
  list history [pattern], lsh [pattern]   list saved chats
  help                                    show this help
Anything else is sent to the assistant.`
