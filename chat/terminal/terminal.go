package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/m4xw311/tgpt/chat"
	"github.com/m4xw311/tgpt/errors"
	"github.com/m4xw311/tgpt/llm"
)

const banner = `ChatGPT Terminal Interface. Type 'exit' to end the chat.
Type 'load history <filename>' to load a previous session.
Type 'save history <filename>' to save the current session to a specific file
Type 'help' to see all commands.`

const maxLineSize = 1024 * 1024

// Terminal handles the terminal/CLI interaction mode for a chat session
type Terminal struct {
	state  *chat.State
	in     io.Reader
	out    io.Writer
	render *renderer
}

// New creates a new Terminal reading from in and writing to out
func New(s *chat.State, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		state:  s,
		in:     in,
		out:    out,
		render: newRenderer(s.Config.Color, s.Config.RenderMarkdown),
	}
}

// Run starts the interactive terminal session. It returns when the user types
// exit, the input ends or ctx is cancelled; all of these return nil. An error
// is returned only when the session cannot continue, e.g. a session file that
// failed to parse. On every path the transcript is saved to the current
// filename before Run returns. A failed save is only a warning, unless Run is
// already returning an error, in which case both are returned.
func (t *Terminal) Run(ctx context.Context) (err error) {
	fmt.Fprintln(t.out, banner)

	defer func() {
		if perr := t.state.Persist(); perr != nil {
			fmt.Fprintln(t.out, t.render.alert(fmt.Sprintf("Warning: %v", perr)))
			if err != nil {
				err = errors.Join(err, perr)
			}
			return
		}
		fmt.Fprintln(t.out, "Chat history saved. Exiting...")
	}()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	readErr := make(chan error, 1)
	go readLines(t.in, lines, readErr, done)

	callbacks := t.callbacks()
	for {
		fmt.Fprint(t.out, t.render.prompt())

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				// EOF or read error ends the session
				fmt.Fprintln(t.out)
				if err := <-readErr; err != nil {
					return errors.Wrapf(err, "failed to read input")
				}
				return nil
			}
			line = l
		}

		exit, err := t.state.ProcessInput(ctx, line, callbacks)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(t.out)
				return nil
			}
			return err
		}
		if exit {
			return nil
		}
	}
}

// callbacks creates the terminal-specific output for session events
func (t *Terminal) callbacks() chat.Callbacks {
	return chat.Callbacks{
		OnReply: func(reply string) {
			fmt.Fprintln(t.out, t.render.reply(t.state.Config.AssistantName, reply))
		},
		OnNotice: func(message string) {
			fmt.Fprintln(t.out, t.render.notice(message))
		},
		OnError: func(err error) {
			fmt.Fprintln(t.out, t.render.alert(describe(err)))
		},
	}
}

func describe(err error) string {
	var apiErr *llm.APIError
	var persistErr *chat.PersistError
	var usageErr *chat.UsageError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Error %d: %s", apiErr.StatusCode, apiErr.Body)
	case errors.As(err, &persistErr):
		return fmt.Sprintf("Warning: %v", persistErr)
	case errors.As(err, &usageErr):
		return fmt.Sprintf("Usage: %s (%s)", usageErr.Usage, usageErr.Msg)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// readLines forwards input lines until EOF or until done is closed. The final
// scanner error, if any, is sent on errc before lines is closed.
func readLines(in io.Reader, lines chan<- string, errc chan<- error, done <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
	errc <- scanner.Err()
}
