// Package chat provides the core of a tgpt chat session.
//
// It holds the session State (the transcript, the file it is persisted to
// and the optional context window), classifies input lines into commands or
// chat messages, and runs a chat turn against an llm.Client. It does no I/O
// of its own besides reading and writing session files; how outcomes are
// shown is left to the caller through Callbacks.
//
// # Usage
//
//	state, err := chat.New(cfg, llmClient, logger)
//	if err != nil {
//	    // handle error
//	}
//
//	callbacks := chat.Callbacks{
//	    OnReply: func(reply string) {
//	        // Show the assistant reply
//	    },
//	    OnNotice: func(message string) {
//	        // Show command output
//	    },
//	    OnError: func(err error) {
//	        // Show a non-fatal failure; *llm.APIError for remote errors
//	    },
//	}
//
//	exit, err := state.ProcessInput(ctx, line, callbacks)
//
// # Commands
//
// Command words are matched case-insensitively and the longest phrase wins.
// The argument is the rest of the line.
//
//   - exit: leave the session (only when nothing follows it)
//   - load history <file>: replace the transcript with a saved one
//   - save history <file>, sh <file>: save the transcript and switch to that file
//   - load current history full, lchf: use the whole transcript as context
//   - load current history truncated, lcht: use the most recent turns as context
//   - load history full <file>, lhf <file>: load, then use all of it as context
//   - load history truncated <file>, lht <file>: load, then use its most recent turns
//   - list history [pattern], lsh [pattern]: list saved sessions
//   - help: show the command summary
//
// Everything else is a chat message. Commands never contact the model.
//
// # Context
//
// A context window is a snapshot taken when a window command runs and it
// does not grow afterwards. While a window is set, a chat request carries the
// system prompt, the window and the new message. Without one, the configured
// history mode decides between the whole transcript and the new message alone.
//
// # Subpackages
//
// chat/terminal: the interactive read-eval-print loop used by the tgpt binary.
package chat
