// Package terminal implements the interactive command-line mode of tgpt.
//
// It prints a banner, prompts with "You: ", hands every line to the chat
// session and prints replies, notices and errors. Replies can optionally be
// rendered as markdown and labels coloured.
//
// # Usage
//
//	state, err := chat.New(cfg, llmClient, logger)
//	if err != nil {
//	    // handle error
//	}
//
//	term := terminal.New(state, os.Stdin, os.Stdout)
//	err = term.Run(ctx)
//
// # Exiting
//
// Run returns on "exit", at the end of input and when ctx is cancelled, for
// example by an interrupt signal. Input is read on a separate goroutine so a
// cancellation is noticed even while waiting for a line. On every path the
// transcript is written to the session's current file before Run returns.
package terminal
