package chat

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Kind identifies what an input line asks for.
type Kind int

const (
	KindChat Kind = iota
	KindExit
	KindHelp
	KindLoad
	KindLoadFull
	KindLoadTruncated
	KindSave
	KindWindowFull
	KindWindowTruncated
	KindList
)

var kindNames = map[Kind]string{
	KindChat:            "chat",
	KindExit:            "exit",
	KindHelp:            "help",
	KindLoad:            "load history",
	KindLoadFull:        "load history full",
	KindLoadTruncated:   "load history truncated",
	KindSave:            "save history",
	KindWindowFull:      "load current history full",
	KindWindowTruncated: "load current history truncated",
	KindList:            "list history",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a classified input line. For KindChat, Arg is the message.
type Command struct {
	Kind Kind
	Arg  string
}

type arity int

const (
	// argExact commands only match when nothing follows them; otherwise the
	// line is an ordinary chat message.
	argExact arity = iota
	// argNone commands reject trailing text.
	argNone
	argRequired
	argOptional
)

type phrase struct {
	words []string
	kind  Kind
	arity arity
	usage string
}

var grammar = []phrase{
	{words: []string{"exit"}, kind: KindExit, arity: argExact},
	{words: []string{"help"}, kind: KindHelp, arity: argExact},

	{words: []string{"load", "history"}, kind: KindLoad, arity: argRequired, usage: "load history <file>"},
	{words: []string{"save", "history"}, kind: KindSave, arity: argRequired, usage: "save history <file>"},
	{words: []string{"sh"}, kind: KindSave, arity: argRequired, usage: "sh <file>"},

	{words: []string{"load", "current", "history", "full"}, kind: KindWindowFull, arity: argNone, usage: "load current history full"},
	{words: []string{"lchf"}, kind: KindWindowFull, arity: argNone, usage: "lchf"},
	{words: []string{"load", "current", "history", "truncated"}, kind: KindWindowTruncated, arity: argNone, usage: "load current history truncated"},
	{words: []string{"lcht"}, kind: KindWindowTruncated, arity: argNone, usage: "lcht"},

	{words: []string{"load", "history", "full"}, kind: KindLoadFull, arity: argRequired, usage: "load history full <file>"},
	{words: []string{"lhf"}, kind: KindLoadFull, arity: argRequired, usage: "lhf <file>"},
	{words: []string{"load", "history", "truncated"}, kind: KindLoadTruncated, arity: argRequired, usage: "load history truncated <file>"},
	{words: []string{"lht"}, kind: KindLoadTruncated, arity: argRequired, usage: "lht <file>"},

	{words: []string{"list", "history"}, kind: KindList, arity: argOptional, usage: "list history [pattern]"},
	{words: []string{"lsh"}, kind: KindList, arity: argOptional, usage: "lsh [pattern]"},
}

func init() {
	// Longest phrase first so "load history full x" never matches "load history".
	sort.SliceStable(grammar, func(i, j int) bool {
		return len(grammar[i].words) > len(grammar[j].words)
	})
}

// UsageError reports a recognized command with a missing or unexpected
// argument.
type UsageError struct {
	Usage string
	Msg   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s (usage: %s)", e.Msg, e.Usage)
}

// ParseCommand classifies a line. Command words are matched case-insensitively;
// the argument is the rest of the line with its case and inner spacing kept.
// Anything that is not a command is returned as KindChat.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	for _, p := range grammar {
		if !hasPrefixFold(fields, p.words) {
			continue
		}
		arg := cutWords(line, len(p.words))

		switch p.arity {
		case argExact:
			if arg != "" {
				continue
			}
		case argNone:
			if arg != "" {
				return Command{}, &UsageError{Usage: p.usage, Msg: fmt.Sprintf("unexpected text after command: %q", arg)}
			}
		case argRequired:
			if arg == "" {
				return Command{}, &UsageError{Usage: p.usage, Msg: "missing filename"}
			}
		}
		return Command{Kind: p.kind, Arg: arg}, nil
	}
	return Command{Kind: KindChat, Arg: line}, nil
}

func hasPrefixFold(fields, words []string) bool {
	if len(fields) < len(words) {
		return false
	}
	for i, w := range words {
		if !strings.EqualFold(fields[i], w) {
			return false
		}
	}
	return true
}

// cutWords drops the first n whitespace-separated words of s and returns the
// trimmed remainder.
func cutWords(s string, n int) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(s, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
	}
	return strings.TrimSpace(s)
}
