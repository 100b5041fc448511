package session

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/m4xw311/tgpt/errors"
)

const (
	userLabel      = "User"
	assistantLabel = "Assistant"

	timestampSep = "] "
	roleSep      = ": "
)

// Content is escaped so a turn stays on one line. Only the sequences \\, \n
// and \r are decoded; any other backslash is kept as written.
var (
	contentEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	contentUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

// ParseError reports a session file line that is missing one of the
// "] " or ": " delimiters.
type ParseError struct {
	File string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	name := e.File
	if name == "" {
		name = "session"
	}
	return fmt.Sprintf("%s:%d: malformed session line %q", name, e.Line, e.Text)
}

// FormatTurn renders a turn as a single session file line, without the
// trailing newline.
func FormatTurn(turn Turn) string {
	label := assistantLabel
	if turn.Role == RoleUser {
		label = userLabel
	}
	return "[" + turn.Timestamp + timestampSep + label + roleSep + contentEscaper.Replace(turn.Content)
}

// ParseTurn is the inverse of FormatTurn. Any role label other than "User"
// is read as an assistant turn.
func ParseTurn(line string) (Turn, bool) {
	stamp, rest, ok := strings.Cut(line, timestampSep)
	if !ok {
		return Turn{}, false
	}
	label, content, ok := strings.Cut(rest, roleSep)
	if !ok {
		// Editors strip the trailing space of "User: " on empty messages.
		if label, ok = strings.CutSuffix(rest, ":"); !ok {
			return Turn{}, false
		}
	}

	role := RoleAssistant
	if label == userLabel {
		role = RoleUser
	}
	return Turn{
		Timestamp: strings.TrimPrefix(stamp, "["),
		Role:      role,
		Content:   contentUnescaper.Replace(content),
	}, true
}

// Write serializes the transcript, one newline-terminated line per turn.
func Write(w io.Writer, t Transcript) error {
	bw := bufio.NewWriter(w)
	for _, turn := range t {
		if _, err := bw.WriteString(FormatTurn(turn) + "\n"); err != nil {
			return errors.Wrapf(err, "failed to write turn")
		}
	}
	return errors.Wrapf(bw.Flush(), "failed to flush transcript")
}

// Read parses a transcript. name is only used in error messages.
func Read(r io.Reader, name string) (Transcript, error) {
	t := Transcript{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		turn, ok := ParseTurn(line)
		if !ok {
			return nil, &ParseError{File: name, Line: lineNo, Text: line}
		}
		t = append(t, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return t, nil
}
