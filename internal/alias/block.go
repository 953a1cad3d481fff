package alias

import (
	"errors"
	"fmt"
	"strings"

	"irbridge/internal/ircmd"
)

// ErrDefinitionFormat is returned by ParseDefinition for input with fewer
// than two non-blank lines.
var ErrDefinitionFormat = errors.New("invalid format")

// NameError reports an alias name outside the command name alphabet. Such a
// name could never be run from a preference line.
type NameError struct {
	Name string
}

func (e *NameError) Error() string { return fmt.Sprintf("%s: %s", e.Name, ircmd.MsgNameFormat) }

// Edit is one change from a preference block. A Delete edit removes Name;
// otherwise Name is (re)defined with Lines.
type Edit struct {
	Name   string
	Lines  []string
	Delete bool
}

// ParseBlock splits a preference message. The first line holds the command
// word and the aliases to run afterwards. Each following line is one of:
//
//	+name    open a new definition of name, replacing any previous one
//	-name    delete name and close the open definition
//	other    append to the open definition, ignored when none is open
//
// Blank lines are skipped and every line is trimmed. A +name or -name whose
// name fails ircmd.ValidName is returned in rejected instead of edits, and
// the lines following a rejected +name are dropped.
func ParseBlock(text string) (run []string, edits []Edit, rejected []string) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, nil, nil
	}

	if f := strings.Fields(lines[0]); len(f) > 1 {
		run = f[1:]
	}

	open := -1
	for _, l := range lines[1:] {
		switch l[0] {
		case '+':
			open = -1
			name := strings.TrimSpace(l[1:])
			switch {
			case name == "":
			case !ircmd.ValidName(name):
				rejected = append(rejected, name)
			default:
				edits = append(edits, Edit{Name: name, Lines: []string{}})
				open = len(edits) - 1
			}
		case '-':
			open = -1
			name := strings.TrimSpace(l[1:])
			switch {
			case name == "":
			case !ircmd.ValidName(name):
				rejected = append(rejected, name)
			default:
				edits = append(edits, Edit{Name: name, Delete: true})
			}
		default:
			if open >= 0 {
				edits[open].Lines = append(edits[open].Lines, l)
			}
		}
	}
	return run, edits, rejected
}

// ParseDefinition reads the two-step "add" input: the first non-blank line is
// the alias name, the rest are its commands. It fails with
// ErrDefinitionFormat for fewer than two non-blank lines and with *NameError
// for an invalid name.
func ParseDefinition(text string) (name string, lines []string, err error) {
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return "", nil, ErrDefinitionFormat
	}
	if !ircmd.ValidName(lines[0]) {
		return "", nil, &NameError{Name: lines[0]}
	}
	return lines[0], lines[1:], nil
}
