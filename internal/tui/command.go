package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
// Single-letter aliases expand to their full names.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	return cmd
}

var aliases = map[string]string{
	"u": "upload",
	"d": "delete",
	"s": "search",
	"h": "history",
	"q": "quit",
	"r": "refresh",
}

// Position parses the 1-based queue position in Args into an index.
func (c Command) Position() (int, error) {
	n, err := strconv.Atoi(c.Args)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: expected a queue position, got %q", c.Name, c.Args)
	}
	return n - 1, nil
}
