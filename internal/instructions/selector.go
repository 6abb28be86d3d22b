package instructions

import (
	"fmt"
	"strings"
)

// Select resolves command-line selector tokens against the command list.
// No tokens selects every command, in file order.
//
// Four token forms are supported:
//   - an exact command id;
//   - "start-end": every command from start through end, in file order;
//   - "id*": the command with that id and every command after it;
//   - "*": every command.
//
// The two wildcard forms stop token processing once applied. Selecting the
// same command twice collapses to its first occurrence, so the result holds
// each command at most once, ordered by first selection.
func Select(tokens []string, commands []Command) ([]Command, error) {
	index := make(map[string]int, len(commands))
	for i, cmd := range commands {
		id := cmd.Common().ID
		if _, dup := index[id]; dup {
			return nil, &SelectionError{Token: id, Reason: "duplicate command id in the instruction file"}
		}
		index[id] = i
	}

	if len(tokens) == 0 {
		return append([]Command(nil), commands...), nil
	}

	var selected []Command
	chosen := make(map[string]bool, len(commands))
	take := func(cmd Command) {
		if id := cmd.Common().ID; !chosen[id] {
			chosen[id] = true
			selected = append(selected, cmd)
		}
	}

	for _, token := range tokens {
		token = strings.TrimSpace(token)
		switch {
		case strings.Contains(token, "-") && !strings.HasPrefix(token, "-") && !strings.HasSuffix(token, "-"):
			// A range splits on the first dash; ids containing dashes must
			// be selected by another token form.
			start, end, _ := strings.Cut(token, "-")
			start = strings.TrimSpace(start)
			end = strings.TrimSpace(end)

			si, startOK := index[start]
			ei, endOK := index[end]
			switch {
			case !startOK && !endOK:
				return nil, &SelectionError{Token: token, Reason: fmt.Sprintf("neither %q nor %q is a command id", start, end)}
			case !startOK:
				return nil, &SelectionError{Token: token, Reason: fmt.Sprintf("range start %q does not exist", start)}
			case !endOK:
				return nil, &SelectionError{Token: token, Reason: fmt.Sprintf("range end %q does not exist", end)}
			case si > ei:
				return nil, &SelectionError{Token: token, Reason: fmt.Sprintf("start %q comes after end %q", start, end)}
			}
			for _, cmd := range commands[si : ei+1] {
				take(cmd)
			}

		case token == "*":
			for _, cmd := range commands {
				take(cmd)
			}
			return selected, nil

		case strings.HasSuffix(token, "*") && len(token) > 1:
			start := strings.TrimSpace(strings.TrimSuffix(token, "*"))
			si, ok := index[start]
			if !ok {
				return nil, &SelectionError{Token: token, Reason: fmt.Sprintf("start id %q does not exist", start)}
			}
			for _, cmd := range commands[si:] {
				take(cmd)
			}
			return selected, nil

		default:
			i, ok := index[token]
			if !ok {
				return nil, &SelectionError{Token: token, Reason: "no such command id"}
			}
			take(commands[i])
		}
	}
	return selected, nil
}
