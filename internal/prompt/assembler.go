package prompt

import (
	"fmt"
	"strings"
)

// Rule is the fixed-width delimiter line separating prompt sections.
var Rule = strings.Repeat("-", 80)

// ContextBlock is one reference-file section of the prompt.
type ContextBlock struct {
	Name    string
	Content string
}

// Input carries everything Assemble needs for one cycle's prompt.
type Input struct {
	// Instruction is the fully macro-resolved instruction text.
	Instruction string
	// TestOutput is the combined test-command output; empty means no
	// Output section (create/edit, or a feedback command with no tests).
	TestOutput string
	// TargetName and TargetContent describe the file being edited.
	// HasTarget is false for create commands, whose target does not
	// exist yet.
	TargetName    string
	TargetContent string
	HasTarget     bool
	// Cycle is the 1-based retry cycle; 0 labels blocks without a cycle.
	Cycle int
	// ContextBlocks are the deduplicated reference sections, in order.
	ContextBlocks []ContextBlock
}

// Assemble composes the prompt in its fixed section order: instruction,
// test output, target file, context blocks. Sections are joined with
// newlines; file sections are fenced by rule lines and a label.
func Assemble(in Input) string {
	parts := []string{in.Instruction}

	if in.TestOutput != "" {
		parts = append(parts, Rule, "Output:", Rule, in.TestOutput)
	}
	if in.HasTarget {
		parts = append(parts, Rule, blockLabel(in.TargetName, in.Cycle), Rule, in.TargetContent)
	}
	for _, b := range in.ContextBlocks {
		parts = append(parts, Rule, blockLabel(b.Name, in.Cycle), Rule, b.Content)
	}

	return strings.Join(parts, "\n")
}

func blockLabel(name string, cycle int) string {
	if cycle > 0 {
		return fmt.Sprintf("File: %s (cycle %d)", name, cycle)
	}
	return "File: " + name
}
