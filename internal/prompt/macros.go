// Package prompt resolves instruction macros and assembles the full prompt
// text sent to the model each cycle.
package prompt

import (
	"regexp"
	"strings"
)

// Built-in macro names. These are reserved: shared prompts may not redefine
// them, and they resolve from per-session state after the shared-prompt
// phase.
const (
	MacroFilename     = "filename"
	MacroFilenameBase = "filename_base"
	MacroFilelist     = "filelist"
	MacroOutput       = "output"
)

// ReservedMacros lists the built-in macro names.
func ReservedMacros() []string {
	return []string{MacroFilename, MacroFilenameBase, MacroFilelist, MacroOutput}
}

// IsReservedMacro reports whether name is a built-in macro name.
func IsReservedMacro(name string) bool {
	switch name {
	case MacroFilename, MacroFilenameBase, MacroFilelist, MacroOutput:
		return true
	}
	return false
}

var macroToken = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Macros substitutes {{name}} tokens. Shared prompts resolve first; built-in
// placeholders resolve afterwards so they pass through the shared phase
// untouched.
type Macros struct {
	shared map[string]string
}

func NewMacros(shared map[string]string) *Macros {
	return &Macros{shared: shared}
}

// ResolveShared trims the text and substitutes every {{name}} token that
// names a shared prompt. Tokens that match nothing are left as-is (they may
// be built-ins, resolved later). Substituted values are not re-scanned.
func (m *Macros) ResolveShared(text string) string {
	return macroToken.ReplaceAllStringFunc(strings.TrimSpace(text), func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := m.shared[name]; ok {
			return v
		}
		return tok
	})
}

// Builtins carries the session-specific values for the reserved macros.
type Builtins struct {
	Filename     string
	FilenameBase string
	Filelist     string
	Output       string
}

// ResolveBuiltins substitutes the reserved macros in a fixed order, with
// {{output}} last so tokens inside captured test output are never themselves
// re-substituted. Values are trimmed before insertion.
func ResolveBuiltins(text string, b Builtins) string {
	text = strings.ReplaceAll(text, token(MacroFilename), strings.TrimSpace(b.Filename))
	text = strings.ReplaceAll(text, token(MacroFilenameBase), strings.TrimSpace(b.FilenameBase))
	text = strings.ReplaceAll(text, token(MacroFilelist), strings.TrimSpace(b.Filelist))
	text = strings.ReplaceAll(text, token(MacroOutput), strings.TrimSpace(b.Output))
	return text
}

func token(name string) string {
	return "{{" + name + "}}"
}
