// Package wizard collects the answers for a starter instruction file
// through an interactive form and renders them as TOML.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/editloop/editloop/internal/llm"
)

// Spec holds all fields collected during the interactive wizard.
type Spec struct {
	ID           string
	Kind         string
	TargetFiles  []string
	Instruction  string
	Context      []string
	TestCommands []string
	MaxRetries   int
	Model        string
	TargetDir    string
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateID enforces the id charset for generated files. Hyphens are
// excluded because selectors parse them as ranges.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("command id is required")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("command id must use letters, digits or underscores")
	}
	return nil
}

func validKind(kind string) error {
	switch kind {
	case "create", "edit", "feedback_edit":
		return nil
	}
	return fmt.Errorf("command type must be create, edit or feedback_edit")
}

// Run walks the user through one starter command and returns the collected
// answers. Defaults: model gpt-4o, target directory "output", max retries 3.
func Run(in io.Reader, out io.Writer) (*Spec, error) {
	var (
		id           string
		kind         string
		targetFiles  string
		instruction  string
		contextGlobs string
		testCommands string
		maxRetries   string
		model        string
		targetDir    string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Command id").
				Description("Identifies the command in selectors and log files").
				Placeholder("generate").
				Value(&id).
				Validate(func(s string) error {
					return ValidateID(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Command type").
				Description("One of: create, edit, feedback_edit").
				Placeholder("create").
				Value(&kind).
				Validate(func(s string) error {
					return validKind(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Target files").
				Description("Comma-separated files the command writes").
				Placeholder("main.py, util.py").
				Value(&targetFiles).
				Validate(func(s string) error {
					if len(splitAndTrim(s)) == 0 {
						return fmt.Errorf("at least one target file is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Instruction").
				Description("What should the model do with each target file?").
				Placeholder("Write a module that ...").
				Value(&instruction).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("instruction is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Context patterns").
				Description("Comma-separated globs of files to show the model (required for create)").
				Placeholder("*.md, *.py").
				Value(&contextGlobs).
				Validate(func(s string) error {
					if strings.TrimSpace(kind) == "create" && len(splitAndTrim(s)) == 0 {
						return fmt.Errorf("create commands need at least one context pattern")
					}
					return nil
				}),
			huh.NewInput().
				Title("Test commands").
				Description("Comma-separated shell commands (feedback_edit only), {{filename}} is substituted").
				Placeholder("python -m py_compile {{filename}}").
				Value(&testCommands).
				Validate(func(s string) error {
					if strings.TrimSpace(kind) == "feedback_edit" && len(splitAndTrim(s)) == 0 {
						return fmt.Errorf("feedback_edit commands need at least one test command")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max retries").
				Description("Feedback-edit cycle budget (blank keeps 3)").
				Placeholder("3").
				Value(&maxRetries).
				Validate(validateRetries),
			huh.NewInput().
				Title("Model").
				Description("Blank keeps gpt-4o; copilot models as copilot/<model>").
				Placeholder("gpt-4o").
				Value(&model).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" || llm.Supported(s) {
						return nil
					}
					return fmt.Errorf("unsupported model %q", s)
				}),
			huh.NewInput().
				Title("Target directory").
				Description("Where generated files land (blank keeps \"output\")").
				Placeholder("output").
				Value(&targetDir),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	retries := 3
	if s := strings.TrimSpace(maxRetries); s != "" {
		retries, _ = strconv.Atoi(s) //nolint:errcheck
	}
	if model = strings.TrimSpace(model); model == "" {
		model = "gpt-4o"
	}
	if targetDir = strings.TrimSpace(targetDir); targetDir == "" {
		targetDir = "output"
	}

	return &Spec{
		ID:           strings.TrimSpace(id),
		Kind:         strings.TrimSpace(kind),
		TargetFiles:  splitAndTrim(targetFiles),
		Instruction:  strings.TrimSpace(instruction),
		Context:      splitAndTrim(contextGlobs),
		TestCommands: splitAndTrim(testCommands),
		MaxRetries:   retries,
		Model:        model,
		TargetDir:    targetDir,
	}, nil
}

func validateRetries(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("max retries must be a positive number")
	}
	return nil
}

const instructionsTemplate = `[defaults]
model = {{ q .Model }}

[target]
directory = {{ q .TargetDir }}

[[commands]]
id = {{ q .ID }}
type = {{ q .Kind }}
target_files = {{ qlist .TargetFiles }}
instruction = {{ q .Instruction }}
{{- if .Context }}
context = {{ qlist .Context }}
{{- end }}
{{- if eq .Kind "feedback_edit" }}
test_commands = {{ qlist .TestCommands }}
max_retries = {{ .MaxRetries }}
{{- end }}
`

// GenerateInstructionsTOML renders a starter instruction file from the
// collected answers.
func GenerateInstructionsTOML(spec *Spec) (string, error) {
	tmpl, err := template.New("instructions").Funcs(template.FuncMap{
		"q":     strconv.Quote,
		"qlist": quoteList,
	}).Parse(instructionsTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing instructions template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("rendering instructions template: %w", err)
	}
	return buf.String(), nil
}

func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, strconv.Quote(item))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
