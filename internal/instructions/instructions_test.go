package instructions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInstructions(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validTOML = `
[defaults]
model = "gpt-4o-mini"
prompt_model = "gpt-4o-mini"

[target]
directory = "src"
source = ["seed/*.py"]

[shared_prompts]
style = "Follow PEP 8."

[[commands]]
id = "create_main"
type = "create"
target_files = ["main.py"]
instruction = "Create {{filename}} using {{style}}."
context = ["*.md"]

[[commands]]
id = "edit_main"
type = "edit"
target_files = ["main.py"]
instruction = "Tighten up {{filename}}."
model = "claude-3-5-sonnet-latest"

[[commands]]
id = "fix_main"
type = "feedback_edit"
target_files = ["main.py"]
instruction = "Make the tests pass."
context = ["*.py"]
test_commands = ["python -m pytest {{filename}}"]
max_retries = 5
`

func TestLoadValidTOML(t *testing.T) {
	path := writeInstructions(t, "instructions.toml", validTOML)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Path)
	assert.Equal(t, "src", f.Target.Directory)
	assert.Equal(t, []string{"seed/*.py"}, f.Target.Source)
	assert.Equal(t, map[string]string{"style": "Follow PEP 8."}, f.SharedPrompts)
	require.Len(t, f.Commands, 3)

	create, ok := f.Commands[0].(*Create)
	require.True(t, ok)
	assert.Equal(t, KindCreate, create.Kind())
	assert.Equal(t, "create_main", create.ID)
	assert.Equal(t, []string{"main.py"}, create.TargetFiles)
	assert.Equal(t, "gpt-4o-mini", create.Model)
	assert.Equal(t, "gpt-4o-mini", create.PromptModel)

	edit, ok := f.Commands[1].(*Edit)
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-sonnet-latest", edit.Model)
	assert.Equal(t, "gpt-4o-mini", edit.PromptModel)

	fb, ok := f.Commands[2].(*FeedbackEdit)
	require.True(t, ok)
	assert.Equal(t, []string{"python -m pytest {{filename}}"}, fb.TestCommands)
	assert.Equal(t, 5, fb.MaxRetries)
	assert.Equal(t, []string{"*.py"}, fb.Context)
}

func TestLoadValidYAML(t *testing.T) {
	path := writeInstructions(t, "instructions.yaml", `
commands:
  - id: gen
    type: create
    target_files: [README.md]
    instruction: Write the readme.
    context: ["*.py"]
`)

	f, err := Load(path)
	require.NoError(t, err)

	// Unset knobs fall back to their built-in defaults.
	assert.Equal(t, DefaultTargetDirectory, f.Target.Directory)
	require.Len(t, f.Commands, 1)
	assert.Equal(t, "gpt-4o", f.Commands[0].Common().Model)
	assert.Equal(t, "gpt-4o", f.Commands[0].Common().PromptModel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeInstructions(t, "instructions.json", `{}`)

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "unsupported instruction file extension")
}

func TestLoadSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "missing instruction",
			content: `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
`,
			wantMsg: "instruction",
		},
		{
			name: "unknown command type",
			content: `
[[commands]]
id = "a"
type = "rewrite"
target_files = ["x.py"]
instruction = "do it"
`,
			wantMsg: "schema validation failed",
		},
		{
			name: "unknown key",
			content: `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
retries = 2
`,
			wantMsg: "schema validation failed",
		},
		{
			name: "zero max_retries",
			content: `
[[commands]]
id = "a"
type = "feedback_edit"
target_files = ["x.py"]
instruction = "do it"
test_commands = ["true"]
max_retries = 0
`,
			wantMsg: "schema validation failed",
		},
		{
			name:    "no commands",
			content: `[defaults]` + "\n" + `model = "gpt-4o"`,
			wantMsg: "schema validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("instructions.toml", []byte(tt.content))

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadSemanticViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "duplicate command id",
			content: `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "one"

[[commands]]
id = "a"
type = "edit"
target_files = ["y.py"]
instruction = "two"
`,
			wantMsg: `duplicate command id "a"`,
		},
		{
			name: "shared prompt shadows builtin",
			content: `
[shared_prompts]
filename = "boom"

[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
`,
			wantMsg: "collides with a built-in macro",
		},
		{
			name: "create without context",
			content: `
[[commands]]
id = "a"
type = "create"
target_files = ["x.py"]
instruction = "do it"
`,
			wantMsg: "require at least one context pattern",
		},
		{
			name: "edit with test_commands",
			content: `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
test_commands = ["true"]
`,
			wantMsg: "only valid for feedback_edit",
		},
		{
			name: "create with max_retries",
			content: `
[[commands]]
id = "a"
type = "create"
target_files = ["x.py"]
instruction = "do it"
context = ["*.md"]
max_retries = 3
`,
			wantMsg: "only valid for feedback_edit",
		},
		{
			name: "feedback_edit without test_commands",
			content: `
[[commands]]
id = "a"
type = "feedback_edit"
target_files = ["x.py"]
instruction = "do it"
max_retries = 3
`,
			wantMsg: "require test_commands",
		},
		{
			name: "feedback_edit without max_retries",
			content: `
[[commands]]
id = "a"
type = "feedback_edit"
target_files = ["x.py"]
instruction = "do it"
test_commands = ["true"]
`,
			wantMsg: "require max_retries",
		},
		{
			name: "unsupported command model",
			content: `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
model = "gpt-99"
`,
			wantMsg: `unsupported model "gpt-99"`,
		},
		{
			name: "unsupported default prompt model",
			content: `
[defaults]
prompt_model = "nope"

[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
`,
			wantMsg: "defaults.prompt_model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("instructions.toml", []byte(tt.content))

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCopilotModelsAccepted(t *testing.T) {
	path := writeInstructions(t, "instructions.toml", `
[[commands]]
id = "a"
type = "edit"
target_files = ["x.py"]
instruction = "do it"
model = "copilot/gpt-5"
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "copilot/gpt-5", f.Commands[0].Common().Model)
}

func TestFileCommandLookup(t *testing.T) {
	path := writeInstructions(t, "instructions.toml", validTOML)

	f, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, f.Command("edit_main"))
	assert.Equal(t, KindEdit, f.Command("edit_main").Kind())
	assert.Nil(t, f.Command("missing"))
}
