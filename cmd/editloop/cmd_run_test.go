package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/editloop/editloop/internal/instructions"
	"github.com/editloop/editloop/internal/llm"
	"github.com/editloop/editloop/internal/session"
	"github.com/editloop/editloop/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient hands out canned replies in call order.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (c *scriptedClient) Complete(_ context.Context, _ *transcript.Transcript, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func installClient(t *testing.T, client llm.Client) {
	t.Helper()
	orig := newModelClient
	t.Cleanup(func() { newModelClient = orig })
	newModelClient = func() (llm.Client, func() error) {
		return client, func() error { return nil }
	}
}

func fenced(body string) string {
	return "```python\n" + body + "\n```"
}

func runRunCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRunCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const runFixture = `
[target]
directory = "out"

[[commands]]
id = "gen"
type = "create"
target_files = ["main.py"]
instruction = "Write a module that prints a greeting."
context = ["*.md"]

[[commands]]
id = "fix"
type = "feedback_edit"
target_files = ["main.py"]
instruction = "Ensure the file is not empty."
test_commands = ["test -s {{filename}}"]
max_retries = 2
`

// Call order for runFixture with one file per command: gen pre-edit, gen
// completion, fix pre-edit, fix cycle-1 completion. A fix reply without a
// fenced block ends the feedback loop as success.
func scriptedHappyPath() *scriptedClient {
	return &scriptedClient{replies: []string{
		"Write a greeting module.",
		fenced("print('hello')"),
		"Ensure the file is not empty.",
		"The file already satisfies the requirement.",
	}}
}

func TestRunCommand_EndToEnd(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("work.toml", []byte(runFixture), 0o644))

	client := scriptedHappyPath()
	installClient(t, client)

	out, err := runRunCommand(t, "work.toml", "--max-workers", "2")
	require.NoError(t, err)
	assert.Equal(t, 4, client.callCount())

	// Extracted content landed in the target directory.
	data, readErr := os.ReadFile(filepath.Join("out", "main.py"))
	require.NoError(t, readErr)
	assert.Equal(t, "print('hello')", string(data))

	assert.Contains(t, out, "Instructions: work.toml")
	assert.Contains(t, out, "Commands:     2 of 2")
	assert.Contains(t, out, "Command 'gen' (create):")
	assert.Contains(t, out, "  main.py: done\n")
	assert.Contains(t, out, "Command 'gen': OK")
	assert.Contains(t, out, "  main.py: cycle 1\n")
	assert.Contains(t, out, "  main.py: done in 1 cycle(s)")
	assert.Contains(t, out, "Command 'fix': OK")
	assert.Contains(t, out, "RUN SUMMARY")
	assert.Contains(t, out, "2 command(s), 2 file(s), 0 failed")

	// Per-command logs and prompt/output artifacts.
	assert.FileExists(t, filepath.Join(".editloop", "work", "logs", "gen.log"))
	assert.FileExists(t, filepath.Join(".editloop", "work", "logs", "gen.main.py.llm-prompt.txt"))
	assert.FileExists(t, filepath.Join(".editloop", "work", "logs", "fix.main.py.1.llm-output.txt"))

	// The run record covers the whole lifecycle.
	events, logErr := session.ReadLog(filepath.Join(".editloop", "work", "logs", session.LogName))
	require.NoError(t, logErr)
	require.NotEmpty(t, events)
	assert.Equal(t, "run_started", events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, "run_completed", last.Type)
	assert.Equal(t, "succeeded", last.Status)
}

func TestRunCommand_SecondRunReplaysFromCache(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("work.toml", []byte(runFixture), 0o644))

	installClient(t, scriptedHappyPath())
	_, err := runRunCommand(t, "work.toml")
	require.NoError(t, err)

	// No replies left: any model call would fail the second run.
	replay := &scriptedClient{}
	installClient(t, replay)

	out, err := runRunCommand(t, "work.toml")
	require.NoError(t, err)
	assert.Equal(t, 0, replay.callCount())
	assert.Contains(t, out, "  main.py: cycle 1 [cached]")
}

func TestRunCommand_NoCacheFlagCallsModel(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("work.toml", []byte(runFixture), 0o644))

	installClient(t, scriptedHappyPath())
	_, err := runRunCommand(t, "work.toml")
	require.NoError(t, err)

	fresh := scriptedHappyPath()
	installClient(t, fresh)

	out, err := runRunCommand(t, "work.toml", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.callCount())
	assert.NotContains(t, out, "[cached]")
}

func TestRunCommand_SelectorLimitsCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("work.toml", []byte(runFixture), 0o644))

	client := &scriptedClient{replies: []string{
		"Write a greeting module.",
		fenced("print('hello')"),
	}}
	installClient(t, client)

	out, err := runRunCommand(t, "work.toml", "gen")
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
	assert.Contains(t, out, "Commands:     1 of 2")
	assert.NotContains(t, out, "Command 'fix'")
}

func TestRunCommand_ExhaustedRetriesFailRun(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.MkdirAll("seed", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("seed", "main.py"), []byte("pass\n"), 0o644))
	require.NoError(t, os.WriteFile("work.toml", []byte(`
[target]
directory = "out"
source = ["seed/*.py"]

[[commands]]
id = "fix"
type = "feedback_edit"
target_files = ["main.py"]
instruction = "Make the checks pass."
test_commands = ["false"]
max_retries = 2
`), 0o644))

	installClient(t, &scriptedClient{replies: []string{
		"Make the checks pass.",
		fenced("attempt one"),
		fenced("attempt two"),
	}})

	out, err := runRunCommand(t, "work.toml")
	require.Error(t, err)

	var runErr *RunFailedError
	require.True(t, errors.As(err, &runErr))
	assert.ErrorContains(t, err, "1 failed file(s)")

	assert.Contains(t, out, "  main.py: still failing after 2 cycle(s)")
	assert.Contains(t, out, "Command 'fix': ERROR")
	assert.Contains(t, out, "Failed files:")

	// The last extracted attempt stays on disk for inspection.
	data, readErr := os.ReadFile(filepath.Join("out", "main.py"))
	require.NoError(t, readErr)
	assert.Equal(t, "attempt two", string(data))
}

func TestRunCommand_ModelErrorAbortsRun(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.MkdirAll("seed", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("seed", "main.py"), []byte("pass\n"), 0o644))
	require.NoError(t, os.WriteFile("work.toml", []byte(`
[target]
directory = "out"
source = ["seed/*.py"]

[[commands]]
id = "fix"
type = "feedback_edit"
target_files = ["main.py"]
instruction = "Make the checks pass."
test_commands = ["true"]
max_retries = 3
`), 0o644))

	// An empty script makes the first model call fail.
	installClient(t, &scriptedClient{})

	out, err := runRunCommand(t, "work.toml")
	require.Error(t, err)

	var runErr *RunFailedError
	require.True(t, errors.As(err, &runErr))
	assert.ErrorContains(t, err, "run aborted")
	assert.Contains(t, out, "Command 'fix': ERROR")
}

func TestRunCommand_MissingInstructionFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := runRunCommand(t, "absent.toml")
	require.Error(t, err)

	var confErr *instructions.ConfigurationError
	assert.True(t, errors.As(err, &confErr))
}

func TestRunCommand_UnknownSelector(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("work.toml", []byte(runFixture), 0o644))

	_, err := runRunCommand(t, "work.toml", "nonexistent")
	require.Error(t, err)

	var selErr *instructions.SelectionError
	assert.True(t, errors.As(err, &selErr))

	// Selection fails before the target directory is touched.
	assert.NoDirExists(t, "out")
}
