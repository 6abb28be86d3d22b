// Package engine runs the per-file model sessions: single-shot create and
// edit calls, and the feedback-edit retry loop that alternates test runs
// with model edits until the model stops producing content or the retry
// budget runs out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/editloop/editloop/internal/cache"
	"github.com/editloop/editloop/internal/llm"
	"github.com/editloop/editloop/internal/logging"
	"github.com/editloop/editloop/internal/prompt"
	"github.com/editloop/editloop/internal/workspace"
)

var (
	// ErrNoContent reports a model reply with no extractable file content
	// in a session that needed some to write.
	ErrNoContent = errors.New("model reply contained no file content")

	// ErrMissingTarget reports a target file that does not exist in the
	// target directory at session start.
	ErrMissingTarget = errors.New("target file does not exist")
)

// Config carries the collaborators an Engine needs.
type Config struct {
	Workspace *workspace.Dir
	Macros    *prompt.Macros
	Cache     *cache.ResponseCache
	Client    llm.Client
	Logs      *logging.Factory

	// TestTimeout bounds each test command in feedback sessions; zero
	// means no limit.
	TestTimeout time.Duration
}

// Engine executes file sessions against one target directory. Methods are
// safe for concurrent use; the instruction pre-editor is the only point
// where sessions serialize.
type Engine struct {
	ws     *workspace.Dir
	macros *prompt.Macros
	cache  *cache.ResponseCache
	client llm.Client
	logs   *logging.Factory
	tests  *TestRunner
	pre    *PreEditor
}

func New(cfg Config) *Engine {
	return &Engine{
		ws:     cfg.Workspace,
		macros: cfg.Macros,
		cache:  cfg.Cache,
		client: cfg.Client,
		logs:   cfg.Logs,
		tests:  &TestRunner{Dir: cfg.Workspace.Path(), Timeout: cfg.TestTimeout},
		pre:    NewPreEditor(cfg.Cache, cfg.Client),
	}
}

// Outcome describes how a feedback-edit session ended. Done is true when
// the model signalled completion by replying without a code block; false
// means the retry budget ran out while the model was still producing
// content. Cycles is the number of cycles actually run.
type Outcome struct {
	Cycles int
	Done   bool
}

// CycleFunc is called after each completed feedback cycle, once the model
// reply for that cycle is in hand.
type CycleFunc func(file string, cycle int, cacheHit bool)

// rewriteInstruction expands shared prompts and pre-edits the result. The
// built-in placeholders survive both steps and resolve per cycle.
func (e *Engine) rewriteInstruction(ctx context.Context, instruction, promptModel string) (string, error) {
	return e.pre.Rewrite(ctx, e.macros.ResolveShared(instruction), promptModel)
}

// builtins assembles the per-cycle values for the reserved placeholders.
func (e *Engine) builtins(file, testOutput string) (prompt.Builtins, error) {
	filelist, err := e.ws.Filelist()
	if err != nil {
		return prompt.Builtins{}, fmt.Errorf("building file inventory: %w", err)
	}
	return prompt.Builtins{
		Filename:     file,
		FilenameBase: strings.TrimSuffix(file, filepath.Ext(file)),
		Filelist:     filelist,
		Output:       testOutput,
	}, nil
}

func contextBlocks(snaps []workspace.Snapshot) []prompt.ContextBlock {
	blocks := make([]prompt.ContextBlock, 0, len(snaps))
	for _, s := range snaps {
		blocks = append(blocks, prompt.ContextBlock{Name: s.Filename, Content: s.Content})
	}
	return blocks
}
