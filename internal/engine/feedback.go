package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/editloop/editloop/internal/instructions"
	"github.com/editloop/editloop/internal/prompt"
	"github.com/editloop/editloop/internal/transcript"
	"github.com/editloop/editloop/internal/workspace"
)

// RunFeedbackEdit drives the test-and-edit loop for one target file. Each
// cycle runs the test commands, folds their output into a fresh prompt on
// the session transcript, and applies whatever content the model returns.
// A reply without a code block means the model considers the file done.
//
// Exhausting the retry budget is an outcome, not an error: the returned
// error is reserved for infrastructure failures (I/O, model calls), which
// abort the session. notify, when non-nil, fires after every cycle.
func (e *Engine) RunFeedbackEdit(ctx context.Context, cmd *instructions.FeedbackEdit, file string, notify CycleFunc) (Outcome, error) {
	lg, err := e.logs.Command(cmd.ID)
	if err != nil {
		return Outcome{}, err
	}
	lg.Info("feedback-editing file", zap.String("file", file), zap.Int("max_retries", cmd.MaxRetries))

	if err := e.logs.PurgeFileArtifacts(cmd.ID, file); err != nil {
		return Outcome{}, err
	}
	if !e.ws.Exists(file) {
		lg.Error("target file missing", zap.String("file", file))
		return Outcome{}, fmt.Errorf("feedback-edit %s: %w", file, ErrMissingTarget)
	}

	tracker := workspace.NewTracker(e.ws)
	tr := transcript.New()

	var instruction string
	preedited := false

	for cycle := 1; cycle <= cmd.MaxRetries; cycle++ {
		testOutput, passed := e.tests.Run(ctx, lg, cmd.TestCommands, file)
		if passed {
			lg.Info("test commands succeeded", zap.String("file", file), zap.Int("cycle", cycle))
		}

		if !preedited {
			instruction, err = e.rewriteInstruction(ctx, cmd.Instruction, cmd.PromptModel)
			if err != nil {
				return Outcome{}, err
			}
			preedited = true
		}

		builtins, err := e.builtins(file, testOutput)
		if err != nil {
			return Outcome{}, err
		}
		targetContent, err := e.ws.ReadFile(file)
		if err != nil {
			return Outcome{}, fmt.Errorf("reading target file: %w", err)
		}
		snaps, err := tracker.Diff(cmd.Context, file)
		if err != nil {
			return Outcome{}, fmt.Errorf("gathering context: %w", err)
		}

		text := prompt.Assemble(prompt.Input{
			Instruction:   prompt.ResolveBuiltins(instruction, builtins),
			TestOutput:    testOutput,
			TargetName:    file,
			TargetContent: targetContent,
			HasTarget:     true,
			Cycle:         cycle,
			ContextBlocks: contextBlocks(snaps),
		})
		tr.AppendUser(text)
		if err := e.logs.WritePrompt(cmd.ID, file, cycle, text); err != nil {
			return Outcome{}, err
		}

		reply, hit, err := e.cache.GetOrCompute(tr, cmd.Model, func() (string, error) {
			return e.client.Complete(ctx, tr, cmd.Model)
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("model call: %w", err)
		}
		tr.AppendAssistant(reply)
		if err := e.logs.WriteOutput(cmd.ID, file, cycle, reply); err != nil {
			return Outcome{}, err
		}
		if notify != nil {
			notify(file, cycle, hit)
		}

		content, ok := Extract(file, reply)
		if !ok {
			lg.Info("feedback-editing completed", zap.String("file", file), zap.Int("cycles", cycle))
			return Outcome{Cycles: cycle, Done: true}, nil
		}
		if err := e.ws.WriteFile(file, content); err != nil {
			return Outcome{}, fmt.Errorf("writing target file: %w", err)
		}
		lg.Debug("wrote updated content",
			zap.String("file", file),
			zap.Int("cycle", cycle),
			zap.Bool("cache_hit", hit),
			zap.Int("bytes", len(content)))
	}

	lg.Error("feedback-editing failed", zap.String("file", file), zap.Int("max_retries", cmd.MaxRetries))
	return Outcome{Cycles: cmd.MaxRetries, Done: false}, nil
}
