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

// RunCreate generates a new file from scratch: one prompt, one model call,
// one write. A reply without extractable content fails the file.
func (e *Engine) RunCreate(ctx context.Context, cmd *instructions.Create, file string) error {
	lg, err := e.logs.Command(cmd.ID)
	if err != nil {
		return err
	}
	lg.Info("creating file", zap.String("file", file))

	if err := e.runSingleShot(ctx, lg, cmd.Meta, file, false); err != nil {
		lg.Error("create failed", zap.String("file", file), zap.Error(err))
		return err
	}
	lg.Info("file created", zap.String("file", file))
	return nil
}

// RunEdit rewrites an existing file in a single model call. The target
// must already exist; its current content becomes part of the prompt.
func (e *Engine) RunEdit(ctx context.Context, cmd *instructions.Edit, file string) error {
	lg, err := e.logs.Command(cmd.ID)
	if err != nil {
		return err
	}
	lg.Info("editing file", zap.String("file", file))

	if !e.ws.Exists(file) {
		lg.Error("target file missing", zap.String("file", file))
		return fmt.Errorf("edit %s: %w", file, ErrMissingTarget)
	}
	if err := e.runSingleShot(ctx, lg, cmd.Meta, file, true); err != nil {
		lg.Error("edit failed", zap.String("file", file), zap.Error(err))
		return err
	}
	lg.Info("file edited", zap.String("file", file))
	return nil
}

// runSingleShot is the shared create/edit session body: pre-edit the
// instruction, assemble the one prompt (artifact cycle 0), call the model
// through the cache, extract, write.
func (e *Engine) runSingleShot(ctx context.Context, lg *zap.Logger, meta instructions.Meta, file string, withTarget bool) error {
	instruction, err := e.rewriteInstruction(ctx, meta.Instruction, meta.PromptModel)
	if err != nil {
		return err
	}

	var targetContent string
	if withTarget {
		targetContent, err = e.ws.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading target file: %w", err)
		}
	}

	builtins, err := e.builtins(file, "")
	if err != nil {
		return err
	}
	snaps, err := workspace.NewTracker(e.ws).Diff(meta.Context, file)
	if err != nil {
		return fmt.Errorf("gathering context: %w", err)
	}

	text := prompt.Assemble(prompt.Input{
		Instruction:   prompt.ResolveBuiltins(instruction, builtins),
		TargetName:    file,
		TargetContent: targetContent,
		HasTarget:     withTarget,
		ContextBlocks: contextBlocks(snaps),
	})
	if err := e.logs.WritePrompt(meta.ID, file, 0, text); err != nil {
		return err
	}

	tr := transcript.New()
	tr.AppendUser(text)
	reply, hit, err := e.cache.GetOrCompute(tr, meta.Model, func() (string, error) {
		return e.client.Complete(ctx, tr, meta.Model)
	})
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}
	if err := e.logs.WriteOutput(meta.ID, file, 0, reply); err != nil {
		return err
	}
	lg.Debug("model reply received", zap.String("file", file), zap.Bool("cache_hit", hit))

	content, ok := Extract(file, reply)
	if !ok {
		return fmt.Errorf("file %s: %w", file, ErrNoContent)
	}
	if err := e.ws.WriteFile(file, content); err != nil {
		return fmt.Errorf("writing target file: %w", err)
	}
	return nil
}
