// Package runner schedules commands: strictly sequential across commands,
// fanned out over a bounded worker pool within one, with per-kind failure
// policies deciding whether a broken file stops the run.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/editloop/editloop/internal/engine"
	"github.com/editloop/editloop/internal/instructions"
)

// DefaultWorkers bounds per-command file concurrency unless overridden.
const DefaultWorkers = 3

// Session runs one file under one command. *engine.Engine satisfies this.
type Session interface {
	RunCreate(ctx context.Context, cmd *instructions.Create, file string) error
	RunEdit(ctx context.Context, cmd *instructions.Edit, file string) error
	RunFeedbackEdit(ctx context.Context, cmd *instructions.FeedbackEdit, file string, notify engine.CycleFunc) (engine.Outcome, error)
}

// FailurePolicy decides what a file-session error does to the rest of the
// run.
type FailurePolicy int

const (
	// Isolate records the failure and lets sibling files and later
	// commands continue.
	Isolate FailurePolicy = iota
	// Abort cancels the command's remaining files and skips every
	// command after it.
	Abort
)

// Runner owns scheduling for one run.
type Runner struct {
	session  Session
	workers  int
	policies map[instructions.Kind]FailurePolicy

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the per-command worker bound. Values below one keep the
// default.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithFailurePolicy overrides the policy for one command kind. Defaults:
// create and edit isolate, feedback_edit aborts.
func WithFailurePolicy(kind instructions.Kind, p FailurePolicy) Option {
	return func(r *Runner) {
		r.policies[kind] = p
	}
}

func New(session Session, opts ...Option) *Runner {
	r := &Runner{
		session: session,
		workers: DefaultWorkers,
		policies: map[instructions.Kind]FailurePolicy{
			instructions.KindCreate:       Isolate,
			instructions.KindEdit:         Isolate,
			instructions.KindFeedbackEdit: Abort,
		},
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) policy(kind instructions.Kind) FailurePolicy {
	return r.policies[kind]
}

// Run executes the commands in order. The returned error is the one that
// aborted the run, if any; the Result always covers every command that
// actually executed, so callers can summarize partial runs.
func (r *Runner) Run(ctx context.Context, commands []instructions.Command) (*Result, error) {
	res := &Result{}
	r.notifyProgress(Event{Type: EventRunStarted})

	var abortErr error
	for _, cmd := range commands {
		meta := cmd.Common()
		r.notifyProgress(Event{Type: EventCommandStarted, Command: meta.ID, Kind: cmd.Kind()})

		cr := r.runCommand(ctx, cmd)
		res.Commands = append(res.Commands, cr)

		status := StatusSucceeded
		if cr.Failed() {
			status = StatusFailed
		}
		r.notifyProgress(Event{
			Type:    EventCommandCompleted,
			Command: meta.ID,
			Kind:    cmd.Kind(),
			Status:  status,
			Err:     cr.Err,
		})

		if cr.Err != nil {
			abortErr = cr.Err
			break
		}
	}

	status := StatusSucceeded
	if abortErr != nil || !res.Succeeded() {
		status = StatusFailed
	}
	r.notifyProgress(Event{Type: EventRunCompleted, Status: status, Err: abortErr})
	return res, abortErr
}

// runCommand fans the command's target files out over the worker pool and
// collects their results in target order.
func (r *Runner) runCommand(ctx context.Context, cmd instructions.Command) CommandResult {
	meta := cmd.Common()
	policy := r.policy(cmd.Kind())

	cmdCtx := ctx
	var cancel context.CancelFunc
	if policy == Abort {
		cmdCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	type indexed struct {
		index int
		fr    FileResult
	}
	resultChan := make(chan indexed, len(meta.TargetFiles))
	semaphore := make(chan struct{}, r.workers)

	var wg sync.WaitGroup
	var abortOnce sync.Once
	var abortErr error

	for i, file := range meta.TargetFiles {
		wg.Add(1)
		go func(idx int, file string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			r.notifyProgress(Event{Type: EventFileStarted, Command: meta.ID, Kind: cmd.Kind(), File: file})

			fr := r.runFile(cmdCtx, cmd, file)
			if fr.Err != nil && policy == Abort {
				abortOnce.Do(func() {
					abortErr = fmt.Errorf("command %q: file %s: %w", meta.ID, file, fr.Err)
					cancel()
				})
			}

			r.notifyProgress(Event{
				Type:    EventFileCompleted,
				Command: meta.ID,
				Kind:    cmd.Kind(),
				File:    file,
				Cycle:   fr.Cycles,
				Status:  fr.Status,
				Err:     fr.Err,
			})
			resultChan <- indexed{index: idx, fr: fr}
		}(i, file)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	files := make([]FileResult, len(meta.TargetFiles))
	for res := range resultChan {
		files[res.index] = res.fr
	}

	return CommandResult{ID: meta.ID, Kind: cmd.Kind(), Files: files, Err: abortErr}
}

func (r *Runner) runFile(ctx context.Context, cmd instructions.Command, file string) FileResult {
	switch c := cmd.(type) {
	case *instructions.Create:
		if err := r.session.RunCreate(ctx, c, file); err != nil {
			return FileResult{File: file, Status: StatusFailed, Err: err}
		}
		return FileResult{File: file, Status: StatusSucceeded}

	case *instructions.Edit:
		if err := r.session.RunEdit(ctx, c, file); err != nil {
			return FileResult{File: file, Status: StatusFailed, Err: err}
		}
		return FileResult{File: file, Status: StatusSucceeded}

	case *instructions.FeedbackEdit:
		outcome, err := r.session.RunFeedbackEdit(ctx, c, file, func(f string, cycle int, hit bool) {
			r.notifyProgress(Event{
				Type:     EventCycleCompleted,
				Command:  c.ID,
				Kind:     c.Kind(),
				File:     f,
				Cycle:    cycle,
				CacheHit: hit,
			})
		})
		if err != nil {
			return FileResult{File: file, Status: StatusFailed, Cycles: outcome.Cycles, Err: err}
		}
		// Exhausted retries are a reported failure, not an abort.
		status := StatusSucceeded
		if !outcome.Done {
			status = StatusFailed
		}
		return FileResult{File: file, Status: status, Cycles: outcome.Cycles}

	default:
		return FileResult{File: file, Status: StatusFailed, Err: fmt.Errorf("unsupported command kind %q", cmd.Kind())}
	}
}
