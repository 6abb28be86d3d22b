package runner

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/editloop/editloop/internal/engine"
	"github.com/editloop/editloop/internal/instructions"
)

func createCmd(id string, files ...string) *instructions.Create {
	return &instructions.Create{Meta: instructions.Meta{
		ID:          id,
		TargetFiles: files,
		Instruction: "write it",
		Context:     []string{"*.txt"},
		Model:       "gpt-4o",
		PromptModel: "gpt-4o",
	}}
}

func editCmd(id string, files ...string) *instructions.Edit {
	return &instructions.Edit{Meta: instructions.Meta{
		ID:          id,
		TargetFiles: files,
		Instruction: "edit it",
		Model:       "gpt-4o",
		PromptModel: "gpt-4o",
	}}
}

func feedbackCmd(id string, files ...string) *instructions.FeedbackEdit {
	return &instructions.FeedbackEdit{
		Meta: instructions.Meta{
			ID:          id,
			TargetFiles: files,
			Instruction: "fix it",
			Model:       "gpt-4o",
			PromptModel: "gpt-4o",
		},
		TestCommands: []string{"true"},
		MaxRetries:   3,
	}
}

// stubSession fakes the engine: nil hooks succeed immediately.
type stubSession struct {
	mu    sync.Mutex
	calls []string

	create   func(ctx context.Context, cmd *instructions.Create, file string) error
	edit     func(ctx context.Context, cmd *instructions.Edit, file string) error
	feedback func(ctx context.Context, cmd *instructions.FeedbackEdit, file string, notify engine.CycleFunc) (engine.Outcome, error)
}

func (s *stubSession) record(id, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id+"/"+file)
}

func (s *stubSession) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *stubSession) RunCreate(ctx context.Context, cmd *instructions.Create, file string) error {
	s.record(cmd.ID, file)
	if s.create != nil {
		return s.create(ctx, cmd, file)
	}
	return nil
}

func (s *stubSession) RunEdit(ctx context.Context, cmd *instructions.Edit, file string) error {
	s.record(cmd.ID, file)
	if s.edit != nil {
		return s.edit(ctx, cmd, file)
	}
	return nil
}

func (s *stubSession) RunFeedbackEdit(ctx context.Context, cmd *instructions.FeedbackEdit, file string, notify engine.CycleFunc) (engine.Outcome, error) {
	s.record(cmd.ID, file)
	if s.feedback != nil {
		return s.feedback(ctx, cmd, file, notify)
	}
	return engine.Outcome{Cycles: 1, Done: true}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) byType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestRunnerCommandsRunSequentially(t *testing.T) {
	s := &stubSession{}
	r := New(s, WithWorkers(4))

	res, err := r.Run(context.Background(), []instructions.Command{
		createCmd("first", "a1.py", "a2.py", "a3.py"),
		editCmd("second", "b1.py"),
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	calls := s.snapshot()
	require.Len(t, calls, 4)
	// Every first-command file finishes before the second command starts.
	assert.ElementsMatch(t, []string{"first/a1.py", "first/a2.py", "first/a3.py"}, calls[:3])
	assert.Equal(t, "second/b1.py", calls[3])
}

func TestRunnerBoundsFileConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	s := &stubSession{create: func(context.Context, *instructions.Create, string) error {
		entered <- struct{}{}
		<-release
		return nil
	}}
	r := New(s, WithWorkers(2))

	done := make(chan *Result, 1)
	go func() {
		res, _ := r.Run(context.Background(), []instructions.Command{
			createCmd("gen", "1.py", "2.py", "3.py", "4.py", "5.py"),
		})
		done <- res
	}()

	<-entered
	<-entered
	select {
	case <-entered:
		t.Fatal("third session started past the worker bound")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	res := <-done
	assert.True(t, res.Succeeded())
	require.Len(t, res.Commands, 1)
	assert.Len(t, res.Commands[0].Files, 5)
}

func TestRunnerIsolatesCreateFailures(t *testing.T) {
	boom := errors.New("boom")
	s := &stubSession{create: func(_ context.Context, _ *instructions.Create, file string) error {
		if file == "bad.py" {
			return boom
		}
		return nil
	}}
	r := New(s)

	res, err := r.Run(context.Background(), []instructions.Command{
		createCmd("gen", "ok.py", "bad.py"),
		createCmd("next", "n.py"),
	})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())

	require.Len(t, res.Commands, 2)
	gen := res.Commands[0]
	require.NoError(t, gen.Err)
	assert.Equal(t, StatusSucceeded, gen.Files[0].Status)
	assert.Equal(t, StatusFailed, gen.Files[1].Status)
	assert.ErrorIs(t, gen.Files[1].Err, boom)

	assert.Equal(t, StatusSucceeded, res.Commands[1].Files[0].Status)
}

func TestRunnerFeedbackExhaustionContinuesRun(t *testing.T) {
	s := &stubSession{feedback: func(context.Context, *instructions.FeedbackEdit, string, engine.CycleFunc) (engine.Outcome, error) {
		return engine.Outcome{Cycles: 3, Done: false}, nil
	}}
	r := New(s)

	res, err := r.Run(context.Background(), []instructions.Command{
		feedbackCmd("fix", "main.py"),
		createCmd("after", "a.py"),
	})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())

	require.Len(t, res.Commands, 2)
	fr := res.Commands[0].Files[0]
	assert.Equal(t, StatusFailed, fr.Status)
	assert.NoError(t, fr.Err)
	assert.Equal(t, 3, fr.Cycles)
	assert.Contains(t, s.snapshot(), "after/a.py")
}

func TestRunnerFeedbackErrorAbortsRun(t *testing.T) {
	boom := errors.New("disk on fire")
	s := &stubSession{feedback: func(context.Context, *instructions.FeedbackEdit, string, engine.CycleFunc) (engine.Outcome, error) {
		return engine.Outcome{}, boom
	}}
	r := New(s)

	res, err := r.Run(context.Background(), []instructions.Command{
		feedbackCmd("fix", "main.py"),
		createCmd("after", "a.py"),
	})
	require.ErrorIs(t, err, boom)

	require.Len(t, res.Commands, 1)
	assert.NotNil(t, res.Commands[0].Err)
	assert.NotContains(t, s.snapshot(), "after/a.py")
}

func TestRunnerAbortCancelsSiblingFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	s := &stubSession{feedback: func(ctx context.Context, _ *instructions.FeedbackEdit, file string, _ engine.CycleFunc) (engine.Outcome, error) {
		if file == "bad.py" {
			return engine.Outcome{}, boom
		}
		<-ctx.Done()
		return engine.Outcome{}, ctx.Err()
	}}
	r := New(s, WithWorkers(2))

	res, err := r.Run(context.Background(), []instructions.Command{
		feedbackCmd("fix", "bad.py", "slow.py"),
	})
	require.ErrorIs(t, err, boom)

	files := res.Commands[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, StatusFailed, files[0].Status)
	assert.ErrorIs(t, files[0].Err, boom)
	assert.Equal(t, StatusFailed, files[1].Status)
	assert.ErrorIs(t, files[1].Err, context.Canceled)
}

func TestRunnerFailurePolicyOverride(t *testing.T) {
	boom := errors.New("boom")

	t.Run("feedback isolated", func(t *testing.T) {
		s := &stubSession{feedback: func(context.Context, *instructions.FeedbackEdit, string, engine.CycleFunc) (engine.Outcome, error) {
			return engine.Outcome{}, boom
		}}
		r := New(s, WithFailurePolicy(instructions.KindFeedbackEdit, Isolate))

		res, err := r.Run(context.Background(), []instructions.Command{
			feedbackCmd("fix", "main.py"),
			createCmd("after", "a.py"),
		})
		require.NoError(t, err)
		require.Len(t, res.Commands, 2)
		assert.NoError(t, res.Commands[0].Err)
		assert.ErrorIs(t, res.Commands[0].Files[0].Err, boom)
	})

	t.Run("create aborts", func(t *testing.T) {
		s := &stubSession{create: func(context.Context, *instructions.Create, string) error {
			return boom
		}}
		r := New(s, WithFailurePolicy(instructions.KindCreate, Abort))

		res, err := r.Run(context.Background(), []instructions.Command{
			createCmd("gen", "a.py"),
			createCmd("after", "b.py"),
		})
		require.ErrorIs(t, err, boom)
		require.Len(t, res.Commands, 1)
	})
}

func TestRunnerEventSequence(t *testing.T) {
	s := &stubSession{}
	r := New(s)
	log := &eventLog{}
	r.AddProgressListener(log.listen)

	_, err := r.Run(context.Background(), []instructions.Command{createCmd("gen", "a.py")})
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventRunStarted,
		EventCommandStarted,
		EventFileStarted,
		EventFileCompleted,
		EventCommandCompleted,
		EventRunCompleted,
	}, log.types())

	completed := log.byType(EventRunCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, StatusSucceeded, completed[0].Status)
}

func TestRunnerCycleEventsCarryCacheHits(t *testing.T) {
	s := &stubSession{feedback: func(_ context.Context, _ *instructions.FeedbackEdit, file string, notify engine.CycleFunc) (engine.Outcome, error) {
		notify(file, 1, false)
		notify(file, 2, true)
		return engine.Outcome{Cycles: 2, Done: true}, nil
	}}
	r := New(s)
	log := &eventLog{}
	r.AddProgressListener(log.listen)

	_, err := r.Run(context.Background(), []instructions.Command{feedbackCmd("fix", "main.py")})
	require.NoError(t, err)

	cycles := log.byType(EventCycleCompleted)
	require.Len(t, cycles, 2)
	assert.Equal(t, 1, cycles[0].Cycle)
	assert.False(t, cycles[0].CacheHit)
	assert.Equal(t, 2, cycles[1].Cycle)
	assert.True(t, cycles[1].CacheHit)
	assert.Equal(t, "main.py", cycles[1].File)
}

func TestRunnerRunCompletedFiresOnAbort(t *testing.T) {
	s := &stubSession{feedback: func(context.Context, *instructions.FeedbackEdit, string, engine.CycleFunc) (engine.Outcome, error) {
		return engine.Outcome{}, errors.New("boom")
	}}
	r := New(s)
	log := &eventLog{}
	r.AddProgressListener(log.listen)

	_, err := r.Run(context.Background(), []instructions.Command{feedbackCmd("fix", "main.py")})
	require.Error(t, err)

	types := log.types()
	require.NotEmpty(t, types)
	assert.Equal(t, EventRunCompleted, types[len(types)-1])

	completed := log.byType(EventRunCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, StatusFailed, completed[0].Status)
	assert.Error(t, completed[0].Err)
}

func TestResultSucceeded(t *testing.T) {
	ok := Result{Commands: []CommandResult{
		{ID: "a", Files: []FileResult{{File: "x", Status: StatusSucceeded}}},
	}}
	assert.True(t, ok.Succeeded())

	fileFailed := Result{Commands: []CommandResult{
		{ID: "a", Files: []FileResult{{File: "x", Status: StatusFailed}}},
	}}
	assert.False(t, fileFailed.Succeeded())

	aborted := Result{Commands: []CommandResult{
		{ID: "a", Err: errors.New("boom")},
	}}
	assert.False(t, aborted.Succeeded())
}
