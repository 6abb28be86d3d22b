package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/editloop/editloop/internal/instructions"
	"github.com/stretchr/testify/assert"
)

func TestRunFailedError(t *testing.T) {
	err := &RunFailedError{Message: "run completed with 2 failed file(s)"}
	assert.Equal(t, "run completed with 2 failed file(s)", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		runFailed bool
	}{
		{
			name:      "RunFailedError",
			err:       &RunFailedError{Message: "run aborted"},
			runFailed: true,
		},
		{
			name:      "wrapped RunFailedError",
			err:       fmt.Errorf("outer: %w", &RunFailedError{Message: "run aborted"}),
			runFailed: true,
		},
		{
			name:      "ConfigurationError",
			err:       &instructions.ConfigurationError{Path: "work.toml", Err: errors.New("bad schema")},
			runFailed: false,
		},
		{
			name:      "plain error",
			err:       errors.New("something else"),
			runFailed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runErr *RunFailedError
			assert.Equal(t, tt.runFailed, errors.As(tt.err, &runErr))
		})
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "check", "cache", "init"} {
		assert.True(t, names[want], "root command should have %q subcommand", want)
	}
}
