package cli

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/alhambra-checker/internal/domain/check"
)

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"config", check.Wrap(check.KindConfig, "init", errors.New("TARGET_DATES is required")), 2},
		{"solver timeout", check.Wrap(check.KindSolverTimeout, "solve", errors.New("deadline")), 3},
		{"solver auth", check.Wrap(check.KindSolverAuth, "solve_submit", errors.New("bad key")), 3},
		{"solver rejected", check.Wrap(check.KindSolverRejected, "solve", errors.New("unsolvable")), 3},
		{"runtime", check.Wrap(check.KindNavigation, "open_entry", errors.New("dns")), 1},
		{"wrapped config", fmt.Errorf("run: %w", check.Wrap(check.KindConfig, "init", errors.New("bad date"))), 2},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, exitCode(tt.err))
		})
	}
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRoot()
	for _, name := range []string{"dry-run", "verbose", "test-telegram", "no-headless"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.True(t, cmd.SilenceUsage)
}

func TestFormatDates(t *testing.T) {
	dates := []time.Time{
		time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, []string{"2026-02-17", "2026-02-20"}, formatDates(dates))
	assert.Empty(t, formatDates(nil))
}
