package buttons

import (
	"context"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/process"
)

// Refresher updates the access list's backing store before a cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// GitRefresher fast-forwards a git checkout holding the access list.
type GitRefresher struct {
	Runner  process.Runner
	Binary  string
	Dir     string
	Timeout time.Duration
}

// Refresh runs "git -C <dir> pull --ff-only --quiet".
func (g GitRefresher) Refresh(ctx context.Context) error {
	runner := g.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}

	_, err := runner.Run(ctx, process.Command{
		Name:    "git pull",
		Binary:  binary,
		Args:    []string{"-C", g.Dir, "pull", "--ff-only", "--quiet"},
		Timeout: g.Timeout,
	})
	return err
}
