package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecRunner_Success(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), Command{
		Name:   "echo",
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo already up to date"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(string(out)) != "already up to date" {
		t.Errorf("output = %q", out)
	}
}

func TestExecRunner_Dir(t *testing.T) {
	dir := t.TempDir()
	out, err := ExecRunner{}.Run(context.Background(), Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "pwd"},
		Dir:    dir,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(string(out), dir) {
		t.Errorf("pwd = %q, want %q", out, dir)
	}
}

func TestExecRunner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantMsg string
	}{
		{
			name:    "non-zero exit",
			cmd:     Command{Name: "git pull", Binary: "/bin/sh", Args: []string{"-c", "echo merge conflict >&2; exit 1"}},
			wantMsg: "merge conflict",
		},
		{
			name:    "missing binary",
			cmd:     Command{Binary: "/nonexistent/mqtt-simple"},
			wantMsg: "/nonexistent/mqtt-simple",
		},
		{
			name:    "timeout",
			cmd:     Command{Name: "sleeper", Binary: "/bin/sh", Args: []string{"-c", "sleep 10"}, Timeout: 50 * time.Millisecond},
			wantMsg: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			_, err := ExecRunner{}.Run(context.Background(), tt.cmd)
			if !errors.Is(err, ErrCommandFailed) {
				t.Fatalf("Run() error = %v, want ErrCommandFailed", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if time.Since(start) > 5*time.Second {
				t.Error("command was not killed promptly")
			}
		})
	}
}
