package gateway

import (
	"context"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/process"
)

// Publisher delivers one outbound message to the broker.
//
// Two implementations exist: Bridge, which uses its persistent session,
// and CommandPublisher, which runs an external tool per message.
type Publisher interface {
	Publish(ctx context.Context, topic, value string, retained bool) error
}

// Ensure both delivery paths implement Publisher.
var (
	_ Publisher = (*Bridge)(nil)
	_ Publisher = (*CommandPublisher)(nil)
)

// CommandPublisher publishes by running a one-shot command line client:
//
//	<binary> -h <server> [-r] -p <topic> -m <value>
type CommandPublisher struct {
	Runner  process.Runner
	Binary  string
	Server  string
	Timeout time.Duration
}

// Publish runs the command once. -r is passed for retained messages.
func (c *CommandPublisher) Publish(ctx context.Context, topic, value string, retained bool) error {
	args := []string{"-h", c.Server}
	if retained {
		args = append(args, "-r")
	}
	args = append(args, "-p", topic, "-m", value)

	runner := c.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}

	_, err := runner.Run(ctx, process.Command{
		Name:    "mqtt publish",
		Binary:  c.Binary,
		Args:    args,
		Timeout: c.Timeout,
	})
	return err
}
