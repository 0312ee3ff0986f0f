// Package process supervises the gateway's long-lived loops and runs
// short-lived helper programs.
//
// Supervisor runs each Loop in its own goroutine. When a loop returns or
// panics it is restarted after a delay that doubles on repeated failures
// and drops back once the loop has stayed up for a while, so a dead serial
// device cannot cause a restart storm.
//
// ExecRunner runs one-shot commands (git pull, the external MQTT publish
// tool) with a timeout, killing the whole process group on expiry.
//
// Example usage:
//
//	sup := process.NewSupervisor(process.DefaultConfig())
//	sup.SetLogger(logger)
//	_ = sup.Add("serial", monitor.Run)
//	_ = sup.Add("mqtt", bridge.Run)
//
//	if err := sup.Run(ctx); err != nil {
//	    return err
//	}
package process
