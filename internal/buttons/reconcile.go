package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

// Device is the controller as seen by the reconciler.
type Device interface {
	Send(ctx context.Context, cmd []byte) error
	Subscribe() (<-chan doorduino.Event, func())
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result describes one reconciliation cycle.
type Result struct {
	CycleID            string
	DeviceCount        int
	AuthoritativeCount int
	Added              []ID
	Removed            []ID

	// Skipped counts authoritative entries that could not be sent to the
	// controller because the id or secret is not a plain token.
	Skipped  int
	Duration time.Duration
}

// Reconciler brings the controller's button list in line with the
// authoritative list.
//
// A cycle reads the device's list, checks both lists are plausibly
// complete, and then sends only the differences. Thresholds guard against
// acting on a truncated read: an empty reply from a half-booted controller
// must never turn into removing every key.
type Reconciler struct {
	minAuthoritative int
	minDevice        int
	collectWindow    time.Duration

	device Device
	logger Logger
}

// NewReconciler creates a reconciler using the thresholds from cfg.
func NewReconciler(cfg config.ButtonsConfig, device Device) *Reconciler {
	return &Reconciler{
		minAuthoritative: cfg.MinAuthoritative,
		minDevice:        cfg.MinDevice,
		collectWindow:    cfg.CollectWindow,
		device:           device,
		logger:           noopLogger{},
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// Sync runs one cycle against list.
//
// Steps:
//  1. Abort if list is smaller than the authoritative threshold
//  2. Send list_buttons and collect replies for the collection window
//  3. Abort if the device reported fewer buttons than the device threshold
//  4. Remove buttons not on list, then add buttons missing from the device
//
// Replies arriving after the window closes are ignored.
//
// Returns:
//   - Result: what was collected and changed, filled as far as the cycle got
//   - error: ErrSyncAborted for a tripped threshold, or the Send/ctx error
func (r *Reconciler) Sync(ctx context.Context, list AccessList) (Result, error) {
	start := time.Now()
	res := Result{
		CycleID:            uuid.NewString(),
		AuthoritativeCount: len(list),
	}
	log := r.logger

	if len(list) < r.minAuthoritative {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("%w: authoritative list has %d entries, minimum is %d",
			ErrSyncAborted, len(list), r.minAuthoritative)
	}

	onDevice, err := Collect(ctx, r.device, r.collectWindow)
	res.DeviceCount = len(onDevice)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	if len(onDevice) < r.minDevice {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("%w: device reported %d buttons, minimum is %d",
			ErrSyncAborted, len(onDevice), r.minDevice)
	}

	authoritative := list.IDs()
	toRemove := onDevice.Minus(authoritative)

	var toAdd []ID
	for _, id := range authoritative.Minus(onDevice) {
		if !ValidToken(string(id)) || !ValidToken(list[id]) {
			res.Skipped++
			log.Warn("skipping access list entry with invalid id or secret",
				"cycle", res.CycleID, "button", string(id))
			continue
		}
		toAdd = append(toAdd, id)
	}

	for _, id := range toRemove {
		if err := r.device.Send(ctx, doorduino.EncodeRemoveButton(string(id))); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("removing button %s: %w", id, err)
		}
		res.Removed = append(res.Removed, id)
		log.Info("button removed", "cycle", res.CycleID, "button", string(id))
	}

	for _, id := range toAdd {
		if err := r.device.Send(ctx, doorduino.EncodeAddButton(string(id), list[id])); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("adding button %s: %w", id, err)
		}
		res.Added = append(res.Added, id)
		log.Info("button added", "cycle", res.CycleID, "button", string(id))
	}

	res.Duration = time.Since(start)
	return res, nil
}
