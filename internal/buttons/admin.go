package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
)

// Collect asks the controller for its button list and gathers replies
// until window closes. A "button list start" line discards what was
// gathered before it, so only the latest listing counts.
func Collect(ctx context.Context, device Device, window time.Duration) (Set, error) {
	events, unsubscribe := device.Subscribe()
	defer unsubscribe()

	if err := device.Send(ctx, doorduino.EncodeListButtons()); err != nil {
		return nil, fmt.Errorf("requesting button list: %w", err)
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	seen := make(Set)
	for {
		select {
		case <-ctx.Done():
			return seen, ctx.Err()
		case <-timer.C:
			return seen, nil
		case ev := <-events:
			switch ev.Kind {
			case doorduino.EventButtonListStart:
				seen = make(Set)
			case doorduino.EventButtonAnnounced:
				seen.Add(Normalize(ev.ButtonID))
			}
		}
	}
}

// Add stores one button on the controller. The id is normalized; id and
// secret must both be single tokens.
func Add(ctx context.Context, device Device, id ID, secret string) error {
	id = Normalize(string(id))
	if !ValidToken(string(id)) || !ValidToken(secret) {
		return fmt.Errorf("%w: id and secret must be non-empty and contain no spaces", ErrInvalidRecord)
	}
	if err := device.Send(ctx, doorduino.EncodeAddButton(string(id), secret)); err != nil {
		return fmt.Errorf("adding button %s: %w", id, err)
	}
	return nil
}

// Remove deletes one button from the controller.
func Remove(ctx context.Context, device Device, id ID) error {
	id = Normalize(string(id))
	if !ValidToken(string(id)) {
		return fmt.Errorf("%w: id must be non-empty and contain no spaces", ErrInvalidRecord)
	}
	if err := device.Send(ctx, doorduino.EncodeRemoveButton(string(id))); err != nil {
		return fmt.Errorf("removing button %s: %w", id, err)
	}
	return nil
}
