package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see engine events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}

	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.DeviceAddress != "" {
		attrs = append(attrs, slog.String("address", event.DeviceAddress))
	}
	if event.ModelID != "" {
		attrs = append(attrs, slog.String("model_id", event.ModelID))
	}

	switch {
	case event.Advertisement != nil:
		attrs = append(attrs,
			slog.Int("rssi", int(event.Advertisement.RSSI)),
			slog.String("confidence", event.Advertisement.Confidence),
		)
		if event.Advertisement.Name != "" {
			attrs = append(attrs, slog.String("name", event.Advertisement.Name))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Command != nil:
		attrs = append(attrs,
			slog.Uint64("opcode", uint64(event.Command.Opcode)),
			slog.Bool("accepted", event.Command.Accepted),
		)
		if event.Command.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Command.Detail))
		}
	case event.Battery != nil:
		attrs = append(attrs, slog.Uint64("battery", uint64(event.Battery.Percentage)))
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Step != "" {
			attrs = append(attrs, slog.String("step", event.Error.Step))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
