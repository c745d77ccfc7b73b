package events

import (
	"encoding/hex"
	"log/slog"

	"BlindTally/internal/logger"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink logging under the "events" component.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.Component("events")}
}

// Emit logs ev at info level with its payload as attributes.
func (s *LogSink) Emit(ev Event) {
	s.log.Info(string(ev.Kind()), attrs(ev)...)
}

// attrs flattens an event payload into slog key-value pairs.
func attrs(ev Event) []any {
	switch e := ev.(type) {
	case OwnershipTransferred:
		return []any{"previous", e.Previous.Hex(), "current", e.Current.Hex()}
	case ProviderAdded:
		return []any{"provider", e.Provider.Hex()}
	case ProviderRemoved:
		return []any{"provider", e.Provider.Hex()}
	case CooldownSet:
		return []any{"previous", e.Previous, "current", e.Current}
	case ContractPaused:
		return []any{"by", e.By.Hex()}
	case ContractUnpaused:
		return []any{"by", e.By.Hex()}
	case BatchOpened:
		return []any{"batch", e.BatchID}
	case BatchClosed:
		return []any{"batch", e.BatchID}
	case DataSubmitted:
		return []any{"provider", e.Provider.Hex(), "batch", e.BatchID, "id", e.ContributionID}
	case DecryptionRequested:
		return []any{"request", e.RequestID, "batch", e.BatchID, "commitment", hex.EncodeToString(e.Commitment[:8])}
	case DecryptionCompleted:
		return []any{
			"request", e.RequestID,
			"batch", e.BatchID,
			"average", e.Average,
			"anyFlag", e.AnyFlagSet,
			"thresholdExceeded", e.ThresholdExceeded,
		}
	default:
		return nil
	}
}
