package eventchannel

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
)

// LogDeadLetter records abandoned events in the log so an operator can
// replay them.
type LogDeadLetter struct {
	logger zerolog.Logger
}

// NewLogDeadLetter creates a new LogDeadLetter.
func NewLogDeadLetter(logger zerolog.Logger) *LogDeadLetter {
	return &LogDeadLetter{logger: logger}
}

// Put logs the event with its payload.
func (d *LogDeadLetter) Put(ctx context.Context, event domain.Event, cause error) {
	payload, err := json.Marshal(event)
	if err != nil {
		payload = []byte(`{}`)
	}

	d.logger.Error().Err(cause).
		Str("event_id", event.EventID()).
		Str("event_type", event.EventType()).
		Str("partition_key", event.PartitionKey()).
		RawJSON("payload", payload).
		Msg("EVENT DEAD-LETTERED")
}
