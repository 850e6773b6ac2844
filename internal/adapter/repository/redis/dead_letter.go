// Package redis keeps abandoned domain events in Redis so they survive a
// restart and can be replayed once the fault is fixed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const (
	defaultMaxLen  = 10000
	defaultSeenTTL = 24 * time.Hour
)

// DeadLetterRecord is one abandoned event.
type DeadLetterRecord struct {
	FailedAt     time.Time       `json:"failed_at"`
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	PartitionKey string          `json:"partition_key"`
	Cause        string          `json:"cause"`
	Payload      json.RawMessage `json:"payload"`
}

// Event decodes the stored payload.
func (r *DeadLetterRecord) Event() (domain.Event, error) {
	return domain.DecodeEvent(r.EventType, r.Payload)
}

// DeadLetterStore implements eventchannel.DeadLetter on a Redis list.
// Newest records are at the head. An event ID is stored at most once
// per seen TTL, so redelivered failures do not pile up.
type DeadLetterStore struct {
	client  redis.UniversalClient
	logger  zerolog.Logger
	key     string
	prefix  string
	maxLen  int64
	seenTTL time.Duration
	now     func() time.Time
}

// NewDeadLetterStore creates a new DeadLetterStore.
func NewDeadLetterStore(client redis.UniversalClient, logger zerolog.Logger) *DeadLetterStore {
	return &DeadLetterStore{
		client:  client,
		logger:  logger,
		key:     "deadletter:events",
		prefix:  "deadletter:seen:",
		maxLen:  defaultMaxLen,
		seenTTL: defaultSeenTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Put stores the event. A failed write is logged.
func (s *DeadLetterStore) Put(ctx context.Context, event domain.Event, cause error) {
	if err := s.put(context.WithoutCancel(ctx), event, cause); err != nil {
		s.logger.Error().Err(err).
			AnErr("cause", cause).
			Str("event_id", event.EventID()).
			Str("event_type", event.EventType()).
			Msg("failed to store dead-lettered event")
	}
}

func (s *DeadLetterStore) put(ctx context.Context, event domain.Event, cause error) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := DeadLetterRecord{
		FailedAt:     s.now(),
		EventID:      event.EventID(),
		EventType:    event.EventType(),
		PartitionKey: event.PartitionKey(),
		Payload:      payload,
	}
	if cause != nil {
		record.Cause = cause.Error()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	seen := s.prefix + record.EventID
	fresh, err := s.client.SetNX(ctx, seen, record.FailedAt.Format(time.RFC3339Nano), s.seenTTL).Result()
	if err != nil {
		return err
	}
	if !fresh {
		s.logger.Debug().Str("event_id", record.EventID).Msg("event already dead-lettered")
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		// The record was not stored, so the event must stay eligible.
		if derr := s.client.Del(ctx, seen).Err(); derr != nil {
			return errors.Join(err, fmt.Errorf("clear seen marker: %w", derr))
		}
		return err
	}

	s.logger.Warn().
		Str("event_id", record.EventID).
		Str("event_type", record.EventType).
		Str("cause", record.Cause).
		Msg("event dead-lettered")

	return nil
}

// List returns up to limit records, newest first.
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]*DeadLetterRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*DeadLetterRecord, 0, len(raw))
	for _, item := range raw {
		var r DeadLetterRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode dead letter record: %w", err)
		}
		records = append(records, &r)
	}
	return records, nil
}

// Len returns the number of stored records.
func (s *DeadLetterStore) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}

// Remove deletes every stored copy of record and forgets that its event
// was seen. It reports whether anything was removed.
func (s *DeadLetterStore) Remove(ctx context.Context, record *DeadLetterRecord) (bool, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return false, err
	}

	var removed int64
	for _, item := range raw {
		var r DeadLetterRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil || r.EventID != record.EventID {
			continue
		}
		n, err := s.client.LRem(ctx, s.key, 1, item).Result()
		if err != nil {
			return false, err
		}
		removed += n
	}

	if err := s.client.Del(ctx, s.prefix+record.EventID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return removed > 0, err
	}
	return removed > 0, nil
}

// Replay publishes the newest limit records in the order they failed and removes each one
// that every subscriber accepted. Records that fail again stay stored.
func (s *DeadLetterStore) Replay(ctx context.Context, publisher usecase.EventPublisher, limit int) (replayed, failed int, err error) {
	records, err := s.List(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]

		event, err := record.Event()
		if err != nil {
			s.logger.Error().Err(err).Str("event_id", record.EventID).Msg("cannot decode dead-lettered event")
			failed++
			continue
		}

		if err := publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("event_id", record.EventID).Msg("replay failed")
			failed++
			continue
		}

		if _, err := s.Remove(ctx, record); err != nil {
			return replayed, failed, err
		}
		replayed++
	}

	return replayed, failed, nil
}
