package worker

// dlq.go
// Alert jobs that keep failing land in dlq:{queue} so an operator can inspect
// them and push them back once the SMTP relay is healthy again.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

type DLQEntry struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
	Attempts int             `json:"attempts"`
}

// SendToDLQ parks a failed job. Errors are logged only.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		Queue:    queue,
		JobType:  jobType,
		Payload:  payload,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
		Attempts: attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push failed")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job parked")
}

// DLQLength reports how many jobs are parked for queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// ReplayDLQ moves up to max parked jobs back onto their queue with a fresh
// attempt counter and returns how many were moved.
func ReplayDLQ(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	d := NewDispatcher(rdb)
	moved := 0
	for moved < max {
		raw, err := rdb.RPop(ctx, DLQPrefix+queue).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, err
		}
		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: dropping unreadable entry")
			continue
		}
		if err := d.push(ctx, queue, Job{Type: entry.JobType, Payload: entry.Payload}); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
