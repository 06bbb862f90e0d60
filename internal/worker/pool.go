package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAlerts = "jobs:integrity_alerts"

	jobTypeAlert   = "integrity_alert"
	maxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// JobHandler processes one job payload. A returned error schedules a retry.
type JobHandler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// WorkerHandlers is wired in the composition root.
type WorkerHandlers struct {
	Alert JobHandler
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAlert pushes an operator alert e-mail job.
func (d *Dispatcher) EnqueueAlert(ctx context.Context, payload AlertJobPayload) error {
	return d.enqueue(ctx, QueueAlerts, jobTypeAlert, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.push(ctx, queue, Job{Type: jobType, Payload: data})
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP, idle without polling.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	d := NewDispatcher(rdb)
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, d, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s, then loops to check ctx
			result, err := d.rdb.BRPop(ctx, 5*time.Second, QueueAlerts).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, d, handlers, result[0], result[1])
		}
	}
}

// processJob runs the handler for one raw job; failures are re-queued until
// maxJobAttempts, then moved to the dead letter queue.
func processJob(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	var handler JobHandler
	switch job.Type {
	case jobTypeAlert:
		handler = handlers.Alert
	}
	if handler == nil {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type, dropping")
		return
	}

	err := handler.Process(ctx, job.Payload)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= maxJobAttempts {
		SendToDLQ(ctx, d.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, re-queued")
	if pushErr := d.push(ctx, queue, job); pushErr != nil {
		log.Error().Err(pushErr).Str("queue", queue).Msg("failed to re-queue job")
	}
}
