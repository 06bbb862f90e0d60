package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	err   error
	calls int
}

func (h *countingHandler) Process(context.Context, json.RawMessage) error {
	h.calls++
	return h.err
}

func encodeJob(t *testing.T, job Job) string {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return string(b)
}

func alertJob(t *testing.T, attempts int) Job {
	t.Helper()
	payload, err := json.Marshal(AlertJobPayload{To: "ops@example.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	return Job{Type: jobTypeAlert, Payload: payload, Attempts: attempts}
}

func TestDispatcher_EnqueueAlert(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	d := NewDispatcher(rdb)

	want := alertJob(t, 0)
	mock.ExpectLPush(QueueAlerts, []byte(encodeJob(t, want))).SetVal(1)

	require.NoError(t, d.EnqueueAlert(context.Background(), AlertJobPayload{To: "ops@example.com", Subject: "s", Body: "b"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessJob_Success(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	h := &countingHandler{}

	processJob(context.Background(), NewDispatcher(rdb), &WorkerHandlers{Alert: h}, QueueAlerts, encodeJob(t, alertJob(t, 0)))

	assert.Equal(t, 1, h.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessJob_RequeuesOnFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	h := &countingHandler{err: errors.New("smtp down")}

	mock.ExpectLPush(QueueAlerts, []byte(encodeJob(t, alertJob(t, 1)))).SetVal(1)

	processJob(context.Background(), NewDispatcher(rdb), &WorkerHandlers{Alert: h}, QueueAlerts, encodeJob(t, alertJob(t, 0)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessJob_DeadLettersAfterMaxAttempts(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	h := &countingHandler{err: errors.New("smtp down")}

	mock.CustomMatch(func(expected, actual []interface{}) error {
		if len(actual) != 3 || actual[1] != DLQPrefix+QueueAlerts {
			return errors.New("unexpected DLQ push")
		}
		raw, _ := actual[2].([]byte)
		if !strings.Contains(string(raw), `"reason":"smtp down"`) {
			return errors.New("DLQ entry lacks the failure reason")
		}
		return nil
	}).ExpectLPush(DLQPrefix+QueueAlerts, "entry").SetVal(1)

	processJob(context.Background(), NewDispatcher(rdb), &WorkerHandlers{Alert: h},
		QueueAlerts, encodeJob(t, alertJob(t, maxJobAttempts-1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessJob_DropsUnknownAndMalformed(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	h := &countingHandler{}
	d := NewDispatcher(rdb)

	processJob(context.Background(), d, &WorkerHandlers{Alert: h}, QueueAlerts, "{not json")
	processJob(context.Background(), d, &WorkerHandlers{Alert: h}, QueueAlerts, encodeJob(t, Job{Type: "mystery"}))

	assert.Zero(t, h.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayDLQ(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	job := alertJob(t, 0)
	entry, err := json.Marshal(DLQEntry{Queue: QueueAlerts, JobType: job.Type, Payload: job.Payload, Reason: "x", Attempts: 3})
	require.NoError(t, err)

	mock.ExpectRPop(DLQPrefix + QueueAlerts).SetVal(string(entry))
	mock.ExpectLPush(QueueAlerts, []byte(encodeJob(t, job))).SetVal(1)
	mock.ExpectRPop(DLQPrefix + QueueAlerts).RedisNil()

	n, err := ReplayDLQ(context.Background(), rdb, QueueAlerts, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
