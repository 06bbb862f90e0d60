package scanner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventsChannel is the pub/sub channel scan outcomes are published on.
const EventsChannel = "scanner:events"

// ScanEvent is the JSON payload published for each resolved or unresolved scan.
type ScanEvent struct {
	Code      string    `json:"code"`
	ScannedAt time.Time `json:"scanned_at"`
	Found     bool      `json:"found"`
	AccountID uint      `json:"account_id,omitempty"`
	Name      string    `json:"name,omitempty"`
}

// RedisPublisher returns a hook that publishes every scan outcome, for
// keystroke emulators and other listeners. Publish errors are logged only.
func RedisPublisher(rdb *redis.Client, channel string) ScanHook {
	return func(ctx context.Context, scan Scan, acc *model.Account, err error) {
		evt := ScanEvent{Code: scan.Code, ScannedAt: scan.ScannedAt}
		if err == nil && acc != nil {
			evt.Found = true
			evt.AccountID = acc.ID
			evt.Name = acc.FullName()
		}
		data, mErr := json.Marshal(evt)
		if mErr != nil {
			return
		}
		if pErr := rdb.Publish(ctx, channel, data).Err(); pErr != nil {
			log.Warn().Err(pErr).Str("channel", channel).Msg("scanner: publish failed")
		}
	}
}
