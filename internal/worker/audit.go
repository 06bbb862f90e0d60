package worker

// audit.go
// Operator-facing audit channel for integrity mismatches. Every incident is
// pushed to a capped Redis list and, when an alert address is configured,
// summarized in one e-mail job.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	AuditListKey = "audit:integrity"
	auditListMax = 1000
)

type AuditChannel struct {
	rdb        *redis.Client
	dispatcher *Dispatcher
	alertTo    string
}

func NewAuditChannel(rdb *redis.Client, dispatcher *Dispatcher, alertTo string) *AuditChannel {
	return &AuditChannel{rdb: rdb, dispatcher: dispatcher, alertTo: alertTo}
}

// Report never fails the caller: the ledger has already healed and committed.
func (a *AuditChannel) Report(ctx context.Context, incidents []model.IntegrityIncident) {
	for _, inc := range incidents {
		data, err := json.Marshal(inc)
		if err != nil {
			continue
		}
		if err := a.rdb.LPush(ctx, AuditListKey, data).Err(); err != nil {
			log.Error().Err(err).Uint("account_id", inc.AccountID).Msg("audit: failed to push incident")
			continue
		}
		_ = a.rdb.LTrim(ctx, AuditListKey, 0, auditListMax-1).Err()
	}

	if a.alertTo == "" || a.dispatcher == nil || len(incidents) == 0 {
		return
	}
	payload := AlertJobPayload{
		To:      a.alertTo,
		Subject: fmt.Sprintf("Credit integrity: %d account(s) healed", len(incidents)),
		Body:    alertBody(incidents),
	}
	if err := a.dispatcher.EnqueueAlert(ctx, payload); err != nil {
		log.Error().Err(err).Msg("audit: failed to enqueue alert e-mail")
	}
}

// Recent returns up to n incidents, newest first.
func (a *AuditChannel) Recent(ctx context.Context, n int64) ([]model.IntegrityIncident, error) {
	raw, err := a.rdb.LRange(ctx, AuditListKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.IntegrityIncident, 0, len(raw))
	for _, r := range raw {
		var inc model.IntegrityIncident
		if err := json.Unmarshal([]byte(r), &inc); err != nil {
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}

func alertBody(incidents []model.IntegrityIncident) string {
	var b strings.Builder
	b.WriteString("The following accounts failed fingerprint verification and were re-sealed from their stored values.\n\n")
	for _, inc := range incidents {
		fmt.Fprintf(&b, "- account %d (%s): balance %s, limit %s, source %s, at %s\n  stored fingerprint %s\n",
			inc.AccountID, inc.AccountCode, inc.Balance.StringFixed(2), inc.CreditLimit.StringFixed(2),
			inc.Source, inc.DetectedAt.Format("2006-01-02 15:04:05"), inc.StoredFingerprint)
	}
	return b.String()
}
