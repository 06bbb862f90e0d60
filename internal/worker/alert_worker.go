package worker

// alert_worker.go
// Sends integrity alert e-mails queued by the audit channel. The SMTP call
// goes through a circuit breaker so a dead relay fails fast.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethan0sc4r/gestione-vinicola/internal/infra"

	"github.com/rs/zerolog/log"
)

// AlertJobPayload is the job envelope sent to QueueAlerts.
type AlertJobPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// AlertSender is satisfied by *infra.Mailer.
type AlertSender interface {
	SendAlert(to, subject, body string) error
}

type AlertWorker struct {
	sender AlertSender
	cb     *infra.CircuitBreaker
}

func NewAlertWorker(sender AlertSender, cb *infra.CircuitBreaker) *AlertWorker {
	return &AlertWorker{sender: sender, cb: cb}
}

func (w *AlertWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload AlertJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return nil // retrying cannot fix a malformed payload
	}
	if payload.To == "" {
		log.Warn().Msg("alert_worker: empty recipient, skipping")
		return nil
	}

	err := w.cb.Execute(func() error {
		return w.sender.SendAlert(payload.To, payload.Subject, payload.Body)
	})
	if err != nil {
		return fmt.Errorf("alert_worker: send to %s: %w", payload.To, err)
	}
	log.Info().Str("to", payload.To).Msg("alert_worker: integrity alert sent")
	return nil
}
