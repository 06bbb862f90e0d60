package infra

import (
	"testing"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer(&config.Config{SMTPPort: 587})
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendAlert("ops@example.com", "s", "b"), ErrMailerNotConfigured)
}

func TestMailer_Address(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "mail.local", SMTPPort: 2525})
	assert.True(t, m.Configured())
	assert.Equal(t, "mail.local:2525", m.addr)
}
