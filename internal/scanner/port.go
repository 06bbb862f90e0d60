package scanner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Port is the byte stream the reader consumes. Read must return (0, nil)
// when its read timeout elapses without data.
type Port interface {
	io.ReadCloser
}

// Opener opens the configured port. Reconnects go through the same opener.
type Opener func(cfg Config) (Port, error)

// Config describes the serial line and the decoding rules.
type Config struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string // N, E, O, M or S
	StopBits string // 1, 1.5 or 2

	ReadTimeout     time.Duration
	PollInterval    time.Duration
	ErrorBackoff    time.Duration
	DuplicateWindow time.Duration

	IgnorePrefix string
	IgnoreSuffix string
	Case         string // "upper", "lower" or empty to keep as read
	// StripSpaces trims the ends again once prefix and suffix are removed.
	StripSpaces bool
	// RemoveInnerSpaces deletes every space inside the code. Off by default:
	// account codes may legitimately contain spaces.
	RemoveInnerSpaces bool
}

// DefaultConfig mirrors a common USB barcode reader in serial mode.
func DefaultConfig() Config {
	return Config{
		Port:            "/dev/ttyUSB0",
		BaudRate:        9600,
		DataBits:        8,
		Parity:          "N",
		StopBits:        "1",
		ReadTimeout:     200 * time.Millisecond,
		PollInterval:    100 * time.Millisecond,
		ErrorBackoff:    time.Second,
		DuplicateWindow: 3 * time.Second,
		StripSpaces:     true,
	}
}

// SerialOpener opens a real serial device with go.bug.st/serial.
func SerialOpener(cfg Config) (Port, error) {
	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func parseParity(v string) (serial.Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "N":
		return serial.NoParity, nil
	case "E":
		return serial.EvenParity, nil
	case "O":
		return serial.OddParity, nil
	case "M":
		return serial.MarkParity, nil
	case "S":
		return serial.SpaceParity, nil
	}
	return serial.NoParity, fmt.Errorf("scanner: unknown parity %q", v)
}

func parseStopBits(v string) (serial.StopBits, error) {
	switch strings.TrimSpace(v) {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	}
	return serial.OneStopBit, fmt.Errorf("scanner: unknown stop bits %q", v)
}
