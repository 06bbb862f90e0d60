package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
)

var (
	// ErrPortUnavailable is returned by Start when the port cannot be opened.
	// Only the pipeline fails; the rest of the service keeps running.
	ErrPortUnavailable = errors.New("scanner: serial port unavailable")
	// ErrIO wraps read failures; the reader backs off and reconnects.
	ErrIO = errors.New("scanner: read error")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Resolver maps a decoded code to an account.
type Resolver interface {
	Lookup(ctx context.Context, code string) (*model.Account, error)
}

// ScanHook is the side channel run after every resolution, found or not.
type ScanHook func(ctx context.Context, scan Scan, account *model.Account, err error)

// Status is a point-in-time view of the reader.
type Status struct {
	State     State
	Port      string
	LastError string
	Recent    []Scan
}

// Reader owns the serial handle, the framer and the scan history. One
// goroutine reads; any number of callers may poll LatestScan.
type Reader struct {
	cfg      Config
	open     Opener
	resolver Resolver
	hooks    []ScanHook
	history  *History
	framer   *Framer

	mu      sync.Mutex
	state   State
	lastErr error

	// touched only by the read goroutine
	lastCode string
	lastAt   time.Time
}

func NewReader(cfg Config, open Opener, resolver Resolver, hooks ...ScanHook) *Reader {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if open == nil {
		open = SerialOpener
	}
	return &Reader{
		cfg:      cfg,
		open:     open,
		resolver: resolver,
		hooks:    hooks,
		history:  NewHistory(HistorySize),
		framer:   NewFramer(cfg),
		state:    Disconnected,
	}
}

// Start opens the port and launches the read loop. It returns
// ErrPortUnavailable without starting anything if the first open fails.
// The loop runs until ctx is cancelled.
func (r *Reader) Start(ctx context.Context) error {
	r.setState(Connecting, nil)
	port, err := r.open(r.cfg)
	if err != nil {
		r.setState(Disconnected, err)
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, r.cfg.Port, err)
	}
	r.setState(Streaming, nil)
	log.Info().Str("port", r.cfg.Port).Int("baud", r.cfg.BaudRate).Msg("scanner: streaming")

	go r.run(ctx, port)
	return nil
}

func (r *Reader) run(ctx context.Context, port Port) {
	buf := make([]byte, 256)
	defer func() {
		if port != nil {
			_ = port.Close()
		}
		r.setState(Disconnected, nil)
		log.Info().Str("port", r.cfg.Port).Msg("scanner: stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if port == nil {
			r.setState(Connecting, nil)
			p, err := r.open(r.cfg)
			if err != nil {
				r.setState(Disconnected, err)
				log.Warn().Err(err).Str("port", r.cfg.Port).Msg("scanner: reconnect failed")
				if !sleep(ctx, r.cfg.ErrorBackoff) {
					return
				}
				continue
			}
			port = p
			r.setState(Streaming, nil)
			log.Info().Str("port", r.cfg.Port).Msg("scanner: reconnected")
		}

		n, err := port.Read(buf)
		if err != nil {
			ioErr := fmt.Errorf("%w: %v", ErrIO, err)
			log.Error().Err(ioErr).Str("port", r.cfg.Port).Msg("scanner: closing port after read error")
			_ = port.Close()
			port = nil
			r.framer.Reset()
			r.setState(Disconnected, ioErr)
			if !sleep(ctx, r.cfg.ErrorBackoff) {
				return
			}
			continue
		}
		if n == 0 {
			if !sleep(ctx, r.cfg.PollInterval) {
				return
			}
			continue
		}

		for _, code := range r.framer.Feed(buf[:n]) {
			r.handle(ctx, code)
		}
	}
}

// handle records the code, then resolves it outside the history lock.
func (r *Reader) handle(ctx context.Context, code string) {
	now := time.Now()
	if r.cfg.DuplicateWindow > 0 && code == r.lastCode && now.Sub(r.lastAt) < r.cfg.DuplicateWindow {
		log.Debug().Str("code", code).Msg("scanner: duplicate suppressed")
		return
	}
	r.lastCode, r.lastAt = code, now

	scan := Scan{Code: code, ScannedAt: now}
	r.history.Push(scan)

	if r.resolver == nil {
		return
	}
	acc, err := r.resolver.Lookup(ctx, code)
	if err != nil {
		log.Info().Str("code", code).Err(err).Msg("scanner: code not resolved")
	} else {
		log.Info().Str("code", code).Uint("account_id", acc.ID).Msg("scanner: code resolved")
	}
	for _, hook := range r.hooks {
		hook(ctx, scan, acc, err)
	}
}

// LatestScan returns the newest decoded code.
func (r *Reader) LatestScan() (Scan, bool) {
	return r.history.Latest()
}

func (r *Reader) Recent() []Scan {
	return r.history.Snapshot()
}

func (r *Reader) Status() Status {
	r.mu.Lock()
	st := Status{State: r.state, Port: r.cfg.Port}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	r.mu.Unlock()
	st.Recent = r.history.Snapshot()
	return st
}

func (r *Reader) setState(s State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	if err != nil {
		r.lastErr = err
	}
}

// sleep waits d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
