// Package health tracks store reachability and gates mutating operations
// while the store is degraded.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// State is the monitor's circuit state.
type State int32

const (
	Healthy State = iota
	Degraded
)

func (s State) String() string {
	if s == Degraded {
		return "degraded"
	}
	return "healthy"
}

// Probe is a lightweight no-op round-trip against the store, typically
// pgxpool.Ping.
type Probe func(ctx context.Context) error

// Monitor is a single atomically-updated state word consulted by every write
// path before it touches the store. A single connection-lost classified
// failure trips it to Degraded; a successful operation or probe resets it.
type Monitor struct {
	state atomic.Int32

	probe        Probe
	interval     time.Duration
	probeTimeout time.Duration

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMonitor builds a healthy monitor probing on the given interval while
// degraded.
func NewMonitor(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		probe:        probe,
		interval:     interval,
		probeTimeout: interval,
		stop:         make(chan struct{}),
	}
}

// State returns the current circuit state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// AllowWrite reports whether the named mutating operation may proceed. When
// degraded it refuses synchronously without any store access.
func (m *Monitor) AllowWrite(op string) bool {
	if m.State() == Degraded {
		log.Debug().Str("op", op).Msg("write refused, store degraded")
		return false
	}
	return true
}

// MarkSuccess resets the monitor to healthy.
func (m *Monitor) MarkSuccess() {
	if m.state.Swap(int32(Healthy)) == int32(Degraded) {
		log.Info().Msg("store recovered, leaving degraded mode")
	}
}

// MarkFailure trips the monitor when the failure was classified as a lost
// connection. Other failure classes (deadlocks, lock contention) leave the
// state untouched: the store answered, it is not unreachable.
func (m *Monitor) MarkFailure(err error) {
	if err == nil {
		return
	}
	if domain.CodeOf(err) != domain.CodeConnectionLost {
		return
	}
	if m.state.CompareAndSwap(int32(Healthy), int32(Degraded)) {
		log.Warn().Err(err).Msg("store unreachable, entering degraded mode")
	}
}

// Start launches the background reconnect probe. The probe only runs while
// degraded.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.probeLoop()
}

// Stop terminates the probe loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Monitor) probeLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m.State() != Degraded || m.probe == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
			err := m.probe(ctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Msg("store probe failed, staying degraded")
				continue
			}
			m.MarkSuccess()
		case <-m.stop:
			return
		}
	}
}
