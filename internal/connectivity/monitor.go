// Package connectivity watches portal reachability and triggers sync on
// recovery.
package connectivity

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lingaphealth/fieldsync/internal/logging"
)

// DefaultProbeInterval is the cadence of reachability probes.
const DefaultProbeInterval = 30 * time.Second

// probeTimeout bounds a single reachability probe.
const probeTimeout = 5 * time.Second

// ProbeFunc reports whether the portal is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// Listener receives online-state transitions.
type Listener func(online bool)

// HTTPProbe returns a ProbeFunc that issues a GET against the given URL.
// Any HTTP response means reachable; only transport errors count as offline.
func HTTPProbe(url string) ProbeFunc {
	client := &http.Client{}
	return func(ctx context.Context) bool {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return true
	}
}

// Monitor observes online/offline transitions. Each offline-to-online
// transition invokes the sync trigger; the trigger is also fired when the
// first probe finds the portal reachable so work queued across a restart
// syncs promptly.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	onOnline func()

	mu        sync.RWMutex
	online    bool
	seeded    bool
	listeners []Listener
	isRunning bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a connectivity monitor. onOnline may be nil when no
// sync trigger is wanted.
func NewMonitor(probe ProbeFunc, interval time.Duration, onOnline func()) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		onOnline: onOnline,
		stopCh:   make(chan struct{}),
	}
}

// Start begins probing. The first probe runs immediately to seed the
// current state.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(ctx, stopCh)

	logging.Info("connectivity monitor started", logging.Fields{
		"interval": m.interval.String(),
	})
}

// Stop stops the monitor and waits for the probe loop to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()

	logging.Info("connectivity monitor stopped", nil)
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a listener notified on every state transition.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// probeLoop probes immediately, then on the configured interval.
func (m *Monitor) probeLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	m.observe(m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.observe(m.probe(ctx))
		}
	}
}

// observe records a probe result and fires listeners and the sync trigger
// on transitions.
func (m *Monitor) observe(online bool) {
	m.mu.Lock()

	changed := !m.seeded || m.online != online
	cameOnline := online && (!m.seeded || !m.online)
	m.online = online
	m.seeded = true

	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !changed {
		return
	}

	logging.Info("connectivity changed", logging.Fields{"online": online})

	for _, l := range listeners {
		l(online)
	}

	if cameOnline && m.onOnline != nil {
		m.onOnline()
	}
}
