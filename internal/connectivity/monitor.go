// Package connectivity watches whether the sync server is reachable and
// notifies subscribers on transitions.
package connectivity

import (
	"net/http"    // Health probe
	gosync "sync" // Subscriber registry guard
	"time"        // Poll interval

	"github.com/sirupsen/logrus" // Structured logging
)

// Monitor probes a health URL on an interval. IsOnline always performs a
// live probe; the background loop only drives OnChange notifications.
type Monitor struct {
	url      string
	interval time.Duration
	httpc    *http.Client

	mu     gosync.Mutex              // Guards subscribers and last state
	subs   map[int]func(online bool) // Change subscribers
	nextID int                       // Next subscriber handle
	online bool                      // Last observed state
	seeded bool                      // Whether online has been observed at least once

	stop chan struct{} // Closed by Stop
	done chan struct{} // Closed when the loop exits
}

// NewMonitor constructs a monitor probing healthURL every interval
func NewMonitor(healthURL string, interval time.Duration) *Monitor {
	return &Monitor{
		url:      healthURL,
		interval: interval,
		httpc:    &http.Client{Timeout: 3 * time.Second},
		subs:     make(map[int]func(online bool)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// IsOnline probes the server once and reports reachability
func (m *Monitor) IsOnline() bool {
	online := m.probe()
	m.observe(online)
	return online
}

// OnChange subscribes to reachability transitions. The returned func
// unsubscribes; it is safe to call more than once.
func (m *Monitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Start launches the background polling loop
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.observe(m.probe())
			}
		}
	}()
}

// Stop terminates the polling loop and waits for it to exit
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

// probe performs one reachability check
func (m *Monitor) probe() bool {
	resp, err := m.httpc.Get(m.url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// observe records a probe result and notifies subscribers on transitions
func (m *Monitor) observe(online bool) {
	m.mu.Lock()
	// The first observation seeds the state without notifying: only real
	// transitions count as changes.
	changed := m.seeded && online != m.online
	m.online = online
	m.seeded = true
	var subs []func(bool)
	if changed {
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	logrus.WithField("online", online).Info("Connectivity changed")
	// Notify outside the lock; a subscriber may trigger a sync that probes again
	for _, fn := range subs {
		fn(online)
	}
}
