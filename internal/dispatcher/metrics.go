package dispatcher

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics collects dispatch statistics across every instance of a
// Dispatcher.
type Metrics struct {
	mu      sync.Mutex
	actions map[string]*ActionMetrics
}

// ActionMetrics holds the statistics of one action name.
type ActionMetrics struct {
	Name       string
	Dispatches uint64
	Errors     uint64
	Panics     uint64
	// Handlers counts handler calls; one dispatch may reach several stores.
	Handlers uint64
	Total    time.Duration
	Max      time.Duration
}

// Average returns the mean dispatch duration.
func (am ActionMetrics) Average() time.Duration {
	if am.Dispatches == 0 {
		return 0
	}
	return am.Total / time.Duration(am.Dispatches)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{actions: make(map[string]*ActionMetrics)}
}

func (m *Metrics) action(name string) *ActionMetrics {
	am := m.actions[name]
	if am == nil {
		am = &ActionMetrics{Name: name}
		m.actions[name] = am
	}
	return am
}

// RecordDispatch records one dispatch that called handlers handlers.
// A non-nil err counts as an error.
func (m *Metrics) RecordDispatch(actionName string, handlers int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	am := m.action(actionName)
	am.Dispatches++
	am.Handlers += uint64(handlers)
	am.Total += duration
	am.Max = max(am.Max, duration)
	if err != nil {
		am.Errors++
	}
}

// RecordPanic records a recovered handler panic.
func (m *Metrics) RecordPanic(actionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.action(actionName).Panics++
}

// TotalPanics returns the number of recovered panics over all actions.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n uint64
	for _, am := range m.actions {
		n += am.Panics
	}
	return n
}

// Snapshot returns a copy of the per-action statistics sorted by name.
func (m *Metrics) Snapshot() []ActionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ActionMetrics, 0, len(m.actions))
	for _, am := range m.actions {
		out = append(out, *am)
	}
	slices.SortFunc(out, func(a, b ActionMetrics) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
