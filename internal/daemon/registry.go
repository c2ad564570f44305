package daemon

import (
	"sort"
	"sync"
	"time"

	"github.com/syncpair/syncpair/internal/report"
)

const eventBufferSize = 16

// PairState is the lifecycle state of one pairing inside the daemon.
type PairState string

const (
	PairStateIdle    PairState = "idle"    // scheduled, waiting for the next run
	PairStateSyncing PairState = "syncing" // a run is in flight
	PairStateError   PairState = "error"   // the last run failed fatally
)

// PairStatus is the daemon's view of one pairing.
type PairStatus struct {
	Pair       string             `json:"pair"`
	State      PairState          `json:"state"`
	Runs       int                `json:"runs"`
	LastRun    time.Time          `json:"lastRun"`
	NextRun    time.Time          `json:"nextRun"`
	LastError  string             `json:"lastError,omitempty"`
	LastReport *report.PairReport `json:"lastReport,omitempty"`
}

// Event is broadcast to subscribers whenever a pairing's status changes.
type Event struct {
	Pair   string
	Status PairStatus
}

// Registry tracks every pairing's status and broadcasts changes to
// subscribers (the TUI, the status API). All methods are safe for concurrent
// use by the per-pair runners.
type Registry struct {
	mu    sync.RWMutex
	pairs map[string]*PairStatus

	subMu sync.RWMutex
	subs  []chan Event
}

func NewRegistry() *Registry {
	return &Registry{
		pairs: make(map[string]*PairStatus),
	}
}

// Subscribe returns a channel receiving every status change. Slow consumers
// miss events rather than blocking the runners.
func (r *Registry) Subscribe() <-chan Event {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ch := make(chan Event, eventBufferSize)
	r.subs = append(r.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (r *Registry) Unsubscribe(ch <-chan Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for i, sub := range r.subs {
		if sub == ch {
			close(sub)
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
}

func (r *Registry) broadcast(status *PairStatus) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	event := Event{Pair: status.Pair, Status: *status}
	for _, sub := range r.subs {
		select {
		case sub <- event:
		default:
			// channel full, drop rather than stall a runner
		}
	}
}

func (r *Registry) getOrCreate(pair string) *PairStatus {
	if status, ok := r.pairs[pair]; ok {
		return status
	}
	status := &PairStatus{Pair: pair, State: PairStateIdle}
	r.pairs[pair] = status
	return status
}

// Register announces a pairing before its first run so status surfaces list
// it immediately.
func (r *Registry) Register(pair string, nextRun time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.getOrCreate(pair)
	status.NextRun = nextRun
	r.broadcast(status)
}

// SetSyncing marks a run as in flight.
func (r *Registry) SetSyncing(pair string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.getOrCreate(pair)
	status.State = PairStateSyncing
	r.broadcast(status)
}

// SetResult records a completed run, fatal or not.
func (r *Registry) SetResult(pair string, rep report.PairReport, nextRun time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.getOrCreate(pair)
	status.Runs++
	status.LastRun = time.Now().UTC()
	status.NextRun = nextRun
	status.LastReport = &rep

	if rep.Fatal != "" {
		status.State = PairStateError
		status.LastError = rep.Fatal
	} else {
		status.State = PairStateIdle
		status.LastError = ""
	}
	r.broadcast(status)
}

// Get returns a copy of one pairing's status.
func (r *Registry) Get(pair string) (PairStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.pairs[pair]
	if !ok {
		return PairStatus{}, false
	}
	return *status, true
}

// Snapshot returns a copy of every pairing's status, ordered by name.
func (r *Registry) Snapshot() []PairStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PairStatus, 0, len(r.pairs))
	for _, status := range r.pairs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

// Close drops all subscriptions.
func (r *Registry) Close() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, sub := range r.subs {
		close(sub)
	}
	r.subs = nil
}
