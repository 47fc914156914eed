package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"a55pay-sdk/services/report"
	"a55pay-sdk/types"
)

// Recorder turns flow callbacks into a FlowRecord. Callbacks can fire before
// the flow id is known (synchronous validation errors), so the record is
// only written once Bind is called and on every change afterwards.
type Recorder struct {
	store FlowStore

	mu      sync.Mutex
	rec     FlowRecord
	version uint64

	// saveMu orders writes; a snapshot older than the last saved one is dropped.
	saveMu sync.Mutex
	saved  uint64
}

func NewRecorder(s FlowStore, sessionID, flow string) *Recorder {
	now := time.Now().UTC()
	return &Recorder{
		store: s,
		rec: FlowRecord{
			SessionID: sessionID,
			Flow:      flow,
			State:     StateRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Callbacks returns the callback set to hand to the orchestrator.
func (r *Recorder) Callbacks() types.Callbacks {
	return types.Callbacks{
		OnReady: func() {
			r.update(func(rec *FlowRecord) {
				if rec.State == StateRunning {
					rec.State = StateReady
				}
			})
		},
		OnSuccess: func(res types.Result) {
			r.update(func(rec *FlowRecord) {
				rec.State = StateSucceeded
				rec.Loading = false
				rec.Result = &res
			})
		},
		OnError: func(err error) {
			r.update(func(rec *FlowRecord) {
				rec.State = StateFailed
				rec.Loading = false
				rec.Error = errorRecord(err)
			})
		},
		OnClose: func() {
			r.update(func(rec *FlowRecord) {
				rec.State = StateClosed
				rec.Loading = false
			})
		},
		OnLoading: func(isLoading bool) {
			r.update(func(rec *FlowRecord) { rec.Loading = isLoading })
		},
		OnEvent: func(ev types.Event) {
			r.update(func(rec *FlowRecord) { rec.Events = append(rec.Events, ev) })
		},
	}
}

// Bind assigns the flow id and writes the record.
func (r *Recorder) Bind(id string) *FlowRecord {
	r.mu.Lock()
	r.rec.ID = id
	r.version++
	snap, v := r.snapshotLocked(), r.version
	r.mu.Unlock()
	r.save(&snap, v)
	return &snap
}

// Record returns a copy of the current record.
func (r *Recorder) Record() FlowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) update(fn func(*FlowRecord)) {
	r.mu.Lock()
	fn(&r.rec)
	r.rec.UpdatedAt = time.Now().UTC()
	r.version++
	snap, v := r.snapshotLocked(), r.version
	r.mu.Unlock()
	if snap.ID != "" {
		r.save(&snap, v)
	}
}

func (r *Recorder) snapshotLocked() FlowRecord {
	snap := r.rec
	snap.Events = append([]types.Event(nil), r.rec.Events...)
	return snap
}

func (r *Recorder) save(rec *FlowRecord, version uint64) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if version <= r.saved {
		log.Printf("[FlowID: %s] Skipping stale flow state (version %d, saved %d)", rec.ID, version, r.saved)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.SaveFlow(ctx, rec); err != nil {
		log.Printf("[FlowID: %s] Error saving flow state: %v", rec.ID, err)
		return
	}
	r.saved = version
}

func errorRecord(err error) *ErrorRecord {
	out := &ErrorRecord{Kind: report.Kind(err), Message: err.Error()}
	var te *types.Error
	if errors.As(err, &te) {
		out.Message = te.Message
		out.Raw = te.Raw
	}
	return out
}
