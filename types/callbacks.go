package types

import (
	"encoding/json"
	"sync"
)

// Result is handed to OnSuccess.
type Result struct {
	Status      string          `json:"status"`
	ChargeUUID  string          `json:"charge_uuid,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Event is a non-terminal notification (pending statuses, passthrough
// checkout messages).
type Event struct {
	Name    string          `json:"name"`
	Status  string          `json:"status,omitempty"`
	Pending bool            `json:"pending,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Callbacks is the caller-facing callback surface of a flow. Any field may be nil.
type Callbacks struct {
	OnReady   func()
	OnSuccess func(Result)
	OnError   func(error)
	OnLoading func(isLoading bool)
	OnEvent   func(Event)
	OnClose   func()
}

// Delivery wraps Callbacks so that exactly one terminal callback
// (OnSuccess, OnError or OnClose) is ever invoked. Anything arriving after
// the terminal callback is dropped.
type Delivery struct {
	cb        Callbacks
	mu        sync.Mutex
	done      bool
	readyOnce sync.Once
}

func NewDelivery(cb Callbacks) *Delivery {
	return &Delivery{cb: cb}
}

func (d *Delivery) settle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return false
	}
	d.done = true
	return true
}

// Done reports whether a terminal callback was already delivered.
func (d *Delivery) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *Delivery) Ready() {
	if d.Done() {
		return
	}
	d.readyOnce.Do(func() {
		if d.cb.OnReady != nil {
			d.cb.OnReady()
		}
	})
}

func (d *Delivery) Succeed(r Result) bool {
	if !d.settle() {
		return false
	}
	if d.cb.OnSuccess != nil {
		d.cb.OnSuccess(r)
	}
	return true
}

func (d *Delivery) Fail(err error) bool {
	if !d.settle() {
		return false
	}
	if d.cb.OnError != nil {
		d.cb.OnError(err)
	}
	return true
}

func (d *Delivery) Close() bool {
	if !d.settle() {
		return false
	}
	if d.cb.OnClose != nil {
		d.cb.OnClose()
	}
	return true
}

// Silence settles the delivery without invoking anything. Used when a
// surface is superseded by a newer one.
func (d *Delivery) Silence() bool {
	return d.settle()
}

func (d *Delivery) Event(e Event) {
	if d.Done() || d.cb.OnEvent == nil {
		return
	}
	d.cb.OnEvent(e)
}

func (d *Delivery) Loading(isLoading bool) {
	if d.Done() || d.cb.OnLoading == nil {
		return
	}
	d.cb.OnLoading(isLoading)
}
