package device

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"a55pay-sdk/page"
)

// CollectorScriptID is the element id of the device-intelligence collector.
const CollectorScriptID = "a55pay-device-collector"

// Identity owns the device identifier of one page and keeps the
// device-intelligence collector script pointed at it.
type Identity struct {
	mu           sync.RWMutex
	id           string
	collectorMu  sync.Mutex
	doc          page.Document
	collectorURL string
	loadTimeout  time.Duration
}

// NewIdentity generates the initial identifier. When collectorURL is empty
// no collector script is ever loaded.
func NewIdentity(doc page.Document, collectorURL string) *Identity {
	return &Identity{
		id:           uuid.New().String(),
		doc:          doc,
		collectorURL: collectorURL,
		loadTimeout:  15 * time.Second,
	}
}

func (i *Identity) Get() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// Regenerate switches to a fresh identifier and restarts the collector
// script for it. The script load runs in the background; its failure never
// affects the returned identifier.
func (i *Identity) Regenerate() string {
	i.mu.Lock()
	i.id = uuid.New().String()
	id := i.id
	i.mu.Unlock()

	go i.startCollector(id)
	return id
}

// Start loads the collector for the current identifier.
func (i *Identity) Start() {
	go i.startCollector(i.Get())
}

func (i *Identity) startCollector(id string) {
	if i.collectorURL == "" || i.doc == nil {
		return
	}

	// Only one collector at a time, and only for the current id.
	i.collectorMu.Lock()
	defer i.collectorMu.Unlock()
	if id != i.Get() {
		return
	}

	if old := i.doc.ElementByID(CollectorScriptID); old != nil {
		old.Remove()
	}

	src, err := collectorSource(i.collectorURL, id)
	if err != nil {
		log.Printf("[Device: %s] Invalid collector URL: %v", id, err)
		return
	}

	script := i.doc.CreateElement("script")
	script.SetAttr("id", CollectorScriptID)
	script.SetAttr("type", "text/javascript")
	script.SetAttr("src", src)

	ctx, cancel := context.WithTimeout(context.Background(), i.loadTimeout)
	defer cancel()
	if err := i.doc.LoadScript(ctx, i.doc.Head(), script); err != nil {
		log.Printf("[Device: %s] Collector script failed to load: %v", id, err)
	}
}

func collectorSource(base, id string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("session_id", id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
