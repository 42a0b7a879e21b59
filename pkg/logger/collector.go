package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	Interval  time.Duration // periodic flush
	MaxUnique int           // flush once this many distinct entries are pending
	Topic     string
	Publisher Publisher
}

// DigestEntry is one fingerprinted log line with its occurrence count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest collapses repeated log lines and publishes them in batches.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[string]*DigestEntry
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	flushWG sync.WaitGroup
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	d := &Digest{
		cfg:     cfg,
		pending: make(map[string]*DigestEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Digest) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.pending[key] = &DigestEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(d.pending) >= d.cfg.MaxUnique {
		d.flushLocked()
	}
}

// Pending returns a snapshot of unflushed entries ordered by first occurrence.
func (d *Digest) Pending() []DigestEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].Caller < out[j].Caller
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

func (d *Digest) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-d.stop:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
			return
		}
	}
}

// flushLocked must be called with d.mu held.
func (d *Digest) flushLocked() {
	if len(d.pending) == 0 {
		return
	}
	batch := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, *e)
	}
	d.pending = make(map[string]*DigestEntry)

	if d.cfg.Publisher == nil {
		return
	}
	d.flushWG.Add(1)
	go func() {
		defer d.flushWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
			// the logger itself feeds this digest, so report on stderr
			_, _ = os.Stderr.WriteString("log digest publish failed: " + err.Error() + "\n")
		}
	}()
}

// Close flushes pending entries and waits for in-flight publishes.
func (d *Digest) Close() {
	d.once.Do(func() {
		close(d.stop)
		<-d.done
		d.flushWG.Wait()
	})
}

func fingerprint(level, message string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
