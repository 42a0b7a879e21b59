package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]DigestEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func (p *capturePublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		for _, e := range b {
			n += e.Count
		}
	}
	return n
}

func TestDigestCollapsesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 10, Topic: "logs", Publisher: pub})

	l := Nop()
	l.AttachDigest(d)
	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("symbol", "AAPL"), Error(errors.New("boom")))
	}
	l.Error("fetch failed", String("symbol", "MSFT"))

	pending := d.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, 3, pending[0].Count)
	assert.Equal(t, "AAPL", pending[0].Fields["symbol"])
	assert.Equal(t, 1, pending[1].Count)

	l.DetachDigest()
	assert.Equal(t, "logs", pub.topic)
	assert.Equal(t, 4, pub.total())
	assert.Empty(t, d.Pending())
}

func TestDigestFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 2, Topic: "logs", Publisher: pub})
	defer d.Close()

	d.Add("error", "a", nil, "x.go:1")
	d.Add("error", "b", nil, "x.go:2")

	assert.Empty(t, d.Pending())
	assert.Eventually(t, func() bool { return pub.total() == 2 }, time.Second, 10*time.Millisecond)
}

func TestInfoDoesNotFeedDigest(t *testing.T) {
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 10})
	defer d.Close()

	l := Nop()
	l.AttachDigest(d)
	l.Info("fetching", Strings("symbols", []string{"AAPL", "MSFT"}))
	l.Warn("partial data")

	assert.Empty(t, d.Pending())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}
