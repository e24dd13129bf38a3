// Package notify broadcasts "the document changed" events to every
// connected observer.
//
// Delivery is best effort. Each subscriber owns a bounded buffer; when it is
// full, further notifications for that subscriber are dropped instead of
// blocking the publisher. Subscribers recover by asking the server for its
// modified date, which is the source of truth.
package notify

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/metrics"
)

const (
	topicChanged = "document.changed"
	metaOrigin   = "origin"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("broadcaster closed")

// Notification announces an accepted update.
type Notification struct {
	// Origin is the connection that caused the change. It is not notified.
	Origin string

	// LastModified is the new document timestamp.
	LastModified time.Time
}

// Config configures a Broadcaster.
type Config struct {
	// SubscriberBuffer is the number of pending notifications kept per
	// subscriber before new ones are dropped.
	// Default: 16
	SubscriberBuffer int
}

func (c *Config) applyDefaults() {
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 16
	}
}

// Broadcaster fans notifications out to subscribers over an in-process
// watermill pub/sub.
type Broadcaster struct {
	pubsub  *gochannel.GoChannel
	buffer  int
	metrics metrics.SyncMetrics

	mu          sync.Mutex
	closed      bool
	subscribers sync.WaitGroup
	active      atomic.Int32
}

// New creates a Broadcaster. A nil m disables metrics.
func New(cfg Config, m metrics.SyncMetrics) *Broadcaster {
	cfg.applyDefaults()
	if m == nil {
		m = metrics.NewNoopSyncMetrics()
	}
	return &Broadcaster{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: int64(cfg.SubscriberBuffer),
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		buffer:  cfg.SubscriberBuffer,
		metrics: m,
	}
}

// Publish announces n to every subscriber except n.Origin. It never waits
// for subscribers.
func (b *Broadcaster) Publish(n Notification) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte(strconv.FormatInt(n.LastModified.UnixNano(), 10)))
	msg.Metadata.Set(metaOrigin, n.Origin)
	return b.pubsub.Publish(topicChanged, msg)
}

// Subscribe registers an observer identified by self. The returned channel
// is closed when ctx is done or the Broadcaster is closed.
func (b *Broadcaster) Subscribe(ctx context.Context, self string) (<-chan Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	msgs, err := b.pubsub.Subscribe(ctx, topicChanged)
	if err != nil {
		return nil, err
	}

	out := make(chan Notification, b.buffer)
	b.subscribers.Add(1)
	b.active.Add(1)
	go b.pump(self, msgs, out)
	return out, nil
}

// pump acks every message immediately so the pub/sub never waits on a slow
// consumer, and forwards it without blocking.
func (b *Broadcaster) pump(self string, msgs <-chan *message.Message, out chan<- Notification) {
	defer func() {
		close(out)
		b.active.Add(-1)
		b.subscribers.Done()
	}()

	for msg := range msgs {
		msg.Ack()

		origin := msg.Metadata.Get(metaOrigin)
		if origin == self {
			continue
		}
		ns, err := strconv.ParseInt(string(msg.Payload), 10, 64)
		if err != nil {
			logger.Warn("Dropping malformed change notification %s: %v", msg.UUID, err)
			continue
		}

		select {
		case out <- Notification{Origin: origin, LastModified: time.Unix(0, ns).UTC()}:
			b.metrics.RecordNotification(true)
		default:
			b.metrics.RecordNotification(false)
			logger.Debug("Notification buffer full for %s, dropping", self)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	return int(b.active.Load())
}

// Close stops delivery and closes every subscriber channel.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.pubsub.Close()
	b.subscribers.Wait()
	return err
}
