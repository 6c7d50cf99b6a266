package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrShutdown is returned when subscribing to a bus that has been shut down.
var ErrShutdown = errors.New("pubsub: shut down")

// DefaultBufferSize is the per-subscription channel capacity.
const DefaultBufferSize = 16

// PubSub is an in-process event bus. Delivery is best effort: a subscriber
// whose buffer is full misses the message rather than blocking the publisher.
type PubSub struct {
	subscribers map[string]map[*Subscription]struct{}
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
	bufferSize  int
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic     string
	channel   chan any
	ps        *PubSub
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return NewPubSubWithBuffer(DefaultBufferSize)
}

// NewPubSubWithBuffer creates a bus whose subscriptions buffer size messages.
func NewPubSubWithBuffer(size int) *PubSub {
	if size < 1 {
		size = 1
	}
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		shutdown:    make(chan struct{}),
		bufferSize:  size,
	}
}

// Subscribe registers interest in topic. The subscription ends when ctx is
// cancelled, Unsubscribe is called, or the bus shuts down; its channel is
// closed in every case.
func (ps *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps.shutdownMu.Lock()
	defer ps.shutdownMu.Unlock()
	if ps.isShutdown {
		return nil, ErrShutdown
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan any, ps.bufferSize),
		ps:      ps,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]struct{})
	}
	ps.subscribers[topic][sub] = struct{}{}
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			sub.close()
		}
	}()

	return sub, nil
}

// Publish sends message to every subscriber of topic and returns how many
// received it.
func (ps *PubSub) Publish(topic string, message any) int {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return 0
	}
	ps.shutdownMu.Unlock()

	// Snapshot under lock; channel sends happen outside it.
	ps.mu.RLock()
	topicSubs := ps.subscribers[topic]
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	ps.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.send(message) {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions. Later publishes are dropped.
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	ps.shutdownMu.Unlock()

	close(ps.shutdown)

	ps.mu.Lock()
	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
}

// Channel returns the subscription's message channel
func (s *Subscription) Channel() <-chan any {
	return s.channel
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	if subs := s.ps.subscribers[s.topic]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}
	s.ps.mu.Unlock()

	s.close()
}

// send delivers without blocking. Sending on a closed channel is recovered
// because a subscription may close between the snapshot and the send.
func (s *Subscription) send(message any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case s.channel <- message:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
