// internal/channel/memory.go
package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MemoryLog is an in-process partitioned log with consumer-group semantics:
// each partition of a group is owned by at most one consumer at a time and
// uncommitted messages are redelivered to the partition's next owner.
// Keys are partitioned with the same hash the Kafka driver uses.
type MemoryLog struct {
	topic    string
	balancer *kafka.Hash

	mu         sync.Mutex
	partitions [][]Message
	groups     map[string]*memoryGroup
	wake       chan struct{} // closed and replaced on every publish
	released   chan struct{} // closed and replaced whenever a member gives up partitions
	done       chan struct{}
	closed     bool
}

type memoryGroup struct {
	next  []int64 // next offset to deliver, per partition
	owned []bool
}

// NewMemoryLog creates a log for topic with the given number of partitions (minimum 1).
func NewMemoryLog(topic string, partitions int) *MemoryLog {
	if partitions < 1 {
		partitions = 1
	}
	return &MemoryLog{
		topic:      topic,
		balancer:   &kafka.Hash{},
		partitions: make([][]Message, partitions),
		groups:     make(map[string]*memoryGroup),
		wake:       make(chan struct{}),
		released:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// PartitionFor returns the partition a key is routed to.
func (l *MemoryLog) PartitionFor(key string) int {
	ids := make([]int, len(l.partitions))
	for i := range ids {
		ids[i] = i
	}
	return l.balancer.Balance(kafka.Message{Key: []byte(key)}, ids...)
}

// Publish appends the message to its key's partition and wakes consumers.
func (l *MemoryLog) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := l.PartitionFor(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	msg := Message{
		Topic:     l.topic,
		Partition: p,
		Offset:    int64(len(l.partitions[p])),
		Key:       key,
		Value:     append([]byte(nil), value...),
		Time:      time.Now().UTC(),
	}
	l.partitions[p] = append(l.partitions[p], msg)
	close(l.wake)
	l.wake = make(chan struct{})
	return nil
}

// Ping fails only once the log is closed.
func (l *MemoryLog) Ping(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close stops every running consumer and rejects further publishes.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
	return nil
}

// Messages returns a copy of everything published to partition p.
func (l *MemoryLog) Messages(p int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.partitions[p]...)
}

// Committed returns the next offset group will receive on partition p.
func (l *MemoryLog) Committed(group string, p int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[group]
	if !ok {
		return 0
	}
	return g.next[p]
}

// Consumer returns a member of group. A running member claims every partition
// nobody in the group owns, including those other members release later.
func (l *MemoryLog) Consumer(group string, logger *slog.Logger) Consumer {
	return &memoryConsumer{log: l, group: group, logger: logger, stop: make(chan struct{})}
}

func (l *MemoryLog) groupLocked(name string) *memoryGroup {
	g, ok := l.groups[name]
	if !ok {
		g = &memoryGroup{
			next:  make([]int64, len(l.partitions)),
			owned: make([]bool, len(l.partitions)),
		}
		l.groups[name] = g
	}
	return g
}

// claim takes the unowned partitions of group. The returned channel is closed
// on the next release, when there may be more to take.
func (l *MemoryLog) claim(group string) ([]int, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.groupLocked(group)
	var claimed []int
	for p := range g.owned {
		if !g.owned[p] {
			g.owned[p] = true
			claimed = append(claimed, p)
		}
	}
	return claimed, l.released
}

func (l *MemoryLog) release(group string, partitions []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.groupLocked(group)
	for _, p := range partitions {
		g.owned[p] = false
	}
	if len(partitions) > 0 {
		close(l.released)
		l.released = make(chan struct{})
	}
}

// next returns the next undelivered message, or a channel that is closed when one may be available.
func (l *MemoryLog) next(group string, p int) (Message, <-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.groupLocked(group)
	if g.next[p] < int64(len(l.partitions[p])) {
		return l.partitions[p][g.next[p]], nil, true
	}
	return Message{}, l.wake, false
}

func (l *MemoryLog) commit(group string, p int, offset int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.groupLocked(group)
	if offset > g.next[p] {
		g.next[p] = offset
	}
}

type memoryConsumer struct {
	log    *MemoryLog
	group  string
	logger *slog.Logger

	once sync.Once
	stop chan struct{}
}

// Consume runs one goroutine per claimed partition, each delivering in offset order.
// Partitions released by other members of the group are picked up while it runs.
func (c *memoryConsumer) Consume(ctx context.Context, handler Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
		case <-c.log.done:
		case <-ctx.Done():
		}
		cancel()
	}()

	var (
		wg    sync.WaitGroup
		owned []int
	)
claim:
	for {
		claimed, released := c.log.claim(c.group)
		for _, p := range claimed {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				c.deliver(ctx, p, handler)
			}(p)
		}
		owned = append(owned, claimed...)

		select {
		case <-released:
		case <-ctx.Done():
			break claim
		}
	}
	wg.Wait()
	c.log.release(c.group, owned)

	select {
	case <-c.stop:
		return nil
	case <-c.log.done:
		return ErrClosed
	default:
		return ctx.Err()
	}
}

func (c *memoryConsumer) deliver(ctx context.Context, p int, handler Handler) {
	for {
		msg, wake, ok := c.log.next(c.group, p)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				continue
			}
		}

		if err := handler(ctx, msg); err != nil {
			c.logger.Error("Message handler failed",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", msg.Key, "error", err)
		}
		if ctx.Err() != nil {
			return // not committed: the next owner sees this message again
		}
		c.log.commit(c.group, p, msg.Offset+1)
	}
}

// Ping fails once the underlying log is closed.
func (c *memoryConsumer) Ping(ctx context.Context) error {
	return c.log.Ping(ctx)
}

// Close stops Consume; the claimed partitions are released for other members.
func (c *memoryConsumer) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
