// internal/channel/memory_test.go
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collector records delivered messages for assertions.
type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) handle(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

// ownedCount reports how many partitions of group are currently owned by a running member.
func ownedCount(l *MemoryLog, group string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[group]
	if !ok {
		return 0
	}
	n := 0
	for _, owned := range g.owned {
		if owned {
			n++
		}
	}
	return n
}

func (c *collector) snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

func TestMemoryLogPartitioning(t *testing.T) {
	log := NewMemoryLog("purchases", 8)
	defer log.Close()

	t.Run("SameKeySamePartition", func(t *testing.T) {
		assert.Equal(t, log.PartitionFor("alice"), log.PartitionFor("alice"))
	})

	t.Run("PublishAppendsToKeyPartition", func(t *testing.T) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, log.Publish(ctx, "bob", []byte(fmt.Sprintf("m%d", i))))
		}
		msgs := log.Messages(log.PartitionFor("bob"))
		require.Len(t, msgs, 3)
		for i, m := range msgs {
			assert.Equal(t, "bob", m.Key)
			assert.Equal(t, int64(i), m.Offset)
			assert.Equal(t, "purchases", m.Topic)
		}
	})
}

func TestMemoryLogConsume(t *testing.T) {
	t.Run("PerKeyOrderPreserved", func(t *testing.T) {
		log := NewMemoryLog("purchases", 4)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var got collector
		go func() { _ = log.Consumer("fulfillment", discardLogger()).Consume(ctx, got.handle) }()

		for i := 0; i < 20; i++ {
			key := []string{"alice", "bob"}[i%2]
			require.NoError(t, log.Publish(ctx, key, []byte(fmt.Sprintf("%s-%02d", key, i))))
		}

		require.Eventually(t, func() bool { return len(got.snapshot()) == 20 }, 2*time.Second, 5*time.Millisecond)

		perKey := map[string][]string{}
		for _, m := range got.snapshot() {
			perKey[m.Key] = append(perKey[m.Key], string(m.Value))
		}
		assert.Equal(t, []string{"alice-00", "alice-02", "alice-04", "alice-06", "alice-08", "alice-10", "alice-12", "alice-14", "alice-16", "alice-18"}, perKey["alice"])
		assert.Equal(t, []string{"bob-01", "bob-03", "bob-05", "bob-07", "bob-09", "bob-11", "bob-13", "bob-15", "bob-17", "bob-19"}, perKey["bob"])
	})

	t.Run("OneDeliveryPerGroup", func(t *testing.T) {
		log := NewMemoryLog("purchases", 2)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var first, second collector
		go func() { _ = log.Consumer("fulfillment", discardLogger()).Consume(ctx, first.handle) }()
		require.Eventually(t, func() bool { return ownedCount(log, "fulfillment") == 2 }, time.Second, 5*time.Millisecond)
		go func() { _ = log.Consumer("fulfillment", discardLogger()).Consume(ctx, second.handle) }()

		for i := 0; i < 10; i++ {
			require.NoError(t, log.Publish(ctx, fmt.Sprintf("user-%d", i), []byte("x")))
		}

		require.Eventually(t, func() bool { return len(first.snapshot())+len(second.snapshot()) == 10 }, 2*time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, first.snapshot(), 10)
		assert.Empty(t, second.snapshot())
	})

	t.Run("EveryGroupSeesEveryMessage", func(t *testing.T) {
		log := NewMemoryLog("purchases", 2)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var a, b collector
		go func() { _ = log.Consumer("group-a", discardLogger()).Consume(ctx, a.handle) }()
		go func() { _ = log.Consumer("group-b", discardLogger()).Consume(ctx, b.handle) }()

		for i := 0; i < 5; i++ {
			require.NoError(t, log.Publish(ctx, "carol", []byte("x")))
		}
		require.Eventually(t, func() bool { return len(a.snapshot()) == 5 && len(b.snapshot()) == 5 }, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("HandlerErrorStillCommits", func(t *testing.T) {
		log := NewMemoryLog("purchases", 1)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := make(chan struct{}, 4)
		go func() {
			_ = log.Consumer("fulfillment", discardLogger()).Consume(ctx, func(context.Context, Message) error {
				calls <- struct{}{}
				return errors.New("store unreachable")
			})
		}()

		require.NoError(t, log.Publish(ctx, "dave", []byte("x")))
		require.Eventually(t, func() bool { return log.Committed("fulfillment", 0) == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.Len(t, calls, 1)
	})

	t.Run("UncommittedMessageRedelivered", func(t *testing.T) {
		log := NewMemoryLog("purchases", 1)
		defer log.Close()
		ctx := context.Background()

		entered := make(chan struct{})
		crashCtx, crash := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- log.Consumer("fulfillment", discardLogger()).Consume(crashCtx, func(ctx context.Context, _ Message) error {
				close(entered)
				<-ctx.Done()
				return ctx.Err()
			})
		}()

		require.NoError(t, log.Publish(ctx, "erin", []byte("intent")))
		<-entered
		crash()
		assert.ErrorIs(t, <-done, context.Canceled)
		assert.Equal(t, int64(0), log.Committed("fulfillment", 0))

		restartCtx, stop := context.WithCancel(ctx)
		defer stop()
		var got collector
		go func() { _ = log.Consumer("fulfillment", discardLogger()).Consume(restartCtx, got.handle) }()

		require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, "intent", string(got.snapshot()[0].Value))
	})

	t.Run("CloseStopsConsumers", func(t *testing.T) {
		log := NewMemoryLog("purchases", 1)
		done := make(chan error, 1)
		go func() {
			done <- log.Consumer("fulfillment", discardLogger()).Consume(context.Background(), func(context.Context, Message) error { return nil })
		}()

		require.NoError(t, log.Close())
		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop after Close")
		}
		assert.ErrorIs(t, log.Publish(context.Background(), "frank", []byte("x")), ErrClosed)
		assert.ErrorIs(t, log.Ping(context.Background()), ErrClosed)
	})

	t.Run("ConsumerCloseReleasesPartitions", func(t *testing.T) {
		log := NewMemoryLog("purchases", 1)
		defer log.Close()

		c := log.Consumer("fulfillment", discardLogger())
		done := make(chan error, 1)
		go func() { done <- c.Consume(context.Background(), func(context.Context, Message) error { return nil }) }()

		require.Eventually(t, func() bool { return ownedCount(log, "fulfillment") == 1 }, time.Second, 5*time.Millisecond)
		require.NoError(t, c.Close())
		require.NoError(t, <-done)
		assert.Equal(t, 0, ownedCount(log, "fulfillment"))
	})

	t.Run("IdleMemberTakesOverReleasedPartitions", func(t *testing.T) {
		log := NewMemoryLog("purchases", 2)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		owner := log.Consumer("fulfillment", discardLogger())
		ownerDone := make(chan error, 1)
		go func() { ownerDone <- owner.Consume(ctx, func(context.Context, Message) error { return nil }) }()
		require.Eventually(t, func() bool { return ownedCount(log, "fulfillment") == 2 }, time.Second, 5*time.Millisecond)

		var standby collector
		go func() { _ = log.Consumer("fulfillment", discardLogger()).Consume(ctx, standby.handle) }()

		require.NoError(t, owner.Close())
		require.NoError(t, <-ownerDone)
		require.Eventually(t, func() bool { return ownedCount(log, "fulfillment") == 2 }, time.Second, 5*time.Millisecond)

		require.NoError(t, log.Publish(ctx, "grace", []byte("after-handover")))
		require.Eventually(t, func() bool { return len(standby.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, "after-handover", string(standby.snapshot()[0].Value))
	})

	t.Run("ConsumerPingFollowsLog", func(t *testing.T) {
		log := NewMemoryLog("purchases", 1)
		c := log.Consumer("fulfillment", discardLogger())

		assert.NoError(t, c.Ping(context.Background()))
		require.NoError(t, log.Close())
		assert.ErrorIs(t, c.Ping(context.Background()), ErrClosed)
	})
}
