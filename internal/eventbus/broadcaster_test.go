package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndEmit(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	b.Start()
	defer b.Stop()

	ch := b.Subscribe("sub1", "", nil)
	b.Emit("migration_progress", map[string]any{"progress": 50}, "")

	select {
	case event := <-ch:
		assert.Equal(t, "migration_progress", event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestEmitFiltersByEventType(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	b.Start()
	defer b.Stop()

	ch := b.Subscribe("sub1", "", []string{"migration_completed"})
	b.Emit("migration_progress", "ignored", "")
	b.Emit("migration_completed", "relevant", "")

	select {
	case event := <-ch:
		assert.Equal(t, "migration_completed", event.Type)
		assert.Equal(t, "relevant", event.Data)
	case <-time.After(time.Second):
		t.Fatal("expected the filtered event")
	}

	select {
	case event := <-ch:
		t.Fatalf("unexpected second event: %+v", event)
	default:
	}
}

func TestEmitFiltersByUserID(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	b.Start()
	defer b.Stop()

	ch := b.Subscribe("sub1", "alice", nil)
	b.Emit("migration_progress", "for bob", "bob")
	b.Emit("migration_progress", "for alice", "alice")

	select {
	case event := <-ch:
		assert.Equal(t, "for alice", event.Data)
	case <-time.After(time.Second):
		t.Fatal("expected alice's event")
	}
}

func TestEmitBeforeStartIsNoOp(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	ch := b.Subscribe("sub1", "", nil)
	b.Emit("migration_progress", "dropped", "")

	select {
	case event := <-ch:
		t.Fatalf("unexpected event before Start: %+v", event)
	default:
	}
}

func TestEmitDropsOnFullBuffer(t *testing.T) {
	b := NewBroadcaster(nil, 1)
	b.Start()
	defer b.Stop()

	ch := b.Subscribe("sub1", "", nil)
	b.Emit("e1", "first", "")
	b.Emit("e2", "second", "") // buffer full, dropped silently

	event := <-ch
	assert.Equal(t, "first", event.Data)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	b.Start()
	defer b.Stop()

	ch := b.Subscribe("sub1", "", nil)
	require.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe("sub1")
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)
}

func TestStopClosesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	b.Start()

	ch1 := b.Subscribe("sub1", "", nil)
	ch2 := b.Subscribe("sub2", "", nil)
	b.Stop()

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)
}
