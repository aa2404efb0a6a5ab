package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Discovera/internal/models"
)

func TestCaseEvents_DeliversToSubscriber(t *testing.T) {
	emitter := NewCaseEvents()
	ch, cancel := emitter.Subscribe("case-1")
	defer cancel()

	emitter.Emit("case-1", models.Event{Type: models.EventStarted, Data: map[string]any{"processing_id": "p1"}})

	select {
	case ev := <-ch:
		assert.Equal(t, models.EventStarted, ev.Type)
		assert.Equal(t, "p1", ev.Data["processing_id"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestCaseEvents_CaseScoped(t *testing.T) {
	emitter := NewCaseEvents()
	ch, cancel := emitter.Subscribe("case-1")
	defer cancel()

	emitter.Emit("case-2", models.Event{Type: models.EventStored})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected cross-case event: %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCaseEvents_MultipleSubscribers(t *testing.T) {
	emitter := NewCaseEvents()
	ch1, cancel1 := emitter.Subscribe("case-1")
	defer cancel1()
	ch2, cancel2 := emitter.Subscribe("case-1")
	defer cancel2()

	emitter.Emit("case-1", models.Event{Type: models.EventChunking})

	for i, ch := range []<-chan models.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, models.EventChunking, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d missed the event", i)
		}
	}
}

func TestCaseEvents_CancelClosesChannel(t *testing.T) {
	emitter := NewCaseEvents()
	ch, cancel := emitter.Subscribe("case-1")

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Emitting after cancel must not panic or block.
	emitter.Emit("case-1", models.Event{Type: models.EventStored})

	// Cancel is idempotent.
	cancel()
}

func TestCaseEvents_SlowSubscriberDoesNotBlockEmit(t *testing.T) {
	emitter := NewCaseEvents()
	_, cancel := emitter.Subscribe("case-1")
	defer cancel()

	// Nobody drains; the buffer fills and further emits drop rather than
	// stalling the pipeline.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			emitter.Emit("case-1", models.Event{Type: models.EventFactExtracted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a slow subscriber")
	}
}

func TestCaseEvents_BufferedBacklogStillReadable(t *testing.T) {
	emitter := NewCaseEvents()
	ch, cancel := emitter.Subscribe("case-1")
	defer cancel()

	for i := 0; i < 5; i++ {
		emitter.Emit("case-1", models.Event{Type: models.EventDocumentFound, Data: map[string]any{"i": i}})
	}

	for i := 0; i < 5; i++ {
		select {
		case ev := <-ch:
			require.Equal(t, models.EventDocumentFound, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing buffered event %d", i)
		}
	}
}
