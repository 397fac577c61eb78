package eventqueue

import (
	"testing"

	"github.com/cwbudde/algo-garden/dsp/signal"
)

func ev(frame uint32, pitch uint8) signal.MidiEvent {
	return signal.MidiEvent{Frame: frame, Message: signal.NoteOnMessage(0, pitch, 100)}
}

func TestTryPushBounded(t *testing.T) {
	q := New(2)

	if !q.TryPush(ev(0, 60)) || !q.TryPush(ev(1, 61)) {
		t.Fatal("pushes within capacity must succeed")
	}

	if q.TryPush(ev(2, 62)) {
		t.Fatal("push into a full queue must fail")
	}

	if q.Len() != 2 || q.Dropped() != 1 {
		t.Fatalf("len=%d dropped=%d, want 2/1", q.Len(), q.Dropped())
	}

	if q.Capacity() != 2 {
		t.Fatalf("capacity = %d, want 2", q.Capacity())
	}
}

func TestTryPushDropsUnderContention(t *testing.T) {
	q := New(4)

	q.mu.Lock()
	ok := q.TryPush(ev(0, 60))
	q.mu.Unlock()

	if ok {
		t.Fatal("push while locked must be dropped")
	}

	if q.Len() != 0 || q.Dropped() != 1 {
		t.Fatalf("len=%d dropped=%d, want 0/1", q.Len(), q.Dropped())
	}
}

func TestTryDrain(t *testing.T) {
	q := New(8)
	q.TryPush(ev(3, 60))
	q.TryPush(ev(1, 61))

	dst := signal.NewMidiBuffer(8)
	if !q.TryDrain(dst) {
		t.Fatal("drain of an unlocked queue must succeed")
	}

	if len(dst.Events) != 2 || q.Len() != 0 {
		t.Fatalf("drained=%d remaining=%d", len(dst.Events), q.Len())
	}

	// Drain preserves arrival order; sorting is the consumer's job.
	if dst.Events[0].Frame != 3 || dst.Events[1].Frame != 1 {
		t.Fatalf("unexpected order: %+v", dst.Events)
	}
}

func TestTryDrainSkipsUnderContention(t *testing.T) {
	q := New(8)
	q.TryPush(ev(0, 60))

	dst := signal.NewMidiBuffer(8)

	q.mu.Lock()
	ok := q.TryDrain(dst)
	q.mu.Unlock()

	if ok {
		t.Fatal("drain while locked must report false")
	}

	if len(dst.Events) != 0 || q.Len() != 1 {
		t.Fatalf("drained=%d remaining=%d, want 0/1", len(dst.Events), q.Len())
	}
}

func TestTryReplace(t *testing.T) {
	q := New(2)
	q.TryPush(ev(9, 1))

	if !q.TryReplace([]signal.MidiEvent{ev(0, 60), ev(1, 61), ev(2, 62)}) {
		t.Fatal("replace must succeed when unlocked")
	}

	got := q.Snapshot()
	if len(got) != 2 || got[0].Frame != 0 || got[1].Frame != 1 {
		t.Fatalf("snapshot = %+v", got)
	}

	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}

	q.Clear()

	if q.Len() != 0 {
		t.Fatalf("len after clear = %d", q.Len())
	}
}
