package relay

import (
	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/protocol"
)

type TaskKind int

const (
	TaskSubscribe TaskKind = iota
	TaskUnsubscribe
)

type Task struct {
	SubID   string
	Kind    TaskKind
	Filters []nostr.Filter
}

// QueuedTasks holds pending subscribe/unsubscribe operations while the
// relay is not Connected. At most one task per sub id: a Subscribe over a
// queued Unsubscribe (or vice versa) replaces it in place, except that an
// Unsubscribe over a queued Subscribe cancels the pair entirely, so that
// only the final desired state is replayed on connect.
type QueuedTasks struct {
	order []string
	tasks map[string]Task
}

func NewQueuedTasks() *QueuedTasks {
	return &QueuedTasks{tasks: make(map[string]Task)}
}

func (q *QueuedTasks) Subscribe(id string, filters []nostr.Filter) {
	if _, ok := q.tasks[id]; !ok {
		q.order = append(q.order, id)
	}
	q.tasks[id] = Task{SubID: id, Kind: TaskSubscribe, Filters: filters}
}

func (q *QueuedTasks) Unsubscribe(id string) {
	if t, ok := q.tasks[id]; ok {
		if t.Kind == TaskSubscribe {
			// Never subscribed on the wire; nothing to undo.
			q.remove(id)
		}
		return
	}
	q.order = append(q.order, id)
	q.tasks[id] = Task{SubID: id, Kind: TaskUnsubscribe}
}

func (q *QueuedTasks) remove(id string) {
	delete(q.tasks, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

// Drain returns the pending tasks in insertion order and empties the set.
func (q *QueuedTasks) Drain() []Task {
	out := make([]Task, 0, len(q.tasks))
	for _, id := range q.order {
		if t, ok := q.tasks[id]; ok {
			out = append(out, t)
		}
	}
	q.order = q.order[:0]
	q.tasks = make(map[string]Task)
	return out
}

func (q *QueuedTasks) Len() int { return len(q.tasks) }

// OutQueue buffers raw client frames while the relay is not Connected.
// Droppable frames (outgoing publishes) are bounded by a high-water mark;
// when a new one would exceed it, the oldest droppable frame is shed.
// REQ and CLOSE are never shed because subscription state depends on them.
type OutQueue struct {
	frames    []protocol.ClientFrame
	highWater int
}

func NewOutQueue(highWater int) *OutQueue {
	return &OutQueue{highWater: highWater}
}

// Push appends a frame and returns the frame that was shed to make room,
// if any.
func (q *OutQueue) Push(f protocol.ClientFrame) protocol.ClientFrame {
	var shed protocol.ClientFrame
	if f.Droppable() && q.highWater > 0 && q.droppable() >= q.highWater {
		shed = q.dropOldestDroppable()
	}
	q.frames = append(q.frames, f)
	return shed
}

func (q *OutQueue) droppable() int {
	n := 0
	for _, f := range q.frames {
		if f.Droppable() {
			n++
		}
	}
	return n
}

func (q *OutQueue) dropOldestDroppable() protocol.ClientFrame {
	for i, f := range q.frames {
		if f.Droppable() {
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			return f
		}
	}
	return nil
}

// Drain returns the buffered frames in FIFO order and empties the queue.
func (q *OutQueue) Drain() []protocol.ClientFrame {
	out := q.frames
	q.frames = nil
	return out
}

func (q *OutQueue) Len() int { return len(q.frames) }
