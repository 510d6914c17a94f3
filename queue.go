package mipot

// indicationQueue is a bounded FIFO of raw indication frames observed
// while a command reply was pending. When full, new frames are dropped
// and the buffered ones kept.
type indicationQueue struct {
	frames []Frame
	limit  int
}

func newIndicationQueue(limit int) *indicationQueue {
	return &indicationQueue{limit: limit}
}

// push appends f, reporting false when the queue was full and f was
// dropped.
func (q *indicationQueue) push(f Frame) bool {
	if len(q.frames) >= q.limit {
		return false
	}
	q.frames = append(q.frames, f)
	return true
}

// pop removes and returns the oldest buffered frame.
func (q *indicationQueue) pop() (Frame, bool) {
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

func (q *indicationQueue) empty() bool { return len(q.frames) == 0 }
