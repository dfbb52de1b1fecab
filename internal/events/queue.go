package events

import "sync"

// Queue is an in-memory Source. Writes append bytes; Read never blocks.
// It stands in for a FIFO in replays and dry runs.
type Queue struct {
	mu  sync.Mutex
	buf []byte
}

// Push appends raw bytes, typically one or more protocol lines.
func (q *Queue) Push(s string) {
	q.mu.Lock()
	q.buf = append(q.buf, s...)
	q.mu.Unlock()
}

// Write implements io.Writer.
func (q *Queue) Write(p []byte) (int, error) {
	q.mu.Lock()
	q.buf = append(q.buf, p...)
	q.mu.Unlock()
	return len(p), nil
}

func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return 0, ErrNoData
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n, nil
}

// Len returns the number of unread bytes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
