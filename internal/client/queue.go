package client

import (
	"sync"

	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// queue is an unbounded FIFO of inbound messages shared by one worker and the
// host goroutine.
type queue struct {
	mu    sync.Mutex
	items []protocol.Message
}

func (q *queue) push(m protocol.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, m)
}

func (q *queue) pop() (protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return protocol.Message{}, false
	}
	m := q.items[0]
	q.items[0] = protocol.Message{}
	q.items = q.items[1:]
	return m, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
