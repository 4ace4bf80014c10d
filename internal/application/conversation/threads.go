package conversation

import (
	"sync"

	"github.com/google/uuid"

	conv "github.com/bryanwahyu/scan-insight/internal/domain/conversation"
)

// Threads keeps one State per conversation thread. Turns on the same thread are
// serialised; different threads run concurrently.
type Threads struct {
	mu    sync.Mutex
	items map[string]*thread
}

type thread struct {
	mu    sync.Mutex
	state *conv.State
}

func NewThreads() *Threads {
	return &Threads{items: map[string]*thread{}}
}

// Create starts a thread and returns its id.
func (t *Threads) Create() string {
	id := uuid.NewString()
	t.mu.Lock()
	t.items[id] = &thread{state: conv.NewState(id)}
	t.mu.Unlock()
	return id
}

// With runs fn with exclusive access to the thread's state.
// It returns false when the thread does not exist.
func (t *Threads) With(id string, fn func(st *conv.State)) bool {
	t.mu.Lock()
	th, ok := t.items[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	th.mu.Lock()
	defer th.mu.Unlock()
	fn(th.state)
	return true
}

// Delete drops a thread.
func (t *Threads) Delete(id string) {
	t.mu.Lock()
	delete(t.items, id)
	t.mu.Unlock()
}
