package notify

import (
	"sync"

	"github.com/samber/lo"
)

// Recorder is a Notifier that keeps everything it receives. Components use it
// in tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Publish(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the notifications in publish order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Count returns how many notifications of category were published.
func (r *Recorder) Count(category Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(r.items, func(it Notification) bool {
		return it.Category == category
	})
}

// Reset forgets everything.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
