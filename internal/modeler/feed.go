package modeler

import (
	"sync"

	"gihan9a/positionmodeler/internal/utils"

	"github.com/golang/glog"
)

// ChangeKind says what happened to the collection
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Replaced ChangeKind = "replaced"
	Patched  ChangeKind = "patched"
	Deleted  ChangeKind = "deleted"
	// External changes were made to the store by something other than this service
	External ChangeKind = "external"
)

// Change is published after every committed mutation
type Change struct {
	Kind ChangeKind
	IDs  []string
}

const feedBuffer = 64

// Feed fans changes out to subscribers. Publish never blocks: a subscriber
// that falls behind misses changes and should re-read the collection.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]chan Change
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]chan Change)}
}

// Subscribe returns a change channel and a function that closes it
func (f *Feed) Subscribe() (<-chan Change, func()) {
	id := utils.NewID()
	ch := make(chan Change, feedBuffer)

	f.mu.Lock()
	f.subscribers[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) Publish(change Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for id, ch := range f.subscribers {
		select {
		case ch <- change:
		default:
			glog.Warningf("Change feed subscriber %s is full, dropping %s change", id, change.Kind)
		}
	}
}
