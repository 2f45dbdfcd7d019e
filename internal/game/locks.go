package game

import (
	"context"
	"sync"
)

// playerLocks serializes work per player id. Waiting honours ctx.
type playerLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{slots: map[string]*lockSlot{}}
}

func (l *playerLocks) acquire(ctx context.Context, playerID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[playerID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[playerID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(playerID, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(playerID, slot)
		return nil, ctx.Err()
	}
}

func (l *playerLocks) release(playerID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, playerID)
	}
}
