package supervisor

import "sync"

// CleanShutdown coordinates a graceful stop: once requested, no new rooms
// are opened, and the process can wait for the rooms already open to end.
type CleanShutdown struct {
	mu        sync.Mutex
	requested bool
	blockNew  bool
	openRooms map[string]struct{}
	drained   chan struct{}
}

func NewCleanShutdown() *CleanShutdown {
	return &CleanShutdown{
		openRooms: map[string]struct{}{},
		drained:   make(chan struct{}),
	}
}

// Request begins a clean shutdown. With blockNew, the bot stops handling
// even rooms opened by others; otherwise it keeps attaching to existing
// activity until the last open room closes. The returned channel closes
// when every open room has ended.
func (c *CleanShutdown) Request(blockNew bool) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = true
	c.blockNew = blockNew
	c.maybeDrainLocked()
	return c.drained
}

// ShouldHandleNew reports whether a newly seen room may be picked up.
func (c *CleanShutdown) ShouldHandleNew() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.requested {
		return true
	}
	return !c.blockNew && len(c.openRooms) > 0
}

func (c *CleanShutdown) RoomOpened(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openRooms[name] = struct{}{}
}

func (c *CleanShutdown) RoomClosed(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.openRooms, name)
	c.maybeDrainLocked()
}

func (c *CleanShutdown) maybeDrainLocked() {
	if c.requested && len(c.openRooms) == 0 {
		select {
		case <-c.drained:
		default:
			close(c.drained)
		}
	}
}

// OpenRooms lists the rooms currently being handled.
func (c *CleanShutdown) OpenRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.openRooms))
	for name := range c.openRooms {
		rooms = append(rooms, name)
	}
	return rooms
}
