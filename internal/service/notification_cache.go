package service

import (
	"sync"

	"github.com/tazhate/deadlinebot/internal/domain"
)

// NotificationCache remembers which event occurrences were already
// announced during this process lifetime. It never evicts; Clear resets it.
type NotificationCache struct {
	mu   sync.Mutex
	keys map[domain.NotificationKey]struct{}
}

func NewNotificationCache() *NotificationCache {
	return &NotificationCache{keys: make(map[domain.NotificationKey]struct{})}
}

func (c *NotificationCache) Contains(key domain.NotificationKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[key]
	return ok
}

func (c *NotificationCache) Insert(key domain.NotificationKey) {
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *NotificationCache) Clear() {
	c.mu.Lock()
	c.keys = make(map[domain.NotificationKey]struct{})
	c.mu.Unlock()
}

func (c *NotificationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
