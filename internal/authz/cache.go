// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package authz

import (
	"strings"
	"sync"
	"time"
)

// enforcementCache caches authorization decisions.
type enforcementCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]*cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	allowed   bool
	expiresAt time.Time
}

// keySep separates key parts; subjects and objects never contain it.
const keySep = "\x1f"

// newEnforcementCache creates a new cache.
func newEnforcementCache(ttl time.Duration) *enforcementCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &enforcementCache{
		ttl:      ttl,
		items:    make(map[string]*cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *enforcementCache) key(subject, object, action string) string {
	return subject + keySep + object + keySep + action
}

// get retrieves a cached decision.
func (c *enforcementCache) get(subject, object, action string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[c.key(subject, object, action)]
	if !ok {
		return false, false
	}
	if time.Now().After(item.expiresAt) {
		return false, false
	}
	return item.allowed, true
}

// set stores a decision in the cache.
func (c *enforcementCache) set(subject, object, action string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[c.key(subject, object, action)] = &cacheItem{
		allowed:   allowed,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidateSubject removes all cached decisions for a subject. Used when
// group membership changes, where every object the subject touches may
// resolve differently.
func (c *enforcementCache) invalidateSubject(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := subject + keySep
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

// invalidateObject removes all cached decisions about an object,
// regardless of subject. Used when the object's ACL changes.
func (c *enforcementCache) invalidateObject(object string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infix := keySep + object + keySep
	for k := range c.items {
		if strings.Contains(k, infix) {
			delete(c.items, k)
		}
	}
}

// clear empties the cache.
func (c *enforcementCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
}

// cleanup periodically evicts expired entries.
func (c *enforcementCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop halts the cleanup goroutine.
func (c *enforcementCache) stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}
