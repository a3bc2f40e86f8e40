// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package authz

import (
	"testing"
	"time"
)

func TestEnforcementCacheSetGet(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()

	if _, ok := c.get("user:a", "record:1", "view"); ok {
		t.Error("empty cache returned a hit")
	}

	c.set("user:a", "record:1", "view", true)
	allowed, ok := c.get("user:a", "record:1", "view")
	if !ok || !allowed {
		t.Errorf("get = (%v, %v), want cached allow", allowed, ok)
	}

	c.set("user:a", "record:2", "view", false)
	allowed, ok = c.get("user:a", "record:2", "view")
	if !ok || allowed {
		t.Errorf("get = (%v, %v), want cached deny", allowed, ok)
	}
}

func TestEnforcementCacheExpiry(t *testing.T) {
	c := newEnforcementCache(10 * time.Millisecond)
	defer c.stop()

	c.set("user:a", "record:1", "view", true)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.get("user:a", "record:1", "view"); ok {
		t.Error("expired entry still served")
	}
}

func TestEnforcementCacheInvalidateSubject(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()

	c.set("user:a", "record:1", "view", true)
	c.set("user:b", "record:1", "view", true)

	c.invalidateSubject("user:a")
	if _, ok := c.get("user:a", "record:1", "view"); ok {
		t.Error("invalidated subject still cached")
	}
	if _, ok := c.get("user:b", "record:1", "view"); !ok {
		t.Error("unrelated subject evicted")
	}
}

func TestEnforcementCacheInvalidateObject(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()

	c.set("user:a", "record:1", "view", true)
	c.set("user:b", "record:1", "delete", false)
	c.set("user:a", "record:2", "view", true)

	c.invalidateObject("record:1")
	if _, ok := c.get("user:a", "record:1", "view"); ok {
		t.Error("invalidated object still cached for user:a")
	}
	if _, ok := c.get("user:b", "record:1", "delete"); ok {
		t.Error("invalidated object still cached for user:b")
	}
	if _, ok := c.get("user:a", "record:2", "view"); !ok {
		t.Error("unrelated object evicted")
	}
}
