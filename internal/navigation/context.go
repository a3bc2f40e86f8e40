// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package navigation tracks the ordered list of records a user last
// browsed, so the detail view can offer previous/next links and a
// sensible place to land after deleting the record being viewed.
package navigation

import (
	"github.com/google/uuid"
)

// Context is the ordered record id list captured when a user opens a
// gallery or search result page. It is a value type; the Store persists
// it per session.
type Context struct {
	IDs []uuid.UUID `json:"ids"`
}

// IndexOf returns the position of id, or -1 when absent.
func (c Context) IndexOf(id uuid.UUID) int {
	for i, v := range c.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// Adjacent returns the ids before and after the given record in browse
// order. Either may be nil at the ends, and both are nil when the record
// is not in the context at all.
func (c Context) Adjacent(id uuid.UUID) (prev, next *uuid.UUID) {
	i := c.IndexOf(id)
	if i < 0 {
		return nil, nil
	}
	if i > 0 {
		p := c.IDs[i-1]
		prev = &p
	}
	if i < len(c.IDs)-1 {
		n := c.IDs[i+1]
		next = &n
	}
	return prev, next
}

// PageOf returns the 1-based gallery page the record sits on, so the UI
// can link back to the right page. Records outside the context are on
// page 1.
func (c Context) PageOf(id uuid.UUID, pageSize int) int {
	i := c.IndexOf(id)
	if i < 0 || pageSize <= 0 {
		return 1
	}
	return i/pageSize + 1
}

// Remove deletes the record from the context and returns the record the
// user should land on afterwards: the one just before the removed entry
// in browse order, or nil when the removed record led the list (or was
// not present).
func (c *Context) Remove(id uuid.UUID) (returnTo *uuid.UUID) {
	i := c.IndexOf(id)
	if i < 0 {
		return nil
	}
	if i > 0 {
		prev := c.IDs[i-1]
		returnTo = &prev
	}
	c.IDs = append(c.IDs[:i], c.IDs[i+1:]...)
	return returnTo
}
