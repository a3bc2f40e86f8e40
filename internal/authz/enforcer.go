// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package authz provides object-level authorization using Casbin.
// Every record, archive, comment and tag box carries its own ACL;
// per-archive moderator groups inherit moderation rights over the
// archive's records.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath overrides the embedded model when set and present.
	ModelPath string

	// PolicyPath is the CSV file policies persist to. When empty the
	// policy lives only in memory and must be rebuilt from the database
	// on startup.
	PolicyPath string

	// AutoReload enables periodic policy reload from PolicyPath.
	AutoReload bool

	// ReloadInterval is how often to check for policy changes.
	ReloadInterval time.Duration

	// CacheEnabled enables enforcement decision caching.
	CacheEnabled bool

	// CacheTTL is how long to cache decisions.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		AutoReload:     false,
		ReloadInterval: 30 * time.Second,
		CacheEnabled:   true,
		CacheTTL:       time.Minute,
	}
}

// Enforcer wraps the Casbin enforcer with decision caching.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer creates the authorization enforcer.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" {
		adapter := fileadapter.NewAdapter(config.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if config.AutoReload && config.PolicyPath != "" {
		enforcer.StartAutoLoadPolicy(config.ReloadInterval)
	}

	e := &Enforcer{config: config, enforcer: enforcer}
	if config.CacheEnabled {
		e.cache = newEnforcementCache(config.CacheTTL)
	}
	return e, nil
}

// Enforce checks whether the subject can perform the action on the object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}
	return allowed, nil
}

// AddPolicy grants the subject the action on the object.
func (e *Enforcer) AddPolicy(subject, object, action string) error {
	if _, err := e.enforcer.AddPolicy(subject, object, action); err != nil {
		return fmt.Errorf("add policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateObject(object)
	}
	return nil
}

// RemovePolicy revokes the subject's action on the object.
func (e *Enforcer) RemovePolicy(subject, object, action string) error {
	if _, err := e.enforcer.RemovePolicy(subject, object, action); err != nil {
		return fmt.Errorf("remove policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateObject(object)
	}
	return nil
}

// RemoveObjectPolicies drops every grant on the object, for use when the
// object itself is deleted.
func (e *Enforcer) RemoveObjectPolicies(object string) error {
	if _, err := e.enforcer.RemoveFilteredPolicy(1, object); err != nil {
		return fmt.Errorf("remove object policies: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateObject(object)
	}
	return nil
}

// AddGroupingPolicy puts the subject into the group.
func (e *Enforcer) AddGroupingPolicy(subject, group string) error {
	if _, err := e.enforcer.AddGroupingPolicy(subject, group); err != nil {
		return fmt.Errorf("add grouping policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateSubject(subject)
	}
	return nil
}

// RemoveGroupingPolicy takes the subject out of the group.
func (e *Enforcer) RemoveGroupingPolicy(subject, group string) error {
	if _, err := e.enforcer.RemoveGroupingPolicy(subject, group); err != nil {
		return fmt.Errorf("remove grouping policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateSubject(subject)
	}
	return nil
}

// GetUsersForRole returns the members of a group.
func (e *Enforcer) GetUsersForRole(role string) ([]string, error) {
	return e.enforcer.GetUsersForRole(role)
}

// SavePolicy persists the policy when a file adapter is configured.
func (e *Enforcer) SavePolicy() error {
	if e.config.PolicyPath == "" {
		return nil
	}
	return e.enforcer.SavePolicy()
}

// Close stops background work.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
