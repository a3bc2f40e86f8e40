// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package storage is the local-disk media store. Originals are written
// once under a content-hash sharded key and never rewritten; previews
// live under a parallel tree and may be replaced (blur, unblur,
// transcode retries).
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrTraversal is returned when a key would escape the storage root.
var ErrTraversal = errors.New("storage key escapes root")

// Store reads and writes media files under a single root directory.
type Store struct {
	root string
}

// New creates the store and its root directory.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// ContentHash returns the BLAKE2b-256 fingerprint of the data as hex.
// Used as the storage shard key and for upload deduplication.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// OriginalKey derives the storage key for an original file from its
// content hash and extension: originals/<aa>/<hash>.<ext>.
func OriginalKey(hash, ext string) string {
	return shardedKey("originals", hash, ext)
}

// PreviewKey derives the storage key for a record's preview derivative.
func PreviewKey(hash, ext string) string {
	return shardedKey("previews", hash, ext)
}

func shardedKey(prefix, hash, ext string) string {
	shard := "00"
	if len(hash) >= 2 {
		shard = hash[:2]
	}
	key := prefix + "/" + shard + "/" + hash
	if ext != "" {
		key += "." + strings.TrimPrefix(ext, ".")
	}
	return key
}

// path resolves a key inside the root, rejecting traversal.
func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q", ErrTraversal, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Write stores data under key, creating parent directories. The write is
// atomic: data lands in a temp file first and is renamed into place, so
// readers never observe a partial file.
func (s *Store) Write(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return fmt.Errorf("temp suffix: %w", err)
	}
	tmp := p + ".tmp-" + hex.EncodeToString(suffix[:])
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

// Read returns the full contents of key.
func (s *Store) Read(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Open returns a reader over key, for streaming responses.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Remove deletes key. Missing files are not an error, so record deletion
// stays idempotent.
func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// AbsPath returns the filesystem path for a key, for handing to external
// tools like ffmpeg.
func (s *Store) AbsPath(key string) (string, error) {
	return s.path(key)
}
