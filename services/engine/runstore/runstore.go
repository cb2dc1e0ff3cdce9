// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runstore persists selection run reports in BadgerDB.
//
// Reports are inspection artifacts: serve mode stores each run so past
// selections can be listed and fetched, but a stored report is never
// an input to later analysis — every run computes its graph fresh.
//
// Keys are "run/<started-at-milli %016d>/<run-id>", so lexicographic
// order is chronological and a reverse scan lists newest first. A
// secondary "id/<run-id>" key points at the primary key for O(1)
// lookup by run ID.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/selector"
)

const (
	runKeyPrefix = "run/"
	idKeyPrefix  = "id/"
)

// Config holds configuration for a run store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTL expires stored reports after this duration. 0 keeps them
	// until the database is deleted.
	TTL time.Duration

	// Logger receives BadgerDB's internal log output. If nil,
	// BadgerDB's logging is disabled.
	Logger *logging.Logger
}

// DefaultConfig returns production defaults: durable writes, 30-day
// report retention.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		TTL:        30 * 24 * time.Hour,
	}
}

// InMemoryConfig returns configuration for tests: no disk I/O, no TTL.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts logging.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	log *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Store persists run reports.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens a run store with the given configuration.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	return &Store{db: db, ttl: cfg.TTL}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a report under its run ID and start timestamp.
func (s *Store) Put(ctx context.Context, report *selector.Report) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if report == nil || report.RunID == "" {
		return ErrInvalidReport
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}

	primary := runKey(report.StartedAtMilli, report.RunID)
	index := idKey(report.RunID)

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := s.set(txn, primary, data); err != nil {
		return fmt.Errorf("write report %s: %w", report.RunID, err)
	}
	if err := s.set(txn, index, primary); err != nil {
		return fmt.Errorf("write report index %s: %w", report.RunID, err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit report %s: %w", report.RunID, err)
	}
	return nil
}

// set writes one key, applying the store TTL when configured.
func (s *Store) set(txn *badger.Txn, key, val []byte) error {
	if s.ttl > 0 {
		return txn.SetEntry(badger.NewEntry(key, val).WithTTL(s.ttl))
	}
	return txn.Set(key, val)
}

// Get fetches a report by run ID.
//
// Outputs:
//
//	*selector.Report - The stored report.
//	error            - ErrNotFound when the ID is unknown or expired.
func (s *Store) Get(ctx context.Context, runID string) (*selector.Report, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, ErrNotFound
	}

	var report *selector.Report
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(runID))
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			report = &selector.Report{}
			return json.Unmarshal(val, report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", runID, err)
	}
	return report, nil
}

// List returns stored reports, newest first.
//
// Inputs:
//
//	ctx   - Context for cancellation.
//	limit - Maximum reports to return; <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*selector.Report, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	reports := []*selector.Report{}
	prefix := []byte(runKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if limit > 0 && len(reports) >= limit {
				return nil
			}

			err := it.Item().Value(func(val []byte) error {
				r := &selector.Report{}
				if err := json.Unmarshal(val, r); err != nil {
					// Skip undecodable entries rather than failing
					// the whole listing.
					return nil
				}
				reports = append(reports, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func runKey(startedAtMilli int64, runID string) []byte {
	return []byte(fmt.Sprintf("%s%016d/%s", runKeyPrefix, startedAtMilli, runID))
}

func idKey(runID string) []byte {
	return []byte(idKeyPrefix + runID)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}
