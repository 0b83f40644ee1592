// Package storage is the optional delivery audit trail. It records what the
// pipeline did (routed, flushed, decided, receipted) outside the state
// document, so operators can inspect activity without parsing bot state.
package storage

import (
	"context"
	"errors"
	"strings"

	logx "gatebot/pkg/logx"
)

// Store is the minimal audit API used by intake and moderation.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) if auditing
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown audit driver: " + driver)
	}
}
