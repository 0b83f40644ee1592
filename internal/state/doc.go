// Package state owns the bot's single persisted document: moderation mode,
// pending decisions, per-user history, album buffers, the receipt ledger and
// the bumper config. The document is written atomically (temp file + rename)
// and compacted by lazy, time-gated retention passes that run on save.
package state
