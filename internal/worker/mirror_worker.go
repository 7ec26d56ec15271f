// Package worker applies ledger events consumed from the broker to the
// spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/cache"
	"hisab/internal/log"
	"hisab/internal/sheets"
)

const (
	dedupSize = 10000
	dedupTTL  = time.Hour
)

// Stats counts what the worker did since it started.
type Stats struct {
	Mirrored   int64
	Duplicates int64
	Failed     int64
}

// MirrorWorker appends one sheet row per ledger event. Redelivered messages
// that were already mirrored are acknowledged without writing a second row.
type MirrorWorker struct {
	sheet  sheets.RowAppender
	header sheets.HeaderWriter
	seen   *cache.LRUCache[string]

	mirrored   atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64

	logger *log.Logger
}

// NewMirrorWorker creates a worker writing to sheet. header may be nil when
// the sheet has no title row to maintain.
func NewMirrorWorker(sheet sheets.RowAppender, header sheets.HeaderWriter) *MirrorWorker {
	return &MirrorWorker{
		sheet:  sheet,
		header: header,
		seen:   cache.NewLRUCache[string](dedupSize, dedupTTL),
		logger: log.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the dedup cache so it can join the cleanup cycle.
func (w *MirrorWorker) Seen() cache.Cleaner {
	return w.seen
}

// StartupCheck makes sure the sheet carries its header row before the first
// event is appended.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	if w.header == nil {
		return nil
	}
	if err := w.header.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("ensure sheet header: %w", err)
	}
	return nil
}

// HandleLedgerEvent mirrors a single ledger message. A returned error makes
// the consumer requeue the message.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerMessage) error {
	key := dedupKey(msg)
	if _, ok := w.seen.Get(key); ok {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Skipping already mirrored event",
			log.FieldEvent, string(msg.Type),
			log.FieldID, msg.RecordID)
		return nil
	}

	ref, err := w.sheet.AppendRow(ctx, sheets.RowFromEvent(msg.Event))
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.seen.Set(key, ref)
	w.mirrored.Add(1)

	w.logger.InfoContext(ctx, "Mirrored ledger event",
		log.FieldEvent, string(msg.Type),
		log.FieldID, msg.RecordID,
		log.FieldUserID, msg.UserID,
		log.FieldSheetsRef, ref,
		log.FieldOperation, log.OpMirror)
	return nil
}

func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Mirrored:   w.mirrored.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}

func dedupKey(msg *amqp.LedgerMessage) string {
	return fmt.Sprintf("%s|%s|%d", msg.Type, msg.RecordID, msg.Timestamp.UnixNano())
}
