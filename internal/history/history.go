// Package history archives finished hands through the store. The engine
// calls monitors while holding the table lock, so writes are queued and
// drained by a background goroutine instead of blocking the hand.
package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/store"
)

const (
	queueDepth   = 256
	writeTimeout = 5 * time.Second
)

// Recorder is an engine.Monitor that persists every finished hand. All other
// monitor callbacks are inherited no-ops.
type Recorder struct {
	engine.NullMonitor

	log     zerolog.Logger
	archive store.Histories
	queue   chan *store.HandRecord
	done    chan struct{}
	once    sync.Once
}

// NewRecorder starts the background writer. Call Close to flush it.
func NewRecorder(logger zerolog.Logger, archive store.Histories) *Recorder {
	r := &Recorder{
		log:     logger.With().Str("component", "history").Logger(),
		archive: archive,
		queue:   make(chan *store.HandRecord, queueDepth),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// HandEnded queues the hand for archival. A full queue drops the hand with a
// warning; gameplay is never held up by the archive.
func (r *Recorder) HandEnded(end engine.HandEnd) {
	winners, err := json.Marshal(end.Winners)
	if err != nil {
		r.log.Error().Err(err).Str("hand_id", end.HandID).Msg("winners encode failed")
		return
	}
	rec := &store.HandRecord{
		HandID:  end.HandID,
		TableID: end.TableID,
		Board:   deck.Format(end.Board),
		Pot:     end.Pot,
		Reason:  end.Reason,
		Winners: winners,
		EndedAt: time.Now().UTC(),
	}
	select {
	case r.queue <- rec:
	default:
		r.log.Warn().Str("hand_id", end.HandID).Msg("history queue full, hand dropped")
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.archive.RecordHand(ctx, rec); err != nil {
			r.log.Error().Err(err).
				Str("hand_id", rec.HandID).
				Str("table_id", rec.TableID).
				Msg("hand archive failed")
		}
		cancel()
	}
}

// Close flushes queued hands and stops the writer. Safe to call twice.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.queue) })
	<-r.done
}
