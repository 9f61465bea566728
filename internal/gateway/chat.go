package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/kv"
)

const (
	chatMax     = 100
	chatTTL     = 24 * time.Hour
	chatMaxText = 500
)

func chatKey(tableID string) string { return "chat:" + tableID }

// ChatEntry is one stored chat line.
type ChatEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

// chatLog keeps a capped per-table message tail in the KV so chat survives
// reconnects and restarts. Failures never reach the caller.
type chatLog struct {
	kv  kv.Store
	log zerolog.Logger
}

func newChatLog(kvs kv.Store, logger zerolog.Logger) *chatLog {
	return &chatLog{kv: kvs, log: logger.With().Str("component", "chat").Logger()}
}

// sanitize trims and caps a message. Empty results are dropped upstream.
func sanitize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > chatMaxText {
		text = text[:chatMaxText]
	}
	return text
}

func (cl *chatLog) append(ctx context.Context, tableID string, entry ChatEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		cl.log.Error().Err(err).Msg("encode chat entry")
		return
	}
	if err := cl.kv.ListPush(ctx, chatKey(tableID), data, chatMax, chatTTL); err != nil {
		cl.log.Error().Err(err).Str("table_id", tableID).Msg("store chat entry")
	}
}

// tail returns the most recent n entries, oldest first. A missing or
// unreadable log comes back empty.
func (cl *chatLog) tail(ctx context.Context, tableID string, n int64) []ChatEntry {
	raws, err := cl.kv.ListRange(ctx, chatKey(tableID), 0, n-1)
	if err != nil {
		cl.log.Error().Err(err).Str("table_id", tableID).Msg("load chat tail")
		return nil
	}
	entries := make([]ChatEntry, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var entry ChatEntry
		if err := json.Unmarshal(raws[i], &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
