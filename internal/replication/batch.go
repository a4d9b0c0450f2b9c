package replication

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// txBatch accumulates hash-field writes across many Redis keys so they can
// be submitted as a single MULTI/EXEC transaction. It mirrors the source's
// "statements" map keyed by Redis key.
type txBatch struct {
	hashes map[string]map[string]string
}

func newTxBatch() *txBatch {
	return &txBatch{hashes: make(map[string]map[string]string)}
}

func (b *txBatch) setRaw(key, field, value string) {
	fields, ok := b.hashes[key]
	if !ok {
		fields = make(map[string]string)
		b.hashes[key] = fields
	}
	fields[field] = value
}

func (b *txBatch) setJSON(key, field string, value interface{}) {
	encoded, err := json.Marshal(value)
	if err != nil {
		// The payloads here are always maps of strings/primitives built by
		// this module; a marshal failure means a programming error, not a
		// runtime condition callers can act on.
		panic("replication: unmarshalable payload for " + key + ": " + err.Error())
	}
	b.setRaw(key, field, string(encoded))
}

func (b *txBatch) empty() bool {
	return len(b.hashes) == 0
}

// apply queues every accumulated HSET onto pipe.
func (b *txBatch) apply(ctx context.Context, pipe redis.Pipeliner) {
	for key, fields := range b.hashes {
		if len(fields) == 0 {
			continue
		}
		args := make([]interface{}, 0, len(fields)*2)
		for field, value := range fields {
			args = append(args, field, value)
		}
		pipe.HSet(ctx, key, args...)
	}
}
