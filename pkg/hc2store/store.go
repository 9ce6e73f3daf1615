// Package hc2store adapts pkg/redis into the durable store with a change
// feed that the Registry writes through and the Change Propagator
// subscribes to.
package hc2store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	hc2redis "github.com/hc2-project/hc2/pkg/redis"
	"github.com/hc2-project/hc2/pkg/hc2types"
)

const consumerGroup = "hc2-gateway"

// ChangeRecord is one entry on the change feed: either a full receipt
// document, or a deletion tombstone carrying the last known service name.
type ChangeRecord struct {
	Deleted       bool                      `json:"deleted"`
	ServiceID     string                    `json:"serviceId"`
	LastKnownName string                    `json:"lastKnownName,omitempty"`
	Doc           *hc2types.ReceiptDocument `json:"doc,omitempty"`
}

// Store persists registration receipts and publishes every write/delete on
// the change stream.
type Store struct {
	cache *hc2redis.Cache
	log   *zap.Logger
}

// New wraps cache as a Store.
func New(cache *hc2redis.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cache: cache, log: log.With(zap.String("module", "hc2store"))}
}

func receiptKey(serviceID string) string {
	return hc2redis.ReceiptKeyPrefix + serviceID
}

// PutReceipt persists doc and appends a change record for it.
func (s *Store) PutReceipt(ctx context.Context, doc hc2types.ReceiptDocument) error {
	if err := s.cache.Set(ctx, receiptKey(doc.Receipt.ServiceID), "", doc, hc2redis.TTLReceipt); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}

	record := ChangeRecord{ServiceID: doc.Receipt.ServiceID, Doc: &doc}
	if _, err := s.cache.XAddJSON(ctx, hc2redis.ChangeStreamKey, record); err != nil {
		return fmt.Errorf("failed to publish change record: %w", err)
	}
	return nil
}

// DeleteReceipt removes the receipt for serviceID and publishes a deletion
// tombstone carrying lastKnownName, so the propagator can locate the
// profile to prune even though the document itself is gone.
func (s *Store) DeleteReceipt(ctx context.Context, serviceID, lastKnownName string) error {
	if err := s.cache.Delete(ctx, receiptKey(serviceID), ""); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}

	record := ChangeRecord{Deleted: true, ServiceID: serviceID, LastKnownName: lastKnownName}
	if _, err := s.cache.XAddJSON(ctx, hc2redis.ChangeStreamKey, record); err != nil {
		return fmt.Errorf("failed to publish deletion record: %w", err)
	}
	return nil
}

// ListReceipts performs a full scan of every receipt document currently
// in the store.
func (s *Store) ListReceipts(ctx context.Context) ([]hc2types.ReceiptDocument, error) {
	keys, err := s.cache.ScanKeys(ctx, hc2redis.ReceiptKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan receipts: %w", err)
	}

	docs := make([]hc2types.ReceiptDocument, 0, len(keys))
	for _, key := range keys {
		var doc hc2types.ReceiptDocument
		if err := s.cache.Get(ctx, key, "", &doc); err != nil {
			s.log.Warn("skipping unreadable receipt during scan", zap.String("key", key), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Subscribe runs fn for every change record delivered to this consumer,
// acknowledging each entry once fn returns without error. It blocks until
// ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, consumer string, fn func(ChangeRecord) error) error {
	if err := s.cache.EnsureGroup(ctx, hc2redis.ChangeStreamKey, consumerGroup); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := s.cache.ReadGroup(ctx, hc2redis.ChangeStreamKey, consumerGroup, consumer, 5*time.Second, 50)
		if err != nil {
			return fmt.Errorf("failed to read change stream: %w", err)
		}

		for _, entry := range entries {
			raw, ok := entry.Values["doc"].(string)
			if !ok {
				s.log.Warn("skipping change entry with non-string payload", zap.String("id", entry.ID))
				continue
			}
			var record ChangeRecord
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				s.log.Warn("skipping malformed change entry", zap.String("id", entry.ID), zap.Error(err))
				continue
			}
			if err := fn(record); err != nil {
				s.log.Error("change record handler failed", zap.String("id", entry.ID), zap.Error(err))
				continue
			}
			if err := s.cache.Ack(ctx, hc2redis.ChangeStreamKey, consumerGroup, entry.ID); err != nil {
				s.log.Warn("failed to ack change entry", zap.String("id", entry.ID), zap.Error(err))
			}
		}
	}
}
