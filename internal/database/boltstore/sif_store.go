package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/sif"

	bolt "go.etcd.io/bbolt"
)

// SIFStore provides persistent storage for SIF messages.
type SIFStore struct {
	db *bolt.DB
}

var _ sif.Store = (*SIFStore)(nil)

// Put stores a SIF and its author index entry.
func (s *SIFStore) Put(ctx context.Context, item sif.SIF) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSIFs)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketSIFs)
		}

		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal SIF: %w", err)
		}

		if err := bucket.Put([]byte(item.ID), data); err != nil {
			return err
		}

		return tx.Bucket(BucketSIFsByAuthor).Put(pairKey(item.AuthorID, item.ID), []byte(item.ID))
	})
}

// Get retrieves a SIF by ID, or nil if absent.
func (s *SIFStore) Get(ctx context.Context, id string) (*sif.SIF, error) {
	var item *sif.SIF

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSIFs)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		item = &sif.SIF{}
		return json.Unmarshal(data, item)
	})

	return item, err
}

// ListByAuthor returns all SIFs authored by the given user.
func (s *SIFStore) ListByAuthor(ctx context.Context, authorID string) ([]sif.SIF, error) {
	var items []sif.SIF

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketSIFsByAuthor)
		bucket := tx.Bucket(BucketSIFs)
		if index == nil || bucket == nil {
			return nil
		}

		cursor := index.Cursor()
		prefix := []byte(authorID + ":")
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := bucket.Get(v)
			if data == nil {
				continue
			}
			var item sif.SIF
			if err := json.Unmarshal(data, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})

	return items, err
}

// SetRemoved marks a SIF as removed by moderator action. Idempotent;
// flagging an already-removed SIF succeeds without a write.
func (s *SIFStore) SetRemoved(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSIFs)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketSIFs)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: SIF %s", moderation.ErrNotFound, id)
		}

		var item sif.SIF
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("failed to unmarshal SIF: %w", err)
		}
		if item.IsRemoved {
			return nil
		}
		item.IsRemoved = true

		newData, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), newData)
	})
}
