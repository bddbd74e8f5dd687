// Package store keeps calibration points in a bbolt database so they
// survive the resets between calibration sessions.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"torpedo/internal/gravity"
)

var pointsBucket = []byte("calibration_points")

type Store struct {
	db *bbolt.DB
}

// Open creates the database file if it doesn't exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pointsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddPoint appends p and returns its sequence number.
func (s *Store) AddPoint(p gravity.Point) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pointsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		v, err := json.Marshal(p)
		if err != nil {
			return err
		}
		id = seq
		return b.Put(itob(seq), v)
	})
	if err != nil {
		return 0, fmt.Errorf("store: add point: %w", err)
	}
	return id, nil
}

// Entry is a stored point with its id.
type Entry struct {
	ID uint64 `json:"id"`
	gravity.Point
}

// Entries returns every stored point in insertion order.
func (s *Store) Entries() ([]Entry, error) {
	out := []Entry{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(pointsBucket).ForEach(func(k, v []byte) error {
			e := Entry{ID: binary.BigEndian.Uint64(k)}
			if err := json.Unmarshal(v, &e.Point); err != nil {
				return fmt.Errorf("point %d: %w", e.ID, err)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list points: %w", err)
	}
	return out, nil
}

func (s *Store) Points() ([]gravity.Point, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]gravity.Point, len(entries))
	for i, e := range entries {
		out[i] = e.Point
	}
	return out, nil
}

func (s *Store) DeletePoint(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(pointsBucket).Delete(itob(id))
	})
}

// Clear removes all points.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(pointsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(pointsBucket)
		return err
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
