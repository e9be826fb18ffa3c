// Package store keeps a history of decoded captures in a bbolt database.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/norasector/irdecode/pkg/ir/analysis"
	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"
)

const resultsBucket = "results"

var ErrNotFound = errors.New("record not found")

// Record is one capture seen by the receiver and what became of it.
type Record struct {
	ID     uint64     `json:"id"`
	Time   time.Time  `json:"time"`
	Source string     `json:"source,omitempty"`
	Result *ir.Result `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
	// Entries are the capture entries from the start offset on, in capture units.
	Entries []uint32 `json:"entries"`
	Tick    uint32   `json:"tick,omitempty"`
	// Summary is filled in for captures no decoder recognised.
	Summary *analysis.Summary `json:"summary,omitempty"`
}

// Capture rebuilds the capture the record was made from.
func (r *Record) Capture() *ir.Capture {
	entries := append([]uint32{0}, r.Entries...)
	return &ir.Capture{Entries: entries, StartOffset: ir.StartOffset, Tick: r.Tick}
}

type Store struct {
	DB *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Append assigns rec the next ID and saves it.
func (s *Store) Append(rec *Record) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(resultsBucket))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		data, err := yaml.Marshal(rec)
		if err != nil {
			return fmt.Errorf("error encoding record %d: %w", id, err)
		}
		return b.Put(itob(id), data)
	})
}

func (s *Store) Get(id uint64) (*Record, error) {
	var rec *Record
	err := s.DB.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(resultsBucket)).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		var err error
		rec, err = decode(data)
		return err
	})
	return rec, err
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]*Record, error) {
	var ret []*Record
	err := s.DB.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket([]byte(resultsBucket)).Cursor()
		for k, v := cur.Last(); k != nil && len(ret) < n; k, v = cur.Prev() {
			rec, err := decode(v)
			if err != nil {
				return err
			}
			ret = append(ret, rec)
		}
		return nil
	})
	return ret, err
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.DB.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(resultsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func decode(data []byte) (*Record, error) {
	rec := &Record{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("error decoding record: %w", err)
	}
	return rec, nil
}
