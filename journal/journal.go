package journal

import (
	"time"

	"github.com/asdine/storm/v3"
)

// Entry records a single applied command.
type Entry struct {
	ID     int `storm:"increment"` // pk
	Code   string
	Action string
	Remote string
	At     time.Time `storm:"index"`
}

// Store is a bolt-backed command journal.
type Store struct {
	db *storm.DB
}

func NewStore(db *storm.DB) (s *Store, err error) {
	if err = db.Init(&Entry{}); err != nil {
		return
	}
	s = &Store{db: db}
	return
}

func (s *Store) Append(entry Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	return s.db.Save(&entry)
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) (entries []Entry, err error) {
	err = s.db.All(&entries, storm.Limit(n), storm.Reverse())
	if err == storm.ErrNotFound {
		return nil, nil
	}
	return
}
