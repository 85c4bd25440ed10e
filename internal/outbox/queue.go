// Package outbox provides a persistent queue for schedule updates that could
// not be sent to the jobs API. Updates are queued locally and flushed when the
// server is reachable again.
package outbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const updatesBucket = "pending_updates"

// PendingUpdate is a schedule change awaiting upload.
type PendingUpdate struct {
	ID             uint64    `json:"id"`
	JobID          string    `json:"job_id"`
	CronExpression string    `json:"cron_expression"`
	Enabled        bool      `json:"enabled"`
	QueuedAt       time.Time `json:"queued_at"`
	Attempts       int       `json:"attempts"`
}

// Queue provides persistent FIFO storage for pending updates.
type Queue struct {
	db *bolt.DB
}

// Open opens or creates the outbox database at path.
func Open(path string) (*Queue, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(updatesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create outbox bucket: %w", err)
	}

	return &Queue{db: db}, nil
}

// Enqueue adds an update to the end of the queue. Earlier updates for the
// same job are dropped since only the latest schedule matters.
func (q *Queue) Enqueue(u *PendingUpdate) error {
	if u.QueuedAt.IsZero() {
		u.QueuedAt = time.Now()
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(updatesBucket))

		var superseded [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var p PendingUpdate
			if err := json.Unmarshal(v, &p); err == nil && p.JobID == u.JobID {
				superseded = append(superseded, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range superseded {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		// Auto-increment ID
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		u.ID = id

		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// Peek returns up to limit updates from the front of the queue without
// removing them.
func (q *Queue) Peek(limit int) ([]*PendingUpdate, error) {
	var updates []*PendingUpdate

	err := q.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(updatesBucket)).Cursor()
		for k, v := c.First(); k != nil && len(updates) < limit; k, v = c.Next() {
			var u PendingUpdate
			if err := json.Unmarshal(v, &u); err != nil {
				continue
			}
			updates = append(updates, &u)
		}
		return nil
	})

	return updates, err
}

// Remove deletes updates by ID after they were sent.
func (q *Queue) Remove(ids []uint64) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(updatesBucket))
		for _, id := range ids {
			if err := b.Delete(itob(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkAttempt increments the attempt counter of an update.
func (q *Queue) MarkAttempt(id uint64) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(updatesBucket))
		data := b.Get(itob(id))
		if data == nil {
			return nil
		}
		var u PendingUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		u.Attempts++
		out, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		return b.Put(itob(id), out)
	})
}

// Count returns the number of pending updates.
func (q *Queue) Count() (int, error) {
	var count int
	err := q.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(updatesBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// itob converts uint64 to big-endian bytes for ordered keys
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
