package jobcache

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Draft is an unsaved schedule edit for a job.
type Draft struct {
	JobID          string    `json:"job_id"`
	CronExpression string    `json:"cron_expression"`
	SavedAt        time.Time `json:"saved_at"`
}

// SaveDraft stores the in-progress expression for a job, replacing any
// earlier draft.
func (c *Cache) SaveDraft(jobID, cron string) error {
	data, err := json.Marshal(Draft{JobID: jobID, CronExpression: cron, SavedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(draftsBucket)).Put([]byte(jobID), data)
	})
}

// Draft returns the stored draft for a job, or ErrNotFound.
func (c *Cache) Draft(jobID string) (*Draft, error) {
	var d Draft
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(draftsBucket)).Get([]byte(jobID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDraft discards the draft for a job.
func (c *Cache) DeleteDraft(jobID string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(draftsBucket)).Delete([]byte(jobID))
	})
}
