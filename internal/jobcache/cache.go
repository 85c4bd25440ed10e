// Package jobcache keeps a local copy of the project's jobs and their next
// fire times so the console can list upcoming runs while the API is
// unreachable. It also stores unsaved schedule drafts per job.
//
// This file implements the persistent job cache using bbolt.
package jobcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/doughall/jobconsole/internal/schedule"
	bolt "go.etcd.io/bbolt"
)

const (
	jobsBucket   = "jobs"
	draftsBucket = "drafts"
)

// ErrNotFound is returned when a job or draft is not in the cache.
var ErrNotFound = errors.New("not found in cache")

// CachedJob is a job as stored locally, with its schedule already evaluated.
type CachedJob struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CronExpression string          `json:"cron_expression"`
	Enabled        bool            `json:"enabled"`
	Preset         schedule.Preset `json:"preset"`
	Summary        string          `json:"summary"`
	NextRunAt      time.Time       `json:"next_run_at"`
	LastSyncAt     time.Time       `json:"last_sync_at"`
}

// Scheduled reports whether the job has a next fire time at all. Disabled
// jobs and jobs with an invalid or never-firing expression do not.
func (j *CachedJob) Scheduled() bool {
	return !j.NextRunAt.IsZero()
}

// Cache provides persistent storage for jobs and drafts.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open job cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{jobsBucket, draftsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create job cache buckets: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FromJob converts an API job into its cached form, evaluating the schedule
// relative to now.
func FromJob(j client.Job, now time.Time) *CachedJob {
	cj := &CachedJob{
		ID:             j.ID,
		Name:           j.Name,
		CronExpression: j.CronExpression,
		Enabled:        j.Enabled,
		Preset:         schedule.Parse(j.CronExpression).Preset,
		Summary:        schedule.Describe(j.CronExpression),
		LastSyncAt:     now,
	}
	cj.NextRunAt = CalculateNextRun(cj, now)
	return cj
}

// CalculateNextRun returns the first fire time of the job after from, or the
// zero time when the job is disabled or its expression never fires.
func CalculateNextRun(j *CachedJob, from time.Time) time.Time {
	if !j.Enabled {
		return time.Time{}
	}
	next, ok := schedule.NextRun(j.CronExpression, from)
	if !ok {
		return time.Time{}
	}
	return next
}

// Save stores or updates a job.
func (c *Cache) Save(j *CachedJob) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return putJob(tx.Bucket([]byte(jobsBucket)), j)
	})
}

func putJob(b *bolt.Bucket, j *CachedJob) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return b.Put([]byte(j.ID), data)
}

// Delete removes a job and its draft. Deleting an unknown job is not an error.
func (c *Cache) Delete(id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(jobsBucket)).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket([]byte(draftsBucket)).Delete([]byte(id))
	})
}

// Get retrieves a job by ID, or ErrNotFound.
func (c *Cache) Get(id string) (*CachedJob, error) {
	var job CachedJob
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(jobsBucket)).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// All returns every cached job ordered by name, then ID.
func (c *Cache) All() ([]*CachedJob, error) {
	jobs, err := c.scan(func(*CachedJob) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].Name != jobs[k].Name {
			return jobs[i].Name < jobs[k].Name
		}
		return jobs[i].ID < jobs[k].ID
	})
	return jobs, nil
}

// Due returns the scheduled jobs whose next run is at or before now.
func (c *Cache) Due(now time.Time) ([]*CachedJob, error) {
	return c.scan(func(j *CachedJob) bool {
		return j.Scheduled() && !j.NextRunAt.After(now)
	})
}

// Upcoming returns scheduled jobs ordered by next run, earliest first. A
// non-positive limit returns all of them.
func (c *Cache) Upcoming(limit int) ([]*CachedJob, error) {
	jobs, err := c.scan((*CachedJob).Scheduled)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].NextRunAt.Equal(jobs[k].NextRunAt) {
			return jobs[i].NextRunAt.Before(jobs[k].NextRunAt)
		}
		return jobs[i].ID < jobs[k].ID
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// ReplaceAll makes the cache hold exactly the given jobs, evaluated at now.
// Drafts of jobs that no longer exist are dropped.
func (c *Cache) ReplaceAll(jobs []client.Job, now time.Time) error {
	keep := make(map[string]struct{}, len(jobs))
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		for _, j := range jobs {
			keep[j.ID] = struct{}{}
			if err := putJob(b, FromJob(j, now)); err != nil {
				return err
			}
		}
		for _, name := range []string{jobsBucket, draftsBucket} {
			if err := deleteExcept(tx.Bucket([]byte(name)), keep); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteExcept removes every key not in keep. Keys are collected first since
// bbolt forbids deleting while iterating with ForEach.
func deleteExcept(b *bolt.Bucket, keep map[string]struct{}) error {
	var stale [][]byte
	err := b.ForEach(func(k, _ []byte) error {
		if _, ok := keep[string(k)]; !ok {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) scan(keep func(*CachedJob) bool) ([]*CachedJob, error) {
	var jobs []*CachedJob
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(jobsBucket)).ForEach(func(_, v []byte) error {
			var j CachedJob
			if err := json.Unmarshal(v, &j); err != nil {
				return nil // Skip invalid entries
			}
			if keep(&j) {
				jobs = append(jobs, &j)
			}
			return nil
		})
	})
	return jobs, err
}
