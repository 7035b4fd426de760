// Package queue is a local durable job queue on Pebble used when no DBOS
// database is available.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

const (
	pendingPrefix = "pending/"
	runningPrefix = "running/"
	failedPrefix  = "failed/"
)

// DefaultQueue is used when a job is submitted without a queue name
const DefaultQueue = "default"

// Entry is a stored job
type Entry struct {
	ID    string                 `json:"id"`
	Queue string                 `json:"queue"`
	Job   pipeline.ConversionJob `json:"job"`
}

// Failure is a job that failed while being handled
type Failure struct {
	Entry
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// DBQueue is a small wrapper around a Pebble DB instance holding pending,
// running and failed jobs
type DBQueue struct {
	DB       *pebble.DB
	DataFile string

	mu      sync.Mutex
	lastSeq int64
}

// OpenQueue opens (or creates) a pebble DB at the given dataFile path. Jobs
// left running by a previous process are returned to their queue.
func OpenQueue(dataFile string) (*DBQueue, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}

	q := &DBQueue{DB: db, DataFile: dataFile}
	if err := q.recover(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

// Close closes the underlying DB.
func (q *DBQueue) Close() error {
	return q.DB.Close()
}

// Enqueue stores the job at the tail of the named queue and returns its id
func (q *DBQueue) Enqueue(queueName string, job pipeline.ConversionJob) (string, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	if strings.Contains(queueName, "/") {
		return "", fmt.Errorf("invalid queue name %q", queueName)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	seq := time.Now().UnixNano()
	if seq <= q.lastSeq {
		seq = q.lastSeq + 1
	}
	q.lastSeq = seq

	job.Queue = queueName
	entry := Entry{
		ID:    fmt.Sprintf("%s-%020d", queueName, seq),
		Queue: queueName,
		Job:   job,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.DB.Set(pendingKey(queueName, seq), data, pebble.Sync); err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}
	return entry.ID, nil
}

// Claim moves the oldest pending job of the queue to the running set. ok is
// false when the queue is empty.
func (q *DBQueue) Claim(queueName string) (entry Entry, ok bool, err error) {
	if queueName == "" {
		queueName = DefaultQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	prefix := []byte(pendingPrefix + queueName + "/")
	key, value, found, err := q.first(prefix)
	if err != nil || !found {
		return Entry{}, false, err
	}

	if err := json.Unmarshal(value, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode job %s: %w", key, err)
	}

	batch := q.DB.NewBatch()
	defer batch.Close()
	if err := batch.Delete(key, nil); err != nil {
		return Entry{}, false, err
	}
	if err := batch.Set([]byte(runningPrefix+entry.ID), value, nil); err != nil {
		return Entry{}, false, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Entry{}, false, fmt.Errorf("failed to claim job: %w", err)
	}

	return entry, true, nil
}

// Ack removes a finished job
func (q *DBQueue) Ack(id string) error {
	return q.DB.Delete([]byte(runningPrefix+id), pebble.Sync)
}

// Fail moves a running job to the failed set
func (q *DBQueue) Fail(entry Entry, cause error) error {
	failure := Failure{Entry: entry, FailedAt: time.Now().UTC()}
	if cause != nil {
		failure.Error = cause.Error()
	}

	data, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}

	batch := q.DB.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(runningPrefix+entry.ID), nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(failedPrefix+entry.ID), data, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Pending returns the number of pending jobs in the queue
func (q *DBQueue) Pending(queueName string) (int, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	count := 0
	err := q.scan([]byte(pendingPrefix+queueName+"/"), func(key, value []byte) error {
		count++
		return nil
	})
	return count, err
}

// Failures returns every failed job, oldest first
func (q *DBQueue) Failures() ([]Failure, error) {
	var out []Failure
	err := q.scan([]byte(failedPrefix), func(key, value []byte) error {
		var f Failure
		if err := json.Unmarshal(value, &f); err != nil {
			return fmt.Errorf("failed to decode failure %s: %w", key, err)
		}
		out = append(out, f)
		return nil
	})
	return out, err
}

// JobStatus reports whether the job is pending, running or failed. Jobs that
// completed are no longer stored and are reported as not found.
func (q *DBQueue) JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error) {
	seq, err := parseSeq(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	queueName := id[:strings.LastIndex(id, "-")]

	if _, closer, err := q.DB.Get(pendingKey(queueName, seq)); err == nil {
		closer.Close()
		return &pipeline.JobStatus{ID: id, Queue: queueName, Status: pipeline.JobPending}, nil
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return nil, err
	}

	if _, closer, err := q.DB.Get([]byte(runningPrefix + id)); err == nil {
		closer.Close()
		return &pipeline.JobStatus{ID: id, Queue: queueName, Status: pipeline.JobRunning}, nil
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return nil, err
	}

	value, closer, err := q.DB.Get([]byte(failedPrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var f Failure
	if err := json.Unmarshal(value, &f); err != nil {
		return nil, fmt.Errorf("failed to decode failure %s: %w", id, err)
	}
	return &pipeline.JobStatus{
		ID:        id,
		Queue:     queueName,
		Status:    pipeline.JobFailed,
		Error:     f.Error,
		UpdatedAt: f.FailedAt,
	}, nil
}

// recover returns running jobs to the head of their queue
func (q *DBQueue) recover() error {
	var stale []Entry
	err := q.scan([]byte(runningPrefix), func(key, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("failed to decode running job %s: %w", key, err)
		}
		stale = append(stale, e)
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range stale {
		seq, err := parseSeq(e.ID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		batch := q.DB.NewBatch()
		if err := batch.Set(pendingKey(e.Queue, seq), data, nil); err != nil {
			batch.Close()
			return err
		}
		if err := batch.Delete([]byte(runningPrefix+e.ID), nil); err != nil {
			batch.Close()
			return err
		}
		if err := batch.Commit(pebble.Sync); err != nil {
			batch.Close()
			return fmt.Errorf("failed to requeue job %s: %w", e.ID, err)
		}
		batch.Close()
	}
	return nil
}

// first returns a copy of the first key/value under prefix
func (q *DBQueue) first(prefix []byte) (key, value []byte, found bool, err error) {
	iter, err := q.DB.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, nil, false, err
	}
	defer iter.Close()

	if !iter.First() {
		return nil, nil, false, iter.Error()
	}
	// Iterator memory is only valid until the next positioning call
	key = bytes.Clone(iter.Key())
	value = bytes.Clone(iter.Value())
	return key, value, true, nil
}

func (q *DBQueue) scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := q.DB.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	upper := bytes.Clone(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
}

func pendingKey(queueName string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", pendingPrefix, queueName, seq))
}

func parseSeq(id string) (int64, error) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return 0, errors.New("malformed job id " + id)
	}
	var seq int64
	if _, err := fmt.Sscanf(id[i+1:], "%d", &seq); err != nil {
		return 0, fmt.Errorf("malformed job id %s: %w", id, err)
	}
	return seq, nil
}
