package pipeline

import (
	"sync"

	"thread/models"
)

// Queue is the process-wide FIFO of pending reports plus the per-owner
// list of in-flight URLs used for duplicate detection and quota checks.
// An owner's URL stays listed until analysis finishes or fails, so the
// quota covers queued and running work alike.
type Queue struct {
	limit int // per owner; <1 means unbounded

	mu     sync.Mutex
	fifo   []*models.Report
	owners map[string][]string
}

func NewQueue(limit int) *Queue {
	return &Queue{
		limit:  limit,
		owners: make(map[string][]string),
	}
}

func ownerKey(token *string) string {
	if token == nil {
		return ""
	}
	return *token
}

// Enqueue appends the report and records its URL under the owner.
func (q *Queue) Enqueue(r *models.Report) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fifo = append(q.fifo, r)
	key := ownerKey(r.Token)
	q.owners[key] = append(q.owners[key], r.URL)
}

// Dequeue pops the oldest report; ok is false when the queue is empty.
func (q *Queue) Dequeue() (*models.Report, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fifo) == 0 {
		return nil, false
	}
	r := q.fifo[0]
	q.fifo = q.fifo[1:]
	return r, true
}

// Release drops the URL from the owner list once analysis is done with it.
func (q *Queue) Release(token *string, url string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := ownerKey(token)
	urls := q.owners[key]
	for i, u := range urls {
		if u == url {
			q.owners[key] = append(urls[:i], urls[i+1:]...)
			break
		}
	}
	if len(q.owners[key]) == 0 {
		delete(q.owners, key)
	}
}

// OwnerHasURL reports whether the owner already has this URL in flight.
func (q *Queue) OwnerHasURL(token *string, url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, u := range q.owners[ownerKey(token)] {
		if u == url {
			return true
		}
	}
	return false
}

// OwnerFull reports whether the owner has hit the per-owner quota.
func (q *Queue) OwnerFull(token *string) bool {
	if q.limit < 1 {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.owners[ownerKey(token)]) >= q.limit
}

// QSize is the number of reports waiting in the FIFO.
func (q *Queue) QSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// OwnerURLs snapshots the owner's in-flight URLs for the status surface.
func (q *Queue) OwnerURLs(token *string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	urls := q.owners[ownerKey(token)]
	out := make([]string, len(urls))
	copy(out, urls)
	return out
}
