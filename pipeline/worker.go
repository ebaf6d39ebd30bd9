package pipeline

import (
	"context"

	"go.uber.org/zap"

	"thread/classifier"
	"thread/database"
	"thread/models"
)

// Service owns the queue, the worker pool, and the analysis pipeline.
type Service struct {
	store    *database.Store
	lib      *classifier.Library
	splitter *Splitter
	fetcher  *Fetcher
	queue    *Queue
	log      *zap.SugaredLogger

	maxTasks int
	wakeCh   chan struct{}

	// OnError, when set, is notified of terminal analysis failures.
	OnError func(report *models.Report, err error)
}

func NewService(store *database.Store, lib *classifier.Library, splitter *Splitter,
	fetcher *Fetcher, queue *Queue, maxTasks int, log *zap.SugaredLogger) *Service {
	if maxTasks < 1 {
		maxTasks = 1
	}
	return &Service{
		store:    store,
		lib:      lib,
		splitter: splitter,
		fetcher:  fetcher,
		queue:    queue,
		log:      log,
		maxTasks: maxTasks,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Queue exposes the underlying queue for the status surface.
func (s *Service) Queue() *Queue { return s.queue }

// wake nudges the drain loop; a pending nudge is enough.
func (s *Service) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run drains the queue until the context ends, keeping at most maxTasks
// analyses in flight. Each analysis runs on its own goroutine so
// classification never blocks the request path.
func (s *Service) Run(ctx context.Context) {
	sem := make(chan struct{}, s.maxTasks)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wakeCh:
		}
		for {
			report, ok := s.queue.Dequeue()
			if !ok {
				break
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(r *models.Report) {
				defer func() { <-sem; s.wake() }()
				s.analyze(r)
			}(report)
		}
	}
}

// PrepareQueue recovers after a restart: every non-errored queued report
// has its partial analysis rows purged and is re-enqueued from scratch.
func (s *Service) PrepareQueue() error {
	reports, err := s.store.QueuedReports()
	if err != nil {
		return err
	}
	for i := range reports {
		r := &reports[i]
		if err := s.store.PurgePartialRows(r.UID); err != nil {
			return err
		}
		if err := s.store.ClearQueueProgress(r.UID); err != nil {
			return err
		}
		s.queue.Enqueue(r)
	}
	if len(reports) > 0 {
		s.log.Infow("requeued interrupted reports", "count", len(reports))
	}
	s.wake()
	return nil
}

// RebuildModels forces a full library rebuild. The library's own lock
// serializes the swap against in-flight inference.
func (s *Service) RebuildModels() error {
	return s.lib.BuildAll(s.store)
}

// UpdateModel builds one technique's model and splices it in.
func (s *Service) UpdateModel(attack models.Attack) error {
	return s.lib.UpdateOne(s.store, attack)
}

// SyncModels trains a model for every technique that cleared the
// eligibility threshold since the dictionary was built, typically after a
// feed ingest added example uses. Existing models are left untouched.
func (s *Service) SyncModels() error {
	attacks, err := s.store.MLEligibleTechniques(classifier.MinExampleUses)
	if err != nil {
		return err
	}
	var added int
	for _, a := range attacks {
		if s.lib.Has(a.UID) {
			continue
		}
		if err := s.UpdateModel(a); err != nil {
			return err
		}
		added++
	}
	if added > 0 {
		s.log.Infow("trained newly eligible techniques", "count", added)
	}
	return nil
}
