package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"autoapply/internal/domain"
	"autoapply/internal/executor"
	"autoapply/internal/governor"
	"autoapply/internal/lifecycle"
	"autoapply/internal/repository"
	"autoapply/internal/retry"
	"autoapply/internal/session"

	"github.com/google/uuid"
)

// Resource ids handed to the governor. The LLM budget is shared across
// analysis and tailoring; each platform gets its own submission budget.
const ResourceLLM = "llm"

func SubmitResource(p domain.Platform) string {
	return "submit:" + string(p)
}

// Notifier receives every persisted transition, feeding the event stream.
type Notifier interface {
	TransitionApplied(e domain.Event)
}

type Executors struct {
	Analysis   executor.Analysis
	Tailoring  executor.Tailoring
	Submission executor.Submission
	// DryRun replaces Submission for applications flagged test_mode,
	// confirming without touching the platform.
	DryRun executor.Submission
}

type Config struct {
	Workers         int
	QueueSize       int
	StageTimeout    time.Duration
	DeferDelay      time.Duration
	RequireApproval bool
	TailoringMode   domain.TailoringMode
	// ReviewTTL auto-cancels applications parked in needs_review longer
	// than this. Zero disables the sweep.
	ReviewTTL time.Duration
}

func (c *Config) fill() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 2 * time.Minute
	}
	if c.DeferDelay <= 0 {
		c.DeferDelay = 3 * time.Second
	}
	if !c.TailoringMode.Valid() {
		c.TailoringMode = domain.TailoringConservative
	}
}

// Scheduler drives every non-terminal application toward a terminal
// state. It is the sole mutator of application state: workers execute
// stages in parallel across applications, but the in-flight marker keeps
// any single application on one worker at a time.
type Scheduler struct {
	cfg    Config
	gov    *governor.Governor
	pool   *session.Pool
	policy *retry.Policy

	apps    repository.ApplicationRepository
	jobs    repository.JobRepository
	resumes repository.ResumeRepository
	events  repository.EventRepository

	exec     Executors
	notifier Notifier
	logger   *log.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]bool
	cancels  map[uuid.UUID]bool

	queue  chan uuid.UUID
	wg     sync.WaitGroup
	stopCh chan struct{}
	stop   sync.Once

	now func() time.Time
}

func New(
	cfg Config,
	gov *governor.Governor,
	pool *session.Pool,
	policy *retry.Policy,
	apps repository.ApplicationRepository,
	jobs repository.JobRepository,
	resumes repository.ResumeRepository,
	events repository.EventRepository,
	exec Executors,
	notifier Notifier,
	logger *log.Logger,
) *Scheduler {
	cfg.fill()
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		gov:      gov,
		pool:     pool,
		policy:   policy,
		apps:     apps,
		jobs:     jobs,
		resumes:  resumes,
		events:   events,
		exec:     exec,
		notifier: notifier,
		logger:   logger,
		inflight: make(map[uuid.UUID]bool),
		cancels:  make(map[uuid.UUID]bool),
		queue:    make(chan uuid.UUID, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start spins up the workers and requeues every non-terminal application
// found in the store, which is all the crash recovery the core needs:
// events are the durable truth, leases and sessions start cold.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nil scheduler")
	}

	pending, err := s.apps.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("scheduler recovery: %w", err)
	}
	for _, a := range pending {
		s.Enqueue(a.ID)
	}
	s.logger.Printf("scheduler status=started workers=%d recovered=%d", s.cfg.Workers, len(pending))

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	if s.cfg.ReviewTTL > 0 {
		s.wg.Add(1)
		go s.reviewSweep(ctx)
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.stop.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Enqueue makes an application eligible for dispatch. Safe to call for
// ids already queued; the in-flight marker deduplicates execution.
func (s *Scheduler) Enqueue(id uuid.UUID) {
	if s == nil {
		return
	}
	select {
	case s.queue <- id:
	case <-s.stopCh:
	}
}

func (s *Scheduler) enqueueAfter(id uuid.UUID, d time.Duration) {
	if d <= 0 {
		s.Enqueue(id)
		return
	}
	// Fires into Enqueue, whose stopCh select makes a late timer a
	// no-op after shutdown. No watcher goroutine per timer.
	time.AfterFunc(d, func() { s.Enqueue(id) })
}

// RequestCancel flags an application for cancellation, honored at the
// next dispatch point. An in-flight stage is left to finish so the
// platform never sees a half-submitted form.
func (s *Scheduler) RequestCancel(id uuid.UUID) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cancels[id] = true
	s.mu.Unlock()
	s.Enqueue(id)
}

// Approve resolves needs_review toward submission.
func (s *Scheduler) Approve(ctx context.Context, id uuid.UUID) error {
	return s.manualTransition(ctx, id, lifecycle.InputApproved)
}

// Reject resolves needs_review by cancelling.
func (s *Scheduler) Reject(ctx context.Context, id uuid.UUID) error {
	return s.manualTransition(ctx, id, lifecycle.InputRejected)
}

func (s *Scheduler) manualTransition(ctx context.Context, id uuid.UUID, in lifecycle.Input) error {
	if !s.markInFlight(id) {
		return fmt.Errorf("application %s is being dispatched, retry shortly", id)
	}
	defer s.clearInFlight(id)

	a, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return err
	}
	next, err := lifecycle.Next(a.State, in)
	if err != nil {
		return err
	}
	if err := s.applyTransition(ctx, &a, next, domain.CauseManual, nil); err != nil {
		return err
	}
	if !next.Terminal() {
		s.Enqueue(a.ID)
	}
	return nil
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case id := <-s.queue:
			s.dispatch(ctx, id)
		}
	}
}

// dispatch runs at most one stage for one application. Everything before
// the executor call is non-blocking bookkeeping.
func (s *Scheduler) dispatch(ctx context.Context, id uuid.UUID) {
	if !s.markInFlight(id) {
		// Another worker holds this application; it will requeue if
		// more work remains.
		return
	}
	defer s.clearInFlight(id)

	a, err := s.apps.GetByID(ctx, id)
	if err != nil {
		s.logger.Printf("scheduler dispatch load failed | app=%s err=%v", id, err)
		return
	}

	// Consume the cancel flag even when there is nothing left to cancel,
	// so a request against a finished application does not linger.
	cancelRequested := s.takeCancel(id)

	if a.State.Terminal() {
		s.logger.Printf("scheduler stage result discarded | app=%s state=%s reason=terminal", a.ID, a.State)
		return
	}

	if cancelRequested {
		if err := s.applyTransition(ctx, &a, domain.StateCancelled, domain.CauseManual, strptr("cancellation requested")); err != nil {
			s.logger.Printf("scheduler cancel failed | app=%s err=%v", a.ID, err)
		}
		return
	}

	switch a.State {
	case domain.StateDiscovered:
		s.runAnalysis(ctx, a)
	case domain.StateAnalyzed:
		s.runTailoring(ctx, a)
	case domain.StateTailored:
		s.advanceTailored(ctx, a)
	case domain.StateSubmitting:
		s.runSubmission(ctx, a)
	case domain.StateNeedsReview:
		// Waits on a human; the review sweep owns staleness.
	default:
		s.logger.Printf("scheduler no stage for state | app=%s state=%s", a.ID, a.State)
	}
}

func (s *Scheduler) runAnalysis(ctx context.Context, a domain.Application) {
	lease, ok := s.acquireOrDefer(a.ID, ResourceLLM, "analysis")
	if !ok {
		return
	}
	defer s.release(lease)

	job, err := s.jobs.GetByID(ctx, a.JobID)
	if err != nil {
		s.logger.Printf("scheduler job load failed | app=%s err=%v", a.ID, err)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	reqs, fail := s.exec.Analysis.Analyze(stageCtx, job.PostingText)
	if fail != nil {
		s.handleFailure(ctx, a, fail)
		return
	}

	if err := s.jobs.SetRequirements(ctx, job.ID, reqs); err != nil {
		s.logger.Printf("scheduler persist requirements failed | app=%s err=%v", a.ID, err)
		return
	}
	if err := s.applyTransition(ctx, &a, domain.StateAnalyzed, domain.CauseStageSuccess, nil); err != nil {
		s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
		return
	}
	s.Enqueue(a.ID)
}

func (s *Scheduler) runTailoring(ctx context.Context, a domain.Application) {
	lease, ok := s.acquireOrDefer(a.ID, ResourceLLM, "tailoring")
	if !ok {
		return
	}
	defer s.release(lease)

	job, err := s.jobs.GetByID(ctx, a.JobID)
	if err != nil {
		s.logger.Printf("scheduler job load failed | app=%s err=%v", a.ID, err)
		return
	}
	base, err := s.resumes.GetByID(ctx, a.ResumeID)
	if err != nil {
		s.logger.Printf("scheduler resume load failed | app=%s err=%v", a.ID, err)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	tailored, fail := s.exec.Tailoring.Tailor(stageCtx, base, job.Requirements, s.cfg.TailoringMode)
	if fail != nil {
		s.handleFailure(ctx, a, fail)
		return
	}

	tailored.DerivedFrom = &job.ID
	if err := s.resumes.Create(ctx, tailored); err != nil {
		s.logger.Printf("scheduler persist resume failed | app=%s err=%v", a.ID, err)
		return
	}
	a.ResumeID = tailored.ID
	if err := s.applyTransition(ctx, &a, domain.StateTailored, domain.CauseStageSuccess, nil); err != nil {
		s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
		return
	}
	s.Enqueue(a.ID)
}

// advanceTailored decides between unattended submission and human review.
func (s *Scheduler) advanceTailored(ctx context.Context, a domain.Application) {
	if s.cfg.RequireApproval {
		if err := s.applyTransition(ctx, &a, domain.StateNeedsReview, domain.CauseStageSuccess, strptr("approval required")); err != nil {
			s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
		}
		return
	}
	if err := s.applyTransition(ctx, &a, domain.StateSubmitting, domain.CauseStageSuccess, nil); err != nil {
		s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
		return
	}
	s.Enqueue(a.ID)
}

func (s *Scheduler) runSubmission(ctx context.Context, a domain.Application) {
	job, err := s.jobs.GetByID(ctx, a.JobID)
	if err != nil {
		s.logger.Printf("scheduler job load failed | app=%s err=%v", a.ID, err)
		return
	}

	lease, ok := s.acquireOrDefer(a.ID, SubmitResource(job.Platform), "submission")
	if !ok {
		return
	}
	defer s.release(lease)

	resume, err := s.resumes.GetByID(ctx, a.ResumeID)
	if err != nil {
		s.logger.Printf("scheduler resume load failed | app=%s err=%v", a.ID, err)
		return
	}

	sub := s.exec.Submission
	dryRun := a.TestMode && s.exec.DryRun != nil
	if dryRun {
		sub = s.exec.DryRun
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	// A dry run never touches a browser, so it skips the session pool.
	var sess *session.Session
	if s.pool != nil && !dryRun {
		sess, err = s.pool.Checkout(stageCtx, job.Platform)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				// Pool ceiling, not a stage failure: defer like a
				// governor denial.
				s.enqueueAfter(a.ID, s.cfg.DeferDelay)
				return
			}
			s.handleFailure(ctx, a, executor.Classify(err))
			return
		}
	}

	token, fail := sub.Submit(stageCtx, sess, resume, job)
	if sess != nil {
		s.pool.Checkin(sess, fail != nil)
	}
	if fail != nil {
		s.handleFailure(ctx, a, fail)
		return
	}

	a.Confirmation = &token
	a.LastFailure = nil
	a.FailReason = nil
	if err := s.applyTransition(ctx, &a, domain.StateConfirmed, domain.CauseStageSuccess, strptr("confirmation "+token)); err != nil {
		s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
	}
}

// handleFailure routes one classified stage failure through the retry
// policy and the state machine.
func (s *Scheduler) handleFailure(ctx context.Context, a domain.Application, fail *executor.Failure) {
	a.Attempts++
	kind := fail.Kind
	a.LastFailure = &kind
	reason := kind.Reason()
	a.FailReason = &reason

	cause := domain.CauseStageFailure
	if kind == domain.FailureTimeout {
		cause = domain.CauseTimeout
	}

	verdict, delay := s.policy.Decide(kind, a.Attempts)
	switch verdict {
	case retry.Review:
		next := domain.StateNeedsReview
		if !lifecycle.Legal(a.State, next) {
			// Review only exists once a tailored resume awaits a human.
			// An automation flag raised earlier has no reviewer action
			// to wait on; fail instead of wedging non-terminal.
			next = domain.StateFailed
		}
		if err := s.applyTransition(ctx, &a, next, cause, &reason); err != nil {
			s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
			s.enqueueAfter(a.ID, s.cfg.DeferDelay)
		}
	case retry.Fail:
		if err := s.applyTransition(ctx, &a, domain.StateFailed, cause, &reason); err != nil {
			s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
			s.enqueueAfter(a.ID, s.cfg.DeferDelay)
		}
	default:
		next := retryTarget(a.State)
		if err := s.applyTransition(ctx, &a, next, cause, &reason); err != nil {
			s.logger.Printf("scheduler transition failed | app=%s err=%v", a.ID, err)
			s.enqueueAfter(a.ID, s.cfg.DeferDelay)
			return
		}
		s.logger.Printf("scheduler retry scheduled | app=%s attempt=%d kind=%s delay=%s", a.ID, a.Attempts, kind, delay)
		s.enqueueAfter(a.ID, delay)
	}
}

// retryTarget resumes from the last stable state: a failed submission
// goes back to tailored, earlier stages retry in place.
func retryTarget(from domain.State) domain.State {
	if from == domain.StateSubmitting {
		return domain.StateTailored
	}
	return from
}

// applyTransition is the single write path: CAS the projection, append
// the event, notify the stream.
func (s *Scheduler) applyTransition(ctx context.Context, a *domain.Application, to domain.State, cause domain.Cause, note *string) error {
	from := a.State
	if !lifecycle.Legal(from, to) {
		return fmt.Errorf("%w: %s -> %s", lifecycle.ErrIllegalTransition, from, to)
	}
	a.State = to
	a.UpdatedAt = s.now().UTC()

	if err := s.apps.UpdateIfState(ctx, *a, from); err != nil {
		a.State = from
		return err
	}

	e := domain.Event{
		ID:            uuid.New(),
		ApplicationID: a.ID,
		JobID:         a.JobID,
		From:          from,
		To:            to,
		Cause:         cause,
		Note:          note,
		CreatedAt:     a.UpdatedAt,
	}
	if err := s.events.Append(ctx, e); err != nil {
		s.logger.Printf("scheduler event append failed | app=%s err=%v", a.ID, err)
	}
	if s.notifier != nil {
		s.notifier.TransitionApplied(e)
	}
	s.logger.Printf("scheduler transition | app=%s from=%s to=%s cause=%s", a.ID, from, to, cause)
	return nil
}

func (s *Scheduler) acquireOrDefer(id uuid.UUID, resource, stage string) (governor.Lease, bool) {
	lease, err := s.gov.Acquire(resource, id.String()+"/"+stage)
	if err != nil {
		if errors.Is(err, governor.ErrOverConcurrency) || errors.Is(err, governor.ErrBudgetExhausted) {
			s.logger.Printf("scheduler deferred | app=%s resource=%s reason=%v", id, resource, err)
			s.enqueueAfter(id, s.cfg.DeferDelay)
			return governor.Lease{}, false
		}
		s.logger.Printf("scheduler lease failed | app=%s resource=%s err=%v", id, resource, err)
		return governor.Lease{}, false
	}
	return lease, true
}

func (s *Scheduler) release(l governor.Lease) {
	if err := s.gov.Release(l); err != nil && !errors.Is(err, governor.ErrLeaseNotHeld) {
		s.logger.Printf("scheduler lease release failed | resource=%s err=%v", l.Resource, err)
	}
}

func (s *Scheduler) markInFlight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *Scheduler) clearInFlight(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *Scheduler) takeCancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancels[id] {
		delete(s.cancels, id)
		return true
	}
	return false
}

// reviewSweep auto-cancels applications stuck in needs_review past the
// configured TTL.
func (s *Scheduler) reviewSweep(ctx context.Context) {
	defer s.wg.Done()
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-tick.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	pending, err := s.apps.ListNonTerminal(ctx)
	if err != nil {
		s.logger.Printf("scheduler review sweep failed | err=%v", err)
		return
	}
	cutoff := s.now().Add(-s.cfg.ReviewTTL)
	for _, a := range pending {
		if a.State != domain.StateNeedsReview || a.UpdatedAt.After(cutoff) {
			continue
		}
		if !s.markInFlight(a.ID) {
			continue
		}
		note := fmt.Sprintf("needs_review unresolved for %s, auto-cancelled", s.cfg.ReviewTTL)
		if err := s.applyTransition(ctx, &a, domain.StateCancelled, domain.CauseTimeout, &note); err != nil {
			s.logger.Printf("scheduler auto-cancel failed | app=%s err=%v", a.ID, err)
		}
		s.clearInFlight(a.ID)
	}
}

func strptr(s string) *string { return &s }
