// Package service coordinates the licence application lifecycle: submission
// behind the active-application guard, inspector assignment and review, card
// issuance, and the verification callbacks used by the checks worker.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"licence-service/internal/cache"
	stderrors "licence-service/internal/common/errors"
	"licence-service/internal/common/logger"
	"licence-service/internal/common/observability"
	"licence-service/internal/guard"
	"licence-service/internal/models"
	"licence-service/internal/notify"
	"licence-service/internal/scheduler"
	"licence-service/internal/store"

	"github.com/google/uuid"
)

const (
	defaultPageSize        = 10
	maxPageSize            = 100
	cardValidityYears      = 10
	DefaultCardMaxAttempts = 3
)

// ApplicationService owns every lifecycle operation. Status moves only through
// the store's conditional updates, so two coordinators racing on one row see
// exactly one winner.
type ApplicationService struct {
	store        *store.ApplicationStore
	guard        *guard.Guard
	cache        *cache.PendingReviewCache
	scheduler    scheduler.Scheduler
	notifier     notify.Notifier
	metrics      *observability.Observability
	logger       logger.Logger
	cardAttempts int
}

func New(
	st *store.ApplicationStore,
	g *guard.Guard,
	c *cache.PendingReviewCache,
	sched scheduler.Scheduler,
	notifier notify.Notifier,
	metrics *observability.Observability,
	log logger.Logger,
	cardAttempts int,
) *ApplicationService {
	if cardAttempts <= 0 {
		cardAttempts = DefaultCardMaxAttempts
	}
	return &ApplicationService{
		store:        st,
		guard:        g,
		cache:        c,
		scheduler:    sched,
		notifier:     notifier,
		metrics:      metrics,
		logger:       log.WithFields(map[string]interface{}{"component": "application-service"}),
		cardAttempts: cardAttempts,
	}
}

// Create validates the submission, takes the active-application guard, inserts
// the pending record and enqueues the external checks. The guard is released
// on every path that leaves no alive application behind.
func (s *ApplicationService) Create(ctx context.Context, req CreateApplicationRequest) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, stderrors.NewValidationFailedError(err.Error())
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return nil, stderrors.NewValidationFailedError(err.Error())
	}

	acquired, err := s.guard.TryAcquire(ctx, req.ApplicantID, category)
	if err != nil {
		return nil, stderrors.NewLockServiceFailedError(err)
	}
	if !acquired {
		return nil, stderrors.NewActiveApplicationExistsError(string(category))
	}

	app := &models.Application{
		ID:          uuid.NewString(),
		ApplicantID: req.ApplicantID,
		Iin:         req.Iin,
		FullName:    strings.TrimSpace(req.FullName),
		Category:    category,
		Status:      models.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, app); err != nil {
		// No alive row exists, so the guard must not linger.
		s.guard.Release(ctx, req.ApplicantID, category)
		return nil, stderrors.NewDatabaseFailedError(err)
	}

	if err := s.scheduler.EnqueueExternalChecks(ctx, app.ID); err != nil {
		// The pending row is alive, so the guard stays held. The enqueue is
		// reported for the caller to retry.
		s.logger.Error("external checks enqueue failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return nil, err
	}

	s.recordTransition(ctx, "", models.StatusPending)
	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"category":      string(category),
	})
	return app, nil
}

// Get returns the application with applicant, inspector and card resolved.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.store.GetWithDetails(ctx, id)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if app == nil {
		return nil, stderrors.NewNotFoundError(fmt.Sprintf("application %s", id))
	}
	return app, nil
}

// MyApplications lists the applicant's own applications, newest first.
func (s *ApplicationService) MyApplications(ctx context.Context, applicantID string, page, pageSize int) (*models.PagedResult, error) {
	page, pageSize = normalizePaging(page, pageSize)
	items, total, err := s.store.FindByApplicant(ctx, applicantID, page, pageSize)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	return pagedResult(items, total, page, pageSize), nil
}

// PendingApplications lists applications awaiting inspector assignment,
// oldest first, through the short-TTL read-through cache.
func (s *ApplicationService) PendingApplications(ctx context.Context, page, pageSize int) (*models.PagedResult, error) {
	page, pageSize = normalizePaging(page, pageSize)

	if cached := s.cache.Get(ctx, page, pageSize); cached != nil {
		return cached, nil
	}

	items, total, err := s.store.FindPendingReview(ctx, page, pageSize)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	result := pagedResult(items, total, page, pageSize)
	s.cache.Set(ctx, page, pageSize, result)
	return result, nil
}

// AssignToInspector claims an externally verified application for review. The
// conditional update makes concurrent claims on one application yield a single
// winner; losers get an invalid-status outcome.
func (s *ApplicationService) AssignToInspector(ctx context.Context, id, inspectorID string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if app == nil {
		return nil, stderrors.NewNotFoundError(fmt.Sprintf("application %s", id))
	}

	ok, err := s.store.AssignInspector(ctx, id, inspectorID)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if !ok {
		return nil, s.invalidStatusNow(ctx, id, "assign", app.Status)
	}

	s.cache.Invalidate(ctx)
	s.recordTransition(ctx, models.StatusExternalChecksPassed, models.StatusAssignedToInspector)

	app.Status = models.StatusAssignedToInspector
	app.InspectorID = &inspectorID
	return app, nil
}

// Review records the assigned inspector's decision. Only the inspector the
// application was assigned to may decide it. A rejection ends the lifecycle
// and releases the guard.
func (s *ApplicationService) Review(ctx context.Context, id, inspectorID string, req ReviewRequest) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, stderrors.NewValidationFailedError(err.Error())
	}

	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if app == nil {
		return nil, stderrors.NewNotFoundError(fmt.Sprintf("application %s", id))
	}
	if app.Status != models.StatusAssignedToInspector {
		return nil, stderrors.NewInvalidStatusError("review", string(app.Status))
	}
	if app.InspectorID == nil || *app.InspectorID != inspectorID {
		return nil, stderrors.NewForbiddenError(fmt.Sprintf("application %s", id))
	}

	to := models.StatusApproved
	if !req.Approved {
		to = models.StatusRejected
	}

	ok, err := s.store.RecordReview(ctx, id, to, req.RejectionReason)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if !ok {
		return nil, s.invalidStatusNow(ctx, id, "review", app.Status)
	}

	if to == models.StatusRejected {
		s.guard.Release(ctx, app.ApplicantID, app.Category)
	}
	s.recordTransition(ctx, models.StatusAssignedToInspector, to)
	s.notifyApplicant(ctx, id, to)

	app.Status = to
	app.RejectionReason = req.RejectionReason
	return app, nil
}

// PrintLicence issues the physical card for an approved application. The
// printed transition and the card insert commit together, with the conditional
// update as the single-winner gate; on a uniqueness collision the next
// candidate number is tried, up to the configured attempt budget. A failed
// issuance rolls the transition back, so the application stays approved and
// printable.
func (s *ApplicationService) PrintLicence(ctx context.Context, id string) (*models.LicenceCard, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if app == nil {
		return nil, stderrors.NewNotFoundError(fmt.Sprintf("application %s", id))
	}

	now := time.Now().UTC()
	candidates := make([]*models.LicenceCard, 0, s.cardAttempts)
	for i := 0; i < s.cardAttempts; i++ {
		candidates = append(candidates, &models.LicenceCard{
			ID:            uuid.NewString(),
			ApplicationID: id,
			CardNumber:    newCardNumber(now),
			Category:      app.Category,
			IssuedAt:      now,
			ExpiresAt:     now.AddDate(cardValidityYears, 0, 0),
		})
	}

	card, printed, err := s.store.MarkPrintedWithCard(ctx, id, candidates)
	if err != nil {
		return nil, stderrors.NewDatabaseFailedError(err)
	}
	if !printed {
		return nil, s.invalidStatusNow(ctx, id, "print", app.Status)
	}

	// Printed is terminal: the applicant may apply for this category again.
	s.guard.Release(ctx, app.ApplicantID, app.Category)
	s.recordTransition(ctx, models.StatusApproved, models.StatusPrinted)
	s.notifyApplicant(ctx, id, models.StatusPrinted)

	s.logger.Info("licence card issued", map[string]interface{}{
		"applicationId": id,
		"cardNumber":    card.CardNumber,
	})
	return card, nil
}

// BeginVerification is the worker's entry point. It returns the application
// snapshot and whether the checks should run. Redelivered jobs for already
// resolved applications report proceed=false with no error.
func (s *ApplicationService) BeginVerification(ctx context.Context, id string) (*models.Application, bool, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, stderrors.NewDatabaseFailedError(err)
	}
	if app == nil {
		return nil, false, nil
	}

	switch app.Status {
	case models.StatusPending:
		ok, err := s.store.MarkChecksStarted(ctx, id)
		if err != nil {
			return nil, false, stderrors.NewDatabaseFailedError(err)
		}
		if !ok {
			// Lost the race to another delivery of the same job.
			return app, false, nil
		}
		s.recordTransition(ctx, models.StatusPending, models.StatusExternalChecksInProgress)
		app.Status = models.StatusExternalChecksInProgress
		return app, true, nil

	case models.StatusExternalChecksInProgress:
		// A previous delivery died mid-flight; run the checks again.
		return app, true, nil

	default:
		return app, false, nil
	}
}

// CompleteVerification records both check outcomes and moves the application
// to passed or failed. A failed outcome is terminal and releases the guard.
// Returns false when another delivery already resolved the application.
func (s *ApplicationService) CompleteVerification(ctx context.Context, app *models.Application, authorityPassed, medicalPassed bool) (bool, error) {
	to := models.StatusExternalChecksPassed
	var reason *string
	if !authorityPassed || !medicalPassed {
		to = models.StatusExternalChecksFailed
		r := BuildFailureReason(authorityPassed, medicalPassed)
		reason = &r
	}

	ok, err := s.store.RecordCheckResults(ctx, app.ID, authorityPassed, medicalPassed, to, reason)
	if err != nil {
		return false, stderrors.NewDatabaseFailedError(err)
	}
	if !ok {
		return false, nil
	}

	if to == models.StatusExternalChecksFailed {
		s.guard.Release(ctx, app.ApplicantID, app.Category)
	} else {
		// The application just entered the awaiting-inspector queue.
		s.cache.Invalidate(ctx)
	}
	s.recordTransition(ctx, models.StatusExternalChecksInProgress, to)
	s.notifyApplicant(ctx, app.ID, to)
	return true, nil
}

// BuildFailureReason joins the human-readable reasons for every check that
// did not pass.
func BuildFailureReason(authorityPassed, medicalPassed bool) string {
	var parts []string
	if !authorityPassed {
		parts = append(parts, "authority check not passed")
	}
	if !medicalPassed {
		parts = append(parts, "medical check not passed")
	}
	return strings.Join(parts, "; ")
}

// invalidStatusNow re-reads the row so the error names the status the caller
// actually lost to, not the stale snapshot.
func (s *ApplicationService) invalidStatusNow(ctx context.Context, id, operation string, fallback models.Status) error {
	current := fallback
	if app, err := s.store.GetByID(ctx, id); err == nil && app != nil {
		current = app.Status
	}
	return stderrors.NewInvalidStatusError(operation, string(current))
}

// notifyApplicant is best effort: delivery failure never rolls back a
// persisted transition.
func (s *ApplicationService) notifyApplicant(ctx context.Context, id string, status models.Status) {
	if s.notifier == nil {
		return
	}
	details, err := s.store.GetWithDetails(ctx, id)
	if err != nil || details == nil || details.Applicant == nil {
		return
	}
	if err := s.notifier.NotifyStatus(ctx, details.Applicant.Email, id, status); err != nil {
		s.logger.Warn("status notification failed", map[string]interface{}{
			"applicationId": id,
			"status":        string(status),
			"error":         err.Error(),
		})
	}
}

func (s *ApplicationService) recordTransition(ctx context.Context, from, to models.Status) {
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, string(from), string(to))
	}
}

func newCardNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("DL-%s-%s", now.Format("20060102"), suffix)
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func pagedResult(items []*models.Application, total, page, pageSize int) *models.PagedResult {
	if items == nil {
		items = []*models.Application{}
	}
	return &models.PagedResult{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
}
