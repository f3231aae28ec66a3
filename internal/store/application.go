// internal/store/application.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"licence-service/internal/models"

	"github.com/lib/pq"
)

// ErrCardNumberConflict signals that every candidate card number collided
// with an already issued one.
var ErrCardNumberConflict = errors.New("CARD_NUMBER_CONFLICT")

// ApplicationStore is the transactional record store for applications. All
// status mutations go through conditional updates keyed on the expected
// current status, so concurrent transition attempts on one row cannot both
// succeed.
type ApplicationStore struct {
	db *sql.DB
}

func New(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

const applicationColumns = `
	id, applicant_id, iin, full_name, category, status,
	inspector_id, rejection_reason, authority_check_passed, medical_check_passed,
	created_at, updated_at`

// GetByID returns the application, or nil if no such row exists.
func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1`, id)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return app, err
}

// GetWithDetails returns the application with applicant, inspector and licence
// card resolved, or nil if no such row exists.
func (s *ApplicationStore) GetWithDetails(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			a.id, a.applicant_id, a.iin, a.full_name, a.category, a.status,
			a.inspector_id, a.rejection_reason, a.authority_check_passed, a.medical_check_passed,
			a.created_at, a.updated_at,
			u.id, u.email, u.full_name, u.role,
			i.id, i.email, i.full_name, i.role,
			c.id, c.card_number, c.issued_at, c.expires_at
		FROM applications a
		JOIN users u ON u.id = a.applicant_id
		LEFT JOIN users i ON i.id = a.inspector_id
		LEFT JOIN licence_cards c ON c.application_id = a.id
		WHERE a.id = $1`, id)

	var (
		app                                        models.Application
		category, status                           string
		inspectorID, rejectionReason               sql.NullString
		authorityPassed, medicalPassed             sql.NullBool
		updatedAt                                  sql.NullTime
		applicant                                  models.User
		inspID, inspEmail, inspName, inspRole      sql.NullString
		cardID, cardNumber                         sql.NullString
		cardIssuedAt, cardExpiresAt                sql.NullTime
	)

	err := row.Scan(
		&app.ID, &app.ApplicantID, &app.Iin, &app.FullName, &category, &status,
		&inspectorID, &rejectionReason, &authorityPassed, &medicalPassed,
		&app.CreatedAt, &updatedAt,
		&applicant.ID, &applicant.Email, &applicant.FullName, &applicant.Role,
		&inspID, &inspEmail, &inspName, &inspRole,
		&cardID, &cardNumber, &cardIssuedAt, &cardExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application with details: %w", err)
	}

	if err := hydrateApplication(&app, category, status, inspectorID, rejectionReason, authorityPassed, medicalPassed, updatedAt); err != nil {
		return nil, err
	}
	app.Applicant = &applicant
	if inspID.Valid {
		app.Inspector = &models.User{
			ID:       inspID.String,
			Email:    inspEmail.String,
			FullName: inspName.String,
			Role:     inspRole.String,
		}
	}
	if cardID.Valid {
		app.LicenceCard = &models.LicenceCard{
			ID:            cardID.String,
			ApplicationID: app.ID,
			CardNumber:    cardNumber.String,
			Category:      app.Category,
			IssuedAt:      cardIssuedAt.Time,
			ExpiresAt:     cardExpiresAt.Time,
		}
	}
	return &app, nil
}

// FindByApplicant lists the applicant's applications, newest first.
func (s *ApplicationStore) FindByApplicant(ctx context.Context, applicantID string, page, pageSize int) ([]*models.Application, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applications WHERE applicant_id = $1`, applicantID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, applicantID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	items, err := collectApplications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindPendingReview lists applications awaiting inspector assignment, oldest
// first so the queue drains fairly.
func (s *ApplicationStore) FindPendingReview(ctx context.Context, page, pageSize int) ([]*models.Application, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applications WHERE status = $1`,
		string(models.StatusExternalChecksPassed)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending review: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`,
		string(models.StatusExternalChecksPassed), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending review: %w", err)
	}
	defer rows.Close()

	items, err := collectApplications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExistsActive reports whether a still-alive application exists for the
// (applicant, category) pair. This is the correctness backstop behind the
// advisory lock.
func (s *ApplicationStore) ExistsActive(ctx context.Context, applicantID string, category models.Category) (bool, error) {
	active := make([]string, 0, len(models.ActiveStatuses))
	for _, st := range models.ActiveStatuses {
		active = append(active, string(st))
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE applicant_id = $1 AND category = $2 AND status = ANY($3)
		)`, applicantID, string(category), pq.Array(active)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("active application check: %w", err)
	}
	return exists, nil
}

// Insert persists a freshly created application.
func (s *ApplicationStore) Insert(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, applicant_id, iin, full_name, category, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.ApplicantID, app.Iin, app.FullName,
		string(app.Category), string(app.Status), app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// MarkChecksStarted moves pending -> external_checks_in_progress. Returns
// false without error when the row is missing or already past pending.
func (s *ApplicationStore) MarkChecksStarted(ctx context.Context, id string) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE applications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(models.StatusExternalChecksInProgress), time.Now().UTC(),
		id, string(models.StatusPending))
}

// RecordCheckResults moves external_checks_in_progress to the passed/failed
// outcome, recording both check booleans together.
func (s *ApplicationStore) RecordCheckResults(ctx context.Context, id string, authorityPassed, medicalPassed bool, to models.Status, reason *string) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE applications
		SET status = $1, authority_check_passed = $2, medical_check_passed = $3,
		    rejection_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		string(to), authorityPassed, medicalPassed, reason, time.Now().UTC(),
		id, string(models.StatusExternalChecksInProgress))
}

// AssignInspector moves external_checks_passed -> assigned_to_inspector.
func (s *ApplicationStore) AssignInspector(ctx context.Context, id, inspectorID string) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE applications
		SET status = $1, inspector_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(models.StatusAssignedToInspector), inspectorID, time.Now().UTC(),
		id, string(models.StatusExternalChecksPassed))
}

// RecordReview moves assigned_to_inspector to approved/rejected.
func (s *ApplicationStore) RecordReview(ctx context.Context, id string, to models.Status, reason *string) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE applications
		SET status = $1, rejection_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(to), reason, time.Now().UTC(),
		id, string(models.StatusAssignedToInspector))
}

// MarkPrintedWithCard moves approved -> printed and persists the issued card
// in one transaction, so a failed card insert can never leave a printed row
// without its credential. Candidates are tried in order; a unique-violation on
// the card number rolls back to a savepoint and moves on to the next one.
// Returns false without error when the row lost the status race, and an error
// wrapping ErrCardNumberConflict when every candidate collided.
func (s *ApplicationStore) MarkPrintedWithCard(ctx context.Context, id string, candidates []*models.LicenceCard) (*models.LicenceCard, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin print transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(models.StatusPrinted), time.Now().UTC(),
		id, string(models.StatusApproved))
	if err != nil {
		return nil, false, fmt.Errorf("transition update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("transition update rows: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	for _, card := range candidates {
		// A failed statement aborts the surrounding transaction, so each
		// insert attempt runs under its own savepoint.
		if _, err := tx.ExecContext(ctx, `SAVEPOINT card_insert`); err != nil {
			return nil, false, fmt.Errorf("card insert savepoint: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO licence_cards (
				id, application_id, card_number, category, issued_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			card.ID, card.ApplicationID, card.CardNumber,
			string(card.Category), card.IssuedAt, card.ExpiresAt,
		)
		if err == nil {
			if err := tx.Commit(); err != nil {
				return nil, false, fmt.Errorf("commit print transaction: %w", err)
			}
			return card, true, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT card_insert`); err != nil {
				return nil, false, fmt.Errorf("card insert savepoint rollback: %w", err)
			}
			continue
		}
		return nil, false, fmt.Errorf("insert licence card: %w", err)
	}
	return nil, false, fmt.Errorf("%w: exhausted %d candidates", ErrCardNumberConflict, len(candidates))
}

func (s *ApplicationStore) conditionalUpdate(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition update rows: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app                            models.Application
		category, status               string
		inspectorID, rejectionReason   sql.NullString
		authorityPassed, medicalPassed sql.NullBool
		updatedAt                      sql.NullTime
	)
	err := row.Scan(
		&app.ID, &app.ApplicantID, &app.Iin, &app.FullName, &category, &status,
		&inspectorID, &rejectionReason, &authorityPassed, &medicalPassed,
		&app.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := hydrateApplication(&app, category, status, inspectorID, rejectionReason, authorityPassed, medicalPassed, updatedAt); err != nil {
		return nil, err
	}
	return &app, nil
}

func hydrateApplication(
	app *models.Application,
	category, status string,
	inspectorID, rejectionReason sql.NullString,
	authorityPassed, medicalPassed sql.NullBool,
	updatedAt sql.NullTime,
) error {
	parsedStatus, err := models.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("application %s: %w", app.ID, err)
	}
	app.Status = parsedStatus
	app.Category = models.Category(category)
	if inspectorID.Valid {
		app.InspectorID = &inspectorID.String
	}
	if rejectionReason.Valid {
		app.RejectionReason = &rejectionReason.String
	}
	if authorityPassed.Valid {
		app.AuthorityCheckPassed = &authorityPassed.Bool
	}
	if medicalPassed.Valid {
		app.MedicalCheckPassed = &medicalPassed.Bool
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		app.UpdatedAt = &t
	}
	return nil
}

func collectApplications(rows *sql.Rows) ([]*models.Application, error) {
	var items []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		items = append(items, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return items, nil
}
