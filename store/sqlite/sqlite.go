/*
Package sqlite provides a SQLite-backed implementation of engine.TxStore.

PURPOSE:
  Persists postings, offerings, duty descriptions, contracts and their course
  assignments. Aggregates (required BU, assigned BU, totals) are never stored;
  the engine recomputes them from these rows on every read.

KEY TABLES:
  postings:           Unit + semester, typed rate table stored as JSON,
                      payroll export sequence
  offerings:          Course offering facts plus the administrator's extra BU
  duty_descriptions:  Assignment duty text and the lab/tutorial flag
  contracts:          One per (posting, application), rates captured at creation
  course_assignments: One per (contract, offering)

ATOMIC SAVES:
  UpdateContract rewrites the contract row and its whole assignment set in one
  database transaction. Service code calls it through WithTx together with any
  status reset, so a half-applied edit is never visible.

CONCURRENCY:
  A single connection serializes all statements, and sync.RWMutex keeps one
  writer transaction at a time. Reads inside WithTx run on the transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and a busy timeout.

USAGE:
  store, err := sqlite.New("./data/taengine.db", logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Versioned migrations in migrations/ are embedded and applied on New() with
  golang-migrate.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
  - factory/posting.go: Rate table JSON
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
	"github.com/warp/ta-engine/factory"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{queries: queries{db: db}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITES - each runs in its own transaction
// =============================================================================

func (s *Store) SavePosting(ctx context.Context, p engine.Posting) error {
	return s.WithTx(ctx, func(st engine.Store) error { return st.SavePosting(ctx, p) })
}

func (s *Store) SaveOffering(ctx context.Context, o engine.Offering) error {
	return s.WithTx(ctx, func(st engine.Store) error { return st.SaveOffering(ctx, o) })
}

func (s *Store) SaveDescription(ctx context.Context, d engine.DutyDescription) error {
	return s.WithTx(ctx, func(st engine.Store) error { return st.SaveDescription(ctx, d) })
}

func (s *Store) CreateContract(ctx context.Context, c engine.Contract) error {
	return s.WithTx(ctx, func(st engine.Store) error { return st.CreateContract(ctx, c) })
}

func (s *Store) UpdateContract(ctx context.Context, c engine.Contract) error {
	return s.WithTx(ctx, func(st engine.Store) error { return st.UpdateContract(ctx, c) })
}

func (s *Store) NextExportSequence(ctx context.Context, posting engine.PostingID) (int, error) {
	var seq int
	err := s.WithTx(ctx, func(st engine.Store) error {
		var err error
		seq, err = st.NextExportSequence(ctx, posting)
		return err
	})
	return seq, err
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - shared by Store (reads) and transactions (reads and writes)
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements engine.Store over a connection or a transaction.
type queries struct {
	db dbtx
}

// =============================================================================
// POSTINGS
// =============================================================================

const postingColumns = `id, unit_label, semester, rates_json, appointment_start, appointment_end,
	pay_start, pay_end, deadline, export_sequence`

func (q *queries) GetPosting(ctx context.Context, id engine.PostingID) (engine.Posting, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Posting{}, fmt.Errorf("posting %s: %w", id, engine.ErrNotFound)
	}
	return p, err
}

func (q *queries) PostingFor(ctx context.Context, unitLabel string, semester engine.SemesterCode) (engine.Posting, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE unit_label = ? AND semester = ?`,
		unitLabel, semester)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Posting{}, fmt.Errorf("posting for %s %s: %w", unitLabel, semester, engine.ErrNotFound)
	}
	return p, err
}

func (q *queries) SavePosting(ctx context.Context, p engine.Posting) error {
	rates, err := factory.EncodeRates(p.Rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}

	query := `
		INSERT INTO postings (` + postingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_label = excluded.unit_label,
			semester = excluded.semester,
			rates_json = excluded.rates_json,
			appointment_start = excluded.appointment_start,
			appointment_end = excluded.appointment_end,
			pay_start = excluded.pay_start,
			pay_end = excluded.pay_end,
			deadline = excluded.deadline
	`
	_, err = q.db.ExecContext(ctx, query,
		p.ID, p.UnitLabel, p.Semester, string(rates),
		formatTime(p.AppointmentStart), formatTime(p.AppointmentEnd),
		formatTime(p.PayStart), formatTime(p.PayEnd), formatTime(p.Deadline),
		p.ExportSequence,
	)
	if err != nil {
		return fmt.Errorf("failed to save posting: %w", err)
	}
	return nil
}

// NextExportSequence increments the counter in the same transaction that reads
// it, so two exports never share a batch ID.
func (q *queries) NextExportSequence(ctx context.Context, posting engine.PostingID) (int, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE postings SET export_sequence = export_sequence + 1 WHERE id = ?`, posting)
	if err != nil {
		return 0, fmt.Errorf("failed to increment export sequence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("posting %s: %w", posting, engine.ErrNotFound)
	}

	var seq int
	err = q.db.QueryRowContext(ctx, `SELECT export_sequence FROM postings WHERE id = ?`, posting).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read export sequence: %w", err)
	}
	return seq, nil
}

func scanPosting(row *sql.Row) (engine.Posting, error) {
	var (
		p                                   engine.Posting
		rates                               string
		apptStart, apptEnd, payStart, payEnd string
		deadline                            string
	)
	err := row.Scan(&p.ID, &p.UnitLabel, &p.Semester, &rates,
		&apptStart, &apptEnd, &payStart, &payEnd, &deadline, &p.ExportSequence)
	if err != nil {
		return engine.Posting{}, err
	}

	p.Rates, err = factory.DecodeRates(p.ID, []byte(rates))
	if err != nil {
		return engine.Posting{}, err
	}
	p.AppointmentStart = parseTime(apptStart)
	p.AppointmentEnd = parseTime(apptEnd)
	p.PayStart = parseTime(payStart)
	p.PayEnd = parseTime(payEnd)
	p.Deadline = parseTime(deadline)
	return p, nil
}

// =============================================================================
// OFFERINGS (engine.FactsProvider)
// =============================================================================

const offeringColumns = `id, unit_label, semester, subject, number, section,
	enrollment_total, enrollment_cap, has_labs, is_writing_course, extra_bu`

func (q *queries) GetOffering(ctx context.Context, id engine.OfferingID) (engine.Offering, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+offeringColumns+` FROM offerings WHERE id = ?`, id)
	if err != nil {
		return engine.Offering{}, fmt.Errorf("failed to query offering: %w", err)
	}
	offerings, err := scanOfferings(rows)
	if err != nil {
		return engine.Offering{}, err
	}
	if len(offerings) == 0 {
		return engine.Offering{}, fmt.Errorf("offering %s: %w", id, engine.ErrNotFound)
	}
	return offerings[0], nil
}

func (q *queries) SaveOffering(ctx context.Context, o engine.Offering) error {
	query := `
		INSERT INTO offerings (` + offeringColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_label = excluded.unit_label,
			semester = excluded.semester,
			subject = excluded.subject,
			number = excluded.number,
			section = excluded.section,
			enrollment_total = excluded.enrollment_total,
			enrollment_cap = excluded.enrollment_cap,
			has_labs = excluded.has_labs,
			is_writing_course = excluded.is_writing_course,
			extra_bu = excluded.extra_bu
	`
	_, err := q.db.ExecContext(ctx, query,
		o.ID, o.UnitLabel, o.Semester, o.Subject, o.Number, o.Section,
		o.EnrollmentTotal, o.EnrollmentCap, o.HasLabs, o.IsWritingCourse, o.ExtraBU,
	)
	if err != nil {
		return fmt.Errorf("failed to save offering: %w", err)
	}
	return nil
}

func (q *queries) ListOfferings(ctx context.Context, unitLabel string, semester engine.SemesterCode) ([]engine.Offering, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings WHERE unit_label = ? AND semester = ?
		 ORDER BY subject, number, section`,
		unitLabel, semester)
	if err != nil {
		return nil, fmt.Errorf("failed to query offerings: %w", err)
	}
	return scanOfferings(rows)
}

func scanOfferings(rows *sql.Rows) ([]engine.Offering, error) {
	defer rows.Close()

	var offerings []engine.Offering
	for rows.Next() {
		var o engine.Offering
		err := rows.Scan(&o.ID, &o.UnitLabel, &o.Semester, &o.Subject, &o.Number, &o.Section,
			&o.EnrollmentTotal, &o.EnrollmentCap, &o.HasLabs, &o.IsWritingCourse, &o.ExtraBU)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

// =============================================================================
// DUTY DESCRIPTIONS
// =============================================================================

const descriptionColumns = `id, unit_label, description, is_lab_or_tutorial, hidden`

func (q *queries) GetDescription(ctx context.Context, id engine.DescriptionID) (engine.DutyDescription, error) {
	var d engine.DutyDescription
	err := q.db.QueryRowContext(ctx,
		`SELECT `+descriptionColumns+` FROM duty_descriptions WHERE id = ?`, id,
	).Scan(&d.ID, &d.UnitLabel, &d.Description, &d.IsLabOrTutorial, &d.Hidden)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.DutyDescription{}, fmt.Errorf("duty description %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return engine.DutyDescription{}, fmt.Errorf("failed to get duty description: %w", err)
	}
	return d, nil
}

func (q *queries) SaveDescription(ctx context.Context, d engine.DutyDescription) error {
	query := `
		INSERT INTO duty_descriptions (` + descriptionColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_label = excluded.unit_label,
			description = excluded.description,
			is_lab_or_tutorial = excluded.is_lab_or_tutorial,
			hidden = excluded.hidden
	`
	_, err := q.db.ExecContext(ctx, query, d.ID, d.UnitLabel, d.Description, d.IsLabOrTutorial, d.Hidden)
	if err != nil {
		return fmt.Errorf("failed to save duty description: %w", err)
	}
	return nil
}

func (q *queries) ListDescriptions(ctx context.Context, unitLabel string) ([]engine.DutyDescription, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+descriptionColumns+` FROM duty_descriptions WHERE unit_label = ? ORDER BY id`, unitLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to query duty descriptions: %w", err)
	}
	defer rows.Close()

	var descs []engine.DutyDescription
	for rows.Next() {
		var d engine.DutyDescription
		if err := rows.Scan(&d.ID, &d.UnitLabel, &d.Description, &d.IsLabOrTutorial, &d.Hidden); err != nil {
			return nil, fmt.Errorf("failed to scan duty description: %w", err)
		}
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

// =============================================================================
// CONTRACTS
// =============================================================================

const contractColumns = `id, posting_id, application_id, person_id, employee_id, name, category,
	status, pay_per_bu, scholarship_per_bu, account_id, appointment_start, appointment_end,
	pay_start, pay_end, deadline, comments, created_at, updated_at`

const assignmentQuery = `
	SELECT a.id, a.contract_id, a.offering_id, a.bu,
	       d.id, d.unit_label, d.description, d.is_lab_or_tutorial, d.hidden
	FROM course_assignments a
	JOIN duty_descriptions d ON d.id = a.description_id
	JOIN contracts c ON c.id = a.contract_id
`

func (q *queries) GetContract(ctx context.Context, id engine.ContractID) (engine.Contract, error) {
	contracts, err := q.queryContracts(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = ?`,
		assignmentQuery+` WHERE a.contract_id = ? ORDER BY a.rowid`, id)
	if err != nil {
		return engine.Contract{}, err
	}
	if len(contracts) == 0 {
		return engine.Contract{}, fmt.Errorf("contract %s: %w", id, engine.ErrNotFound)
	}
	return contracts[0], nil
}

func (q *queries) ListContracts(ctx context.Context, posting engine.PostingID) ([]engine.Contract, error) {
	return q.queryContracts(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE posting_id = ? ORDER BY created_at, id`,
		assignmentQuery+` WHERE c.posting_id = ? ORDER BY a.rowid`, posting)
}

func (q *queries) CreateContract(ctx context.Context, c engine.Contract) error {
	query := `INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.db.ExecContext(ctx, query,
		c.ID, c.PostingID, c.ApplicationID, c.PersonID, c.EmployeeID, c.Name, c.Category,
		c.Status, c.PayPerBU, c.ScholarshipPerBU, c.AccountID,
		formatTime(c.AppointmentStart), formatTime(c.AppointmentEnd),
		formatTime(c.PayStart), formatTime(c.PayEnd), formatTime(c.Deadline),
		c.Comments, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateContract
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return q.insertAssignments(ctx, c)
}

func (q *queries) UpdateContract(ctx context.Context, c engine.Contract) error {
	query := `
		UPDATE contracts SET
			employee_id = ?, name = ?, category = ?, status = ?,
			pay_per_bu = ?, scholarship_per_bu = ?, account_id = ?,
			appointment_start = ?, appointment_end = ?, pay_start = ?, pay_end = ?,
			deadline = ?, comments = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := q.db.ExecContext(ctx, query,
		c.EmployeeID, c.Name, c.Category, c.Status,
		c.PayPerBU, c.ScholarshipPerBU, c.AccountID,
		formatTime(c.AppointmentStart), formatTime(c.AppointmentEnd),
		formatTime(c.PayStart), formatTime(c.PayEnd),
		formatTime(c.Deadline), c.Comments, formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contract %s: %w", c.ID, engine.ErrNotFound)
	}

	if _, err := q.db.ExecContext(ctx, `DELETE FROM course_assignments WHERE contract_id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to clear course assignments: %w", err)
	}
	return q.insertAssignments(ctx, c)
}

func (q *queries) insertAssignments(ctx context.Context, c engine.Contract) error {
	for _, a := range c.Assignments {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO course_assignments (id, contract_id, offering_id, bu, description_id)
			 VALUES (?, ?, ?, ?, ?)`,
			a.ID, c.ID, a.OfferingID, a.BU, a.Description.ID)
		if err != nil {
			if isUniqueConstraintError(err) {
				verr := &engine.ValidationError{}
				verr.Add("assignments", "course %s is selected more than once", a.OfferingID)
				return verr
			}
			return fmt.Errorf("failed to insert course assignment: %w", err)
		}
	}
	return nil
}

// queryContracts loads contract rows, then their assignments. The contract rows
// are fully read before the second query runs on the single connection.
func (q *queries) queryContracts(ctx context.Context, contractQuery, assignmentQuery string, arg any) ([]engine.Contract, error) {
	rows, err := q.db.QueryContext(ctx, contractQuery, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}

	var contracts []engine.Contract
	index := make(map[engine.ContractID]int)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(contracts)
		contracts = append(contracts, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}

	arows, err := q.db.QueryContext(ctx, assignmentQuery, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query course assignments: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var a engine.CourseAssignment
		d := &a.Description
		if err := arows.Scan(&a.ID, &a.ContractID, &a.OfferingID, &a.BU,
			&d.ID, &d.UnitLabel, &d.Description, &d.IsLabOrTutorial, &d.Hidden); err != nil {
			return nil, fmt.Errorf("failed to scan course assignment: %w", err)
		}
		if i, ok := index[a.ContractID]; ok {
			contracts[i].Assignments = append(contracts[i].Assignments, a)
		}
	}
	return contracts, arows.Err()
}

func scanContract(rows *sql.Rows) (engine.Contract, error) {
	var (
		c                                    engine.Contract
		payPerBU, scholarshipPerBU           decimal.Decimal
		apptStart, apptEnd, payStart, payEnd string
		deadline, createdAt, updatedAt       string
	)
	err := rows.Scan(
		&c.ID, &c.PostingID, &c.ApplicationID, &c.PersonID, &c.EmployeeID, &c.Name, &c.Category,
		&c.Status, &payPerBU, &scholarshipPerBU, &c.AccountID,
		&apptStart, &apptEnd, &payStart, &payEnd, &deadline, &c.Comments, &createdAt, &updatedAt,
	)
	if err != nil {
		return engine.Contract{}, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.PayPerBU = payPerBU
	c.ScholarshipPerBU = scholarshipPerBU
	c.AppointmentStart = parseTime(apptStart)
	c.AppointmentEnd = parseTime(apptEnd)
	c.PayStart = parseTime(payStart)
	c.PayEnd = parseTime(payEnd)
	c.Deadline = parseTime(deadline)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// Helper functions

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
