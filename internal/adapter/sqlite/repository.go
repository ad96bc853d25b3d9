package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/dvidales/appliq/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Fixed-width fraction so lexicographic order on the stored string equals
// chronological order; keyset pagination compares these strings in SQL.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Compile-time checks: ApplicationRepository covers both store contracts.
var (
	_ domain.ApplicationRepository = (*ApplicationRepository)(nil)
	_ domain.HistoryStore          = (*ApplicationRepository)(nil)
)

// ApplicationRepository implements the aggregate store and the history store
// using SQLite. The aggregate owns its tag/file reference rows and its
// history rows; deletes cascade through them in a fixed order.
type ApplicationRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready
// repository.
func New(dataSourceName string) (*ApplicationRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready repository. Use this when the *sql.DB has been
// pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*ApplicationRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &ApplicationRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *ApplicationRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (r *ApplicationRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Create inserts the application, its reference rows, and the seed history
// record in one transaction.
func (r *ApplicationRepository) Create(ctx context.Context, app domain.Application, seed domain.HistoryRecord) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO applications (id, applicant_id, product_id, status, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			app.ID, app.ApplicantID, app.ProductID, string(app.Status), app.Version,
			app.CreatedAt.UTC().Format(timeFormat),
			app.UpdatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("inserting application: %w", err)
		}

		if err := insertRefs(ctx, tx, "application_tags", "tag", app.ID, app.Tags); err != nil {
			return err
		}
		if err := insertRefs(ctx, tx, "application_files", "file_id", app.ID, app.Files); err != nil {
			return err
		}

		return insertHistory(ctx, tx, seed)
	})
}

// GetByID loads the aggregate with both reference sets materialized.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (domain.Application, error) {
	app, err := r.scanApplication(r.db.QueryRowContext(ctx,
		`SELECT id, applicant_id, product_id, status, version, created_at, updated_at
		 FROM applications WHERE id = ?`, id,
	), id)
	if err != nil {
		return domain.Application{}, err
	}

	refs, err := r.LoadRefs(ctx, []string{id})
	if err != nil {
		return domain.Application{}, err
	}
	app.Tags = refs[id].Tags
	app.Files = refs[id].Files

	return app, nil
}

// UpdateStatus writes the new status compare-and-swap on the version the
// caller read, appending the history record in the same transaction.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, app domain.Application, record domain.HistoryRecord) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.casBump(ctx, tx,
			`UPDATE applications SET status = ?, updated_at = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			app,
			string(app.Status), app.UpdatedAt.UTC().Format(timeFormat), app.ID, app.Version,
		); err != nil {
			return err
		}
		return insertHistory(ctx, tx, record)
	})
}

// ReplaceTags overwrites the tag set, compare-and-swap on the version.
func (r *ApplicationRepository) ReplaceTags(ctx context.Context, app domain.Application) error {
	return r.replaceRefs(ctx, app, "application_tags", "tag", app.Tags)
}

// ReplaceFiles overwrites the file reference set, compare-and-swap on the
// version.
func (r *ApplicationRepository) ReplaceFiles(ctx context.Context, app domain.Application) error {
	return r.replaceRefs(ctx, app, "application_files", "file_id", app.Files)
}

func (r *ApplicationRepository) replaceRefs(ctx context.Context, app domain.Application, table, column string, members []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.casBump(ctx, tx,
			`UPDATE applications SET updated_at = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			app,
			app.UpdatedAt.UTC().Format(timeFormat), app.ID, app.Version,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE application_id = ?`, app.ID,
		); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}

		return insertRefs(ctx, tx, table, column, app.ID, members)
	})
}

// casBump runs a version-guarded UPDATE and maps a zero-row result to
// NotFound or VersionConflict.
func (r *ApplicationRepository) casBump(ctx context.Context, tx *sql.Tx, query string, app domain.Application, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating application: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM applications WHERE id = ?`, app.ID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking application existence: %w", err)
		}
		if exists == 0 {
			return &domain.NotFoundError{Kind: "application", ID: app.ID}
		}
		return &domain.VersionConflictError{ApplicationID: app.ID, Version: app.Version}
	}
	return nil
}

// FirstPage returns the newest applications ordered by
// (created_at DESC, id DESC), without reference sets.
func (r *ApplicationRepository) FirstPage(ctx context.Context, limit int) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, applicant_id, product_id, status, version, created_at, updated_at
		 FROM applications
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying first page: %w", err)
	}
	return r.collectApplications(rows)
}

// PageAfter returns applications strictly before the (createdAt, id) tuple
// in the same ordering. The two-column comparison keeps rows with identical
// timestamps totally ordered across page boundaries.
func (r *ApplicationRepository) PageAfter(ctx context.Context, createdAt time.Time, id string, limit int) ([]domain.Application, error) {
	ts := createdAt.UTC().Format(timeFormat)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, applicant_id, product_id, status, version, created_at, updated_at
		 FROM applications
		 WHERE created_at < ? OR (created_at = ? AND id < ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, ts, ts, id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying page: %w", err)
	}
	return r.collectApplications(rows)
}

// LoadRefs batch-fetches tag and file reference sets for the given ids.
// Every requested id gets an entry, possibly empty.
func (r *ApplicationRepository) LoadRefs(ctx context.Context, ids []string) (map[string]domain.Refs, error) {
	out := make(map[string]domain.Refs, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = domain.Refs{}
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	tagRows, err := r.db.QueryContext(ctx,
		`SELECT application_id, tag FROM application_tags
		 WHERE application_id IN (`+in+`) ORDER BY application_id, tag`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	if err := collectRefs(tagRows, out, func(refs *domain.Refs, member string) {
		refs.Tags = append(refs.Tags, member)
	}); err != nil {
		return nil, err
	}

	fileRows, err := r.db.QueryContext(ctx,
		`SELECT application_id, file_id FROM application_files
		 WHERE application_id IN (`+in+`) ORDER BY application_id, file_id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	if err := collectRefs(fileRows, out, func(refs *domain.Refs, member string) {
		refs.Files = append(refs.Files, member)
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// FindIDsByApplicant returns the ids of every application filed by the
// applicant.
func (r *ApplicationRepository) FindIDsByApplicant(ctx context.Context, applicantID string) ([]string, error) {
	return r.collectIDs(ctx,
		`SELECT id FROM applications WHERE applicant_id = ? ORDER BY id`, applicantID)
}

// FindIDsByProduct returns the ids of every application for the product.
func (r *ApplicationRepository) FindIDsByProduct(ctx context.Context, productID string) ([]string, error) {
	return r.collectIDs(ctx,
		`SELECT id FROM applications WHERE product_id = ? ORDER BY id`, productID)
}

// DeleteCascade removes the matched applications as one atomic unit. Per
// application the order is fixed: file refs, history, tag refs, then the
// row itself.
func (r *ApplicationRepository) DeleteCascade(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	return r.inTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			name  string
			query string
		}{
			{"file refs", `DELETE FROM application_files WHERE application_id IN (` + in + `)`},
			{"history", `DELETE FROM application_history WHERE application_id IN (` + in + `)`},
			{"tag refs", `DELETE FROM application_tags WHERE application_id IN (` + in + `)`},
			{"applications", `DELETE FROM applications WHERE id IN (` + in + `)`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, args...); err != nil {
				return fmt.Errorf("deleting %s: %w", step.name, err)
			}
		}
		return nil
	})
}

// ListByApplication returns the audit log newest first.
func (r *ApplicationRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, application_id, old_status, new_status, changed_by_role, changed_at
		 FROM application_history
		 WHERE application_id = ?
		 ORDER BY changed_at DESC, id DESC`, applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var oldStatus sql.NullString
		var newStatus, role, changedAt string

		if err := rows.Scan(&rec.ID, &rec.ApplicationID, &oldStatus, &newStatus, &role, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if oldStatus.Valid {
			rec.OldStatus = domain.Status(oldStatus.String)
		}
		rec.NewStatus = domain.Status(newStatus)
		rec.ChangedByRole = domain.Role(role)
		rec.ChangedAt, _ = time.Parse(timeFormat, changedAt)

		records = append(records, rec)
	}

	return records, rows.Err()
}

// --- helpers ---

func (r *ApplicationRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertRefs(ctx context.Context, tx *sql.Tx, table, column, applicationID string, members []string) error {
	for _, member := range members {
		// INSERT OR IGNORE keeps reference rows set-valued.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (application_id, `+column+`) VALUES (?, ?)`,
			applicationID, member,
		); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, rec domain.HistoryRecord) error {
	var oldStatus any
	if rec.OldStatus != "" {
		oldStatus = string(rec.OldStatus)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO application_history (id, application_id, old_status, new_status, changed_by_role, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ApplicationID, oldStatus, string(rec.NewStatus), string(rec.ChangedByRole),
		rec.ChangedAt.UTC().Format(timeFormat),
	); err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) scanApplication(row *sql.Row, id string) (domain.Application, error) {
	var app domain.Application
	var status, createdAt, updatedAt string

	err := row.Scan(&app.ID, &app.ApplicantID, &app.ProductID, &status, &app.Version, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Application{}, &domain.NotFoundError{Kind: "application", ID: id}
		}
		return domain.Application{}, fmt.Errorf("scanning application: %w", err)
	}

	app.Status = domain.Status(status)
	app.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	app.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return app, nil
}

func (r *ApplicationRepository) collectApplications(rows *sql.Rows) ([]domain.Application, error) {
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		var app domain.Application
		var status, createdAt, updatedAt string

		if err := rows.Scan(&app.ID, &app.ApplicantID, &app.ProductID, &status, &app.Version, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		app.Status = domain.Status(status)
		app.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		app.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

		apps = append(apps, app)
	}

	return apps, rows.Err()
}

func (r *ApplicationRepository) collectIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectRefs(rows *sql.Rows, out map[string]domain.Refs, add func(*domain.Refs, string)) error {
	defer rows.Close()

	for rows.Next() {
		var applicationID, member string
		if err := rows.Scan(&applicationID, &member); err != nil {
			return fmt.Errorf("scanning reference row: %w", err)
		}
		refs := out[applicationID]
		add(&refs, member)
		out[applicationID] = refs
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
