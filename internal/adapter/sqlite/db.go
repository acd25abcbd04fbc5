package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/neomorfeo/propertiq/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store gives access to every SQLite-backed repository over one connection pool.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; ":memory:" databases are also per connection.
	db.SetMaxOpenConns(1)

	store, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := configure(db); err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Interventions returns the intervention repository.
func (s *Store) Interventions() *InterventionRepository { return &InterventionRepository{db: s.db} }

// Assignments returns the intervention assignment repository.
func (s *Store) Assignments() *AssignmentRepository { return &AssignmentRepository{db: s.db} }

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{db: s.db} }

// Teams returns the team repository.
func (s *Store) Teams() *TeamRepository { return &TeamRepository{db: s.db} }

// Buildings returns the building repository.
func (s *Store) Buildings() *BuildingRepository { return &BuildingRepository{db: s.db} }

// Lots returns the lot repository.
func (s *Store) Lots() *LotRepository { return &LotRepository{db: s.db} }

// Contacts returns the building and lot contact repository.
func (s *Store) Contacts() *ContactRepository { return &ContactRepository{db: s.db} }

// pragmas apply to the single pooled connection before migrations run.
// Foreign keys are off by default in SQLite.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

func configure(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return nil
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

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeError wraps a driver failure into a domain.RepositoryError, keeping
// the SQLite result code.
func storeError(op string, err error) error {
	repoErr := &domain.RepositoryError{Op: op, Message: err.Error(), Err: err}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		repoErr.Code = sqlite.ErrorCodeString[sqliteErr.Code()]
		repoErr.Details = sqliteErr.Error()
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			repoErr.Hint = "check that referenced rows exist"
		}
	}
	return repoErr
}

// mustAffect turns a zero-row update or delete into a NotFoundError.
func mustAffect(result sql.Result, op, resource, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return storeError(op, err)
	}
	if rows == 0 {
		return domain.NewNotFound(resource, id)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
