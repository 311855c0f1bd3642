package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/reviewdesk/internal/models"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteBusyTimeout is how long a sqlite writer waits for the write lock.
const sqliteBusyTimeout = time.Minute

var reviewColumns = []string{
	"id", "company_id", "content", "rating", "review_date", "platform",
	"sentiment", "sentiment_score", "department_assigned", "processed", "created_at",
}

// SQLStore implements Store on database/sql for sqlite3 and postgres.
type SQLStore struct {
	db               *sql.DB
	driver           string
	sb               sq.StatementBuilderType
	statementTimeout time.Duration
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithStatementTimeout bounds every statement issued by the store.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *SQLStore) { s.statementTimeout = d }
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.db.SetMaxOpenConns(n)
		}
	}
}

// Open opens the store for driver. For sqlite3, dsn is a database file path and parent
// directories are created if they do not exist; for postgres, dsn is a connection string.
func Open(driver, dsn string, opts ...Option) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(dsn, opts...)
	case DriverPostgres:
		return NewPostgresStore(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// Ingest transactions read before they write and stay open across inference calls.
	// Deferred transactions would fail to upgrade under concurrent writers, so every
	// transaction takes the write lock at BEGIN and waiters queue on the busy timeout.
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_txlock=immediate&_busy_timeout=%d", dbPath, sqliteBusyTimeout.Milliseconds())
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return newSQLStore(db, DriverSQLite, sq.Question, sqliteSchema, opts)
}

// NewPostgresStore connects to Postgres using dsn and initializes the schema.
func NewPostgresStore(dsn string, opts ...Option) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(db, DriverPostgres, sq.Dollar, postgresSchema, opts)
}

func newSQLStore(db *sql.DB, driver string, ph sq.PlaceholderFormat, schema string, opts []Option) (*SQLStore, error) {
	s := &SQLStore{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(ph),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statementTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.statementTimeout)
}

// BeginTx opens a transaction.
func (s *SQLStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{tx: tx, store: s}, nil
}

// CreateCompany inserts a company and sets its ID and CreatedAt.
func (s *SQLStore) CreateCompany(ctx context.Context, c *models.Company) error {
	c.CreatedAt = time.Now().UTC()
	query, args, err := s.sb.Insert("financial_companies").
		Columns("name", "app_id", "category", "created_at").
		Values(c.Name, c.AppID, nullString(c.Category), c.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert company: %w", classify(err))
	}
	return nil
}

// GetCompany returns a company by ID.
func (s *SQLStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	return s.getCompany(ctx, s.db, id)
}

func (s *SQLStore) getCompany(ctx context.Context, q querier, id int64) (*models.Company, error) {
	query, args, err := s.sb.Select("id", "name", "app_id", "category", "created_at").
		From("financial_companies").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	c, err := scanCompany(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCompanies returns all companies ordered by ID.
func (s *SQLStore) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	query, args, err := s.sb.Select("id", "name", "app_id", "category", "created_at").
		From("financial_companies").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// DeleteCompany removes a company; its reviews are removed by the cascading foreign key.
func (s *SQLStore) DeleteCompany(ctx context.Context, id int64) error {
	query, args, err := s.sb.Delete("financial_companies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, query, args, fmt.Sprintf("company %d", id))
}

// CreateDepartment inserts a department and sets its ID and CreatedAt.
func (s *SQLStore) CreateDepartment(ctx context.Context, d *models.Department) error {
	keywords, err := json.Marshal(nonNilStrings(d.Keywords))
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	d.CreatedAt = time.Now().UTC()
	query, args, err := s.sb.Insert("departments").
		Columns("name", "description", "keywords", "created_at").
		Values(d.Name, nullString(d.Description), string(keywords), d.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&d.ID); err != nil {
		return fmt.Errorf("insert department: %w", classify(err))
	}
	return nil
}

// ListDepartments returns the department catalog ordered by ID.
func (s *SQLStore) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	return s.listDepartments(ctx, s.db)
}

func (s *SQLStore) listDepartments(ctx context.Context, q querier) ([]*models.Department, error) {
	query, args, err := s.sb.Select("id", "name", "description", "keywords", "created_at").
		From("departments").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []*models.Department
	for rows.Next() {
		var d models.Department
		var description, keywords sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &description, &keywords, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Description = description.String
		d.Keywords = []string{}
		if keywords.String != "" {
			if err := json.Unmarshal([]byte(keywords.String), &d.Keywords); err != nil {
				return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
			}
		}
		departments = append(departments, &d)
	}
	return departments, rows.Err()
}

// GetReview returns a review by ID.
func (s *SQLStore) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	query, args, err := s.sb.Select(reviewColumns...).From("reviews").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	r, err := scanReview(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetReviewsByIDs returns the reviews with the given IDs ordered by ID. Unknown IDs are skipped.
func (s *SQLStore) GetReviewsByIDs(ctx context.Context, ids []int64) ([]*models.Review, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryReviews(ctx, s.sb.Select(reviewColumns...).
		From("reviews").
		Where(sq.Eq{"id": ids}).
		OrderBy("id"))
}

// ListReviews returns reviews matching filter, newest first.
func (s *SQLStore) ListReviews(ctx context.Context, filter models.ReviewFilter) ([]*models.Review, error) {
	b := s.sb.Select(reviewColumns...).From("reviews")
	if filter.CompanyID != nil {
		b = b.Where(sq.Eq{"company_id": *filter.CompanyID})
	}
	if filter.Sentiment != "" {
		b = b.Where(sq.Eq{"sentiment": string(filter.Sentiment)})
	}
	if filter.Department != "" {
		b = b.Where(sq.Eq{"department_assigned": filter.Department})
	}
	b = b.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	return s.queryReviews(ctx, b)
}

func (s *SQLStore) queryReviews(ctx context.Context, b sq.SelectBuilder) ([]*models.Review, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*models.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ReviewIDsByCompany returns the IDs of all reviews of a company.
func (s *SQLStore) ReviewIDsByCompany(ctx context.Context, companyID int64) ([]int64, error) {
	query, args, err := s.sb.Select("id").From("reviews").Where(sq.Eq{"company_id": companyID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteReview removes a review by ID.
func (s *SQLStore) DeleteReview(ctx context.Context, id int64) error {
	query, args, err := s.sb.Delete("reviews").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, query, args, fmt.Sprintf("review %d", id))
}

// CountSentiments returns sentiment counts, optionally scoped to one company. Reviews without
// a sentiment count toward Total only.
func (s *SQLStore) CountSentiments(ctx context.Context, companyID *int64) (*models.SentimentStats, error) {
	b := s.sb.Select("sentiment", "COUNT(*)").From("reviews")
	if companyID != nil {
		b = b.Where(sq.Eq{"company_id": *companyID})
	}
	query, args, err := b.GroupBy("sentiment").ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.SentimentStats{}
	for rows.Next() {
		var sentiment sql.NullString
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		switch models.Sentiment(sentiment.String) {
		case models.SentimentPositive:
			stats.Positive += n
		case models.SentimentNegative:
			stats.Negative += n
		case models.SentimentNeutral:
			stats.Neutral += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.ComputeRatios()
	return stats, nil
}

// ListAgentLogs returns the action log of a review in insertion order.
func (s *SQLStore) ListAgentLogs(ctx context.Context, reviewID int64) ([]*models.AgentActionLog, error) {
	query, args, err := s.sb.Select("id", "review_id", "agent_name", "action", "result", "duration_ms", "created_at").
		From("agent_logs").
		Where(sq.Eq{"review_id": reviewID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.AgentActionLog{}
	for rows.Next() {
		var l models.AgentActionLog
		var result sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&l.ID, &l.ReviewID, &l.AgentName, &l.Action, &result, &duration, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Result = result.String
		l.DurationMS = duration.Int64
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) execOne(ctx context.Context, query string, args []any, what string) error {
	ctx, cancel := s.stmtCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// sqlTx implements Tx on a *sql.Tx.
type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	return t.store.getCompany(ctx, t.tx, id)
}

func (t *sqlTx) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	return t.store.listDepartments(ctx, t.tx)
}

func (t *sqlTx) InsertReview(ctx context.Context, r *models.Review) error {
	r.CreatedAt = time.Now().UTC()
	query, args, err := t.store.sb.Insert("reviews").
		Columns(reviewColumns[1:]...).
		Values(
			r.CompanyID,
			r.Content,
			nullInt(r.Rating),
			nullTime(r.ReviewDate),
			string(r.Platform),
			nullString(string(r.Sentiment)),
			nullFloat(r.SentimentScore),
			nullString(r.DepartmentAssigned),
			r.Processed,
			r.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	ctx, cancel := t.store.stmtCtx(ctx)
	defer cancel()
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&r.ID); err != nil {
		return fmt.Errorf("insert review: %w", classify(err))
	}
	return nil
}

func (t *sqlTx) UpdateReviewAnalysis(ctx context.Context, r *models.Review) error {
	query, args, err := t.store.sb.Update("reviews").
		Set("sentiment", nullString(string(r.Sentiment))).
		Set("sentiment_score", nullFloat(r.SentimentScore)).
		Set("department_assigned", nullString(r.DepartmentAssigned)).
		Set("processed", r.Processed).
		Where(sq.Eq{"id": r.ID}).
		ToSql()
	if err != nil {
		return err
	}
	ctx, cancel := t.store.stmtCtx(ctx)
	defer cancel()
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update review analysis: %w", classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("review %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (t *sqlTx) InsertAgentLog(ctx context.Context, l *models.AgentActionLog) error {
	l.CreatedAt = time.Now().UTC()
	query, args, err := t.store.sb.Insert("agent_logs").
		Columns("review_id", "agent_name", "action", "result", "duration_ms", "created_at").
		Values(l.ReviewID, l.AgentName, l.Action, nullString(l.Result), l.DurationMS, l.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	ctx, cancel := t.store.stmtCtx(ctx)
	defer cancel()
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&l.ID); err != nil {
		return fmt.Errorf("insert agent log: %w", classify(err))
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func scanCompany(rs rowScanner) (*models.Company, error) {
	var c models.Company
	var category sql.NullString
	if err := rs.Scan(&c.ID, &c.Name, &c.AppID, &category, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Category = category.String
	return &c, nil
}

func scanReview(rs rowScanner) (*models.Review, error) {
	var (
		r          models.Review
		rating     sql.NullInt64
		reviewDate sql.NullTime
		platform   string
		sentiment  sql.NullString
		score      sql.NullFloat64
		department sql.NullString
	)
	if err := rs.Scan(&r.ID, &r.CompanyID, &r.Content, &rating, &reviewDate, &platform,
		&sentiment, &score, &department, &r.Processed, &r.CreatedAt); err != nil {
		return nil, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	if reviewDate.Valid {
		v := reviewDate.Time
		r.ReviewDate = &v
	}
	r.Platform = models.Platform(platform)
	r.Sentiment = models.Sentiment(sentiment.String)
	if score.Valid {
		v := score.Float64
		r.SentimentScore = &v
	}
	r.DepartmentAssigned = department.String
	return &r, nil
}

// classify maps driver constraint errors onto ErrDuplicate and ErrForeignKey.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
		return err
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
	}
	return err
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
