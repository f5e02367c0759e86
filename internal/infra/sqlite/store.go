// Package sqlite is the default LedgerStore, backed by a local SQLite file.
//
// Amounts are stored as integer minor units (paise/cents) so sums happen in
// SQL without float drift; timestamps are unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("infra/sqlite")

const (
	serviceName = "storage"
	minorDigits = domain.AmountScale
	columns     = "id, amount_minor, category, spent_at, created_at"
)

// Store implements port.LedgerStore.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

// Open creates the database file if needed, applies migrations and returns a
// ready store.
func Open(dbPath string, loc *time.Location, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite ledger ready", zap.String("path", dbPath))
	return New(db, loc, logger), nil
}

// New wraps an existing connection pool. The schema must already exist.
func New(db *sql.DB, loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc, logger: logger}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, rec *domain.ExpenseRecord) error {
	ctx, span := tracer.Start(ctx, "Store.Create")
	defer span.End()

	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+columns+`) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, toMinor(rec.Amount), rec.Category, rec.SpentAt.UnixMilli(), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return storageErr("insert expense", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, filter domain.ExpenseFilter, order domain.SortOrder) ([]domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.Find")
	defer span.End()

	where, args := whereClause(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM expenses`+where+orderBy(order), args...)
	if err != nil {
		return nil, storageErr("select expenses", err)
	}
	defer rows.Close()

	var out []domain.ExpenseRecord
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, storageErr("scan expense", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate expenses", err)
	}
	return out, nil
}

// FindOne returns the first match in the given order, or (nil, nil).
func (s *Store) FindOne(ctx context.Context, filter domain.ExpenseFilter, order domain.SortOrder) (*domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.FindOne")
	defer span.End()

	where, args := whereClause(filter)
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM expenses`+where+orderBy(order)+` LIMIT 1`, args...)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("select expense", err)
	}
	return rec, nil
}

func (s *Store) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateAmount")
	defer span.End()

	if err := domain.ValidateAmount("amount", amount); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE expenses SET amount_minor = ? WHERE id = ?`, toMinor(amount), id)
	if err != nil {
		return storageErr("update expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update expense", err)
	}
	if n == 0 {
		return storageErr("update expense", fmt.Errorf("no row with id %s", id))
	}
	return nil
}

// FindOneAndDelete removes the earliest-inserted match inside a transaction.
func (s *Store) FindOneAndDelete(ctx context.Context, filter domain.ExpenseFilter) (*domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.FindOneAndDelete")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin delete", err)
	}
	defer tx.Rollback() //nolint:errcheck

	where, args := whereClause(filter)
	row := tx.QueryRowContext(ctx, `SELECT `+columns+` FROM expenses`+where+` ORDER BY created_at ASC LIMIT 1`, args...)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("select expense to delete", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, rec.ID); err != nil {
		return nil, storageErr("delete expense", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit delete", err)
	}
	return rec, nil
}

func (s *Store) AggregateSum(ctx context.Context, filter domain.ExpenseFilter) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Store.AggregateSum")
	defer span.End()

	where, args := whereClause(filter)
	var minor int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_minor), 0) FROM expenses`+where, args...).Scan(&minor)
	if err != nil {
		return decimal.Zero, storageErr("sum expenses", err)
	}
	return fromMinor(minor), nil
}

// ============================================================
// helpers
// ============================================================

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (*domain.ExpenseRecord, error) {
	var (
		rec                domain.ExpenseRecord
		minor              int64
		spentAt, createdAt int64
	)
	if err := row.Scan(&rec.ID, &minor, &rec.Category, &spentAt, &createdAt); err != nil {
		return nil, err
	}
	rec.Amount = fromMinor(minor)
	rec.SpentAt = time.UnixMilli(spentAt).In(s.loc)
	rec.CreatedAt = time.UnixMilli(createdAt).In(s.loc)
	return &rec, nil
}

func whereClause(f domain.ExpenseFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Amount != nil {
		if domain.ValidateAmount("amount", *f.Amount) != nil {
			// no stored row can hold an unrepresentable amount
			conds = append(conds, "0")
		} else {
			conds = append(conds, "amount_minor = ?")
			args = append(args, toMinor(*f.Amount))
		}
	}
	if f.Category != "" {
		switch f.Match {
		case domain.MatchFold:
			conds = append(conds, "category = ? COLLATE NOCASE")
		case domain.MatchContains:
			conds = append(conds, "instr(lower(category), lower(?)) > 0")
		default:
			conds = append(conds, "category = ?")
		}
		args = append(args, f.Category)
	}
	if !f.Range.IsZero() {
		conds = append(conds, "spent_at >= ?", "spent_at < ?")
		args = append(args, f.Range.Start.UnixMilli(), f.Range.End.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(o domain.SortOrder) string {
	switch o {
	case domain.SortNewestFirst:
		return " ORDER BY spent_at DESC, created_at DESC"
	case domain.SortOldestFirst:
		return " ORDER BY spent_at ASC, created_at ASC"
	default:
		return ""
	}
}

// toMinor expects an amount that passed domain.ValidateAmount.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(minorDigits).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -minorDigits)
}

func storageErr(op string, err error) error {
	return &domain.ErrExternalService{Service: serviceName, Err: fmt.Errorf("%s: %w", op, err)}
}
