package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// unbounded upper limit for occurred_at comparisons
const maxTimestamp = "9999-12-31 23:59:59"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
}

// DSN builds the connection string used by both the pool and the migrator.
// Write transactions start with BEGIN IMMEDIATE so the balance read inside a
// goal deposit already holds the database write lock. WAL lets read
// transactions keep their snapshot while a writer commits.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// NewSQLiteRepository opens (and migrates) the database at dbPath. Timestamps
// are stored as wall-clock text in loc, which also defines month boundaries.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable; used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser implements the credential store's persistence.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	u, err := r.queries.CreateUser(ctx, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrUsernameTaken
		}
		return core.User{}, core.StorageError("create user", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return core.User{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash}, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFound("user")
	}
	if err != nil {
		return core.User{}, core.StorageError("get user", err)
	}
	return core.User{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash}, nil
}

// InsertTransaction appends t to the ledger and returns its id.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := r.queries.CreateTransaction(ctx, r.transactionParams(t))
	if err != nil {
		return 0, core.StorageError("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"user_id", t.UserID,
		"kind", t.Kind,
		"category", t.Category,
		"normalized_cents", t.NormalizedAmount.Cents)

	return id, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction")
	}
	if err != nil {
		return core.Transaction{}, core.StorageError("get transaction", err)
	}
	return r.toCoreTransaction(row)
}

// ListTransactions returns the user's transactions newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		UserID:   userID,
		Month:    f.MonthPrefix,
		Category: f.Category,
	})
	if err != nil {
		return nil, core.StorageError("list transactions", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := r.toCoreTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Aggregate sums normalized income and expense inside the half-open range.
func (r *SQLiteRepository) Aggregate(ctx context.Context, userID int64, rng core.DateRange) (core.Totals, error) {
	return r.aggregate(ctx, r.queries, userID, rng)
}

func (r *SQLiteRepository) aggregate(ctx context.Context, q *Queries, userID int64, rng core.DateRange) (core.Totals, error) {
	row, err := q.SumByKind(ctx, r.rangeParams(userID, rng))
	if err != nil {
		return core.Totals{}, core.StorageError("sum transactions", err)
	}
	return core.Totals{
		Income:  core.Money{Cents: row.IncomeCents},
		Expense: core.Money{Cents: row.ExpenseCents},
	}, nil
}

// CategoryTotals returns per (category, kind) sums; Percent is left for the caller.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	rows, err := r.queries.GetCategoryTotals(ctx, userID)
	if err != nil {
		return nil, core.StorageError("get category totals", err)
	}
	out := make([]core.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryTotal{
			Category: row.Category,
			Kind:     core.Kind(row.Kind),
			Total:    core.Money{Cents: row.TotalCents},
		})
	}
	return out, nil
}

// RecentDailyTotals returns up to days most recent distinct days in chronological order.
func (r *SQLiteRepository) RecentDailyTotals(ctx context.Context, userID int64, days int) ([]core.DailyTotals, error) {
	return recentDailyTotals(ctx, r.queries, userID, days)
}

func recentDailyTotals(ctx context.Context, q *Queries, userID int64, days int) ([]core.DailyTotals, error) {
	rows, err := q.GetRecentDailyTotals(ctx, userID, int64(days))
	if err != nil {
		return nil, core.StorageError("get daily totals", err)
	}
	out := make([]core.DailyTotals, len(rows))
	for i, row := range rows {
		// rows come newest first
		out[len(rows)-1-i] = core.DailyTotals{
			Day:     row.Day,
			Income:  core.Money{Cents: row.IncomeCents},
			Expense: core.Money{Cents: row.ExpenseCents},
		}
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID int64, ceiling core.Money) error {
	if err := r.queries.UpsertBudget(ctx, userID, ceiling.Cents); err != nil {
		return core.StorageError("upsert budget", err)
	}
	slog.InfoContext(ctx, "Budget saved", "user_id", userID, "ceiling_cents", ceiling.Cents)
	return nil
}

// GetBudget returns ErrNotFound when the user never set a ceiling.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID int64) (core.Budget, error) {
	return getBudget(ctx, r.queries, userID)
}

func getBudget(ctx context.Context, q *Queries, userID int64) (core.Budget, error) {
	b, err := q.GetBudget(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFound("budget")
	}
	if err != nil {
		return core.Budget{}, core.StorageError("get budget", err)
	}
	return core.Budget{UserID: b.UserID, Ceiling: core.Money{Cents: b.CeilingCents}}, nil
}

// ListBudgetUserIDs returns every user that has a ceiling set.
func (r *SQLiteRepository) ListBudgetUserIDs(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListBudgetUserIDs(ctx)
	if err != nil {
		return nil, core.StorageError("list budget users", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (int64, error) {
	var deadline sql.NullString
	if g.Deadline != nil {
		deadline = sql.NullString{String: g.Deadline.String(), Valid: true}
	}
	id, err := r.queries.CreateGoal(ctx, CreateGoalParams{
		UserID:      g.UserID,
		Name:        g.Name,
		TargetCents: g.Target.Cents,
		Deadline:    deadline,
	})
	if err != nil {
		return 0, core.StorageError("create goal", err)
	}
	slog.InfoContext(ctx, "Goal created", "goal_id", id, "user_id", g.UserID, "target_cents", g.Target.Cents)
	return id, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, goalID int64) (core.Goal, error) {
	return r.getGoal(ctx, r.queries, userID, goalID)
}

func (r *SQLiteRepository) getGoal(ctx context.Context, q *Queries, userID, goalID int64) (core.Goal, error) {
	g, err := q.GetGoal(ctx, goalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal")
	}
	if err != nil {
		return core.Goal{}, core.StorageError("get goal", err)
	}
	return toCoreGoal(g)
}

// ListGoals returns the user's goals newest first.
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	return listGoals(ctx, r.queries, userID)
}

func listGoals(ctx context.Context, q *Queries, userID int64) ([]core.Goal, error) {
	rows, err := q.ListGoals(ctx, userID)
	if err != nil {
		return nil, core.StorageError("list goals", err)
	}
	out := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := toCoreGoal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// DashboardSnapshot is everything the dashboard shows, read at one point in time.
type DashboardSnapshot struct {
	Totals      core.Totals
	MonthToDate core.Totals
	Ceiling     *core.Money // nil when no budget is set
	DailySeries []core.DailyTotals
	Goals       []core.Goal
}

// DashboardSnapshot runs every dashboard read inside one read-only
// transaction, so a goal deposit is either fully visible or not at all.
func (r *SQLiteRepository) DashboardSnapshot(ctx context.Context, userID int64, month core.DateRange, days int) (DashboardSnapshot, error) {
	return r.dashboardSnapshot(ctx, userID, month, days, nil)
}

// dashboardSnapshot calls afterTotals, when set, between the ledger sums and
// the remaining reads.
func (r *SQLiteRepository) dashboardSnapshot(ctx context.Context, userID int64, month core.DateRange, days int, afterTotals func()) (DashboardSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return DashboardSnapshot{}, core.StorageError("begin dashboard read", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	var snap DashboardSnapshot

	if snap.Totals, err = r.aggregate(ctx, q, userID, core.DateRange{}); err != nil {
		return DashboardSnapshot{}, err
	}
	if snap.MonthToDate, err = r.aggregate(ctx, q, userID, month); err != nil {
		return DashboardSnapshot{}, err
	}
	if afterTotals != nil {
		afterTotals()
	}

	b, err := getBudget(ctx, q, userID)
	switch {
	case err == nil:
		ceiling := b.Ceiling
		snap.Ceiling = &ceiling
	case !errors.Is(err, core.ErrNotFound):
		return DashboardSnapshot{}, err
	}

	if snap.DailySeries, err = recentDailyTotals(ctx, q, userID, days); err != nil {
		return DashboardSnapshot{}, err
	}
	if snap.Goals, err = listGoals(ctx, q, userID); err != nil {
		return DashboardSnapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return DashboardSnapshot{}, core.StorageError("end dashboard read", err)
	}
	return snap, nil
}

// DepositResult is the committed outcome of a goal deposit.
type DepositResult struct {
	Goal          core.Goal
	TransactionID int64
	BalanceAfter  core.Money
}

// DepositToGoal moves amount (in the home currency) from the user's balance into the goal. The
// ownership check, the balance check, the goal update and the linked expense
// run in one immediate transaction: either both writes commit or neither does.
func (r *SQLiteRepository) DepositToGoal(ctx context.Context, userID, goalID int64, amount core.Money, currency string, at time.Time) (DepositResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return DepositResult{}, core.StorageError("begin deposit", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)

	goal, err := r.getGoal(ctx, q, userID, goalID)
	if err != nil {
		return DepositResult{}, err
	}

	totals, err := r.aggregate(ctx, q, userID, core.DateRange{})
	if err != nil {
		return DepositResult{}, err
	}
	balance := totals.Balance()
	if amount.Cents > balance.Cents {
		return DepositResult{}, fmt.Errorf("%w: balance %s, requested %s", core.ErrInsufficientBalance, balance, amount)
	}

	n, err := q.AddToGoal(ctx, amount.Cents, goalID, userID)
	if err != nil {
		return DepositResult{}, core.StorageError("update goal", err)
	}
	if n != 1 {
		return DepositResult{}, core.NotFound("goal")
	}

	txID, err := q.CreateTransaction(ctx, r.transactionParams(core.Transaction{
		UserID:           userID,
		Timestamp:        at,
		Kind:             core.KindExpense,
		Category:         core.GoalCategory(goal.Name),
		OriginalAmount:   amount,
		OriginalCurrency: currency,
		NormalizedAmount: amount,
		Description:      core.GoalTransferDescription,
	}))
	if err != nil {
		return DepositResult{}, core.StorageError("create goal transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return DepositResult{}, core.StorageError("commit deposit", err)
	}

	goal.Current = goal.Current.Add(amount)
	slog.InfoContext(ctx, "Goal deposit committed",
		"user_id", userID,
		"goal_id", goalID,
		"transaction_id", txID,
		"amount_cents", amount.Cents)

	return DepositResult{
		Goal:          goal,
		TransactionID: txID,
		BalanceAfter:  balance.Sub(amount),
	}, nil
}

func (r *SQLiteRepository) transactionParams(t core.Transaction) CreateTransactionParams {
	return CreateTransactionParams{
		UserID:           t.UserID,
		OccurredAt:       core.FormatTimestamp(t.Timestamp, r.loc),
		Kind:             string(t.Kind),
		Category:         t.Category,
		OriginalCents:    t.OriginalAmount.Cents,
		OriginalCurrency: t.OriginalCurrency,
		NormalizedCents:  t.NormalizedAmount.Cents,
		Description:      t.Description,
	}
}

func (r *SQLiteRepository) rangeParams(userID int64, rng core.DateRange) SumByKindParams {
	p := SumByKindParams{UserID: userID, To: maxTimestamp}
	if !rng.Start.IsZero() {
		p.From = core.FormatTimestamp(rng.Start, r.loc)
	}
	if !rng.End.IsZero() {
		p.To = core.FormatTimestamp(rng.End, r.loc)
	}
	return p
}

func (r *SQLiteRepository) toCoreTransaction(row Transaction) (core.Transaction, error) {
	ts, err := time.ParseInLocation(core.TimestampLayout, row.OccurredAt, r.loc)
	if err != nil {
		return core.Transaction{}, core.StorageError("parse occurred_at", err)
	}
	return core.Transaction{
		ID:               row.ID,
		UserID:           row.UserID,
		Timestamp:        ts,
		Kind:             core.Kind(row.Kind),
		Category:         row.Category,
		OriginalAmount:   core.Money{Cents: row.OriginalCents},
		OriginalCurrency: row.OriginalCurrency,
		NormalizedAmount: core.Money{Cents: row.NormalizedCents},
		Description:      row.Description,
	}, nil
}

func toCoreGoal(row Goal) (core.Goal, error) {
	g := core.Goal{
		ID:      row.ID,
		UserID:  row.UserID,
		Name:    row.Name,
		Target:  core.Money{Cents: row.TargetCents},
		Current: core.Money{Cents: row.CurrentCents},
	}
	if row.Deadline.Valid && row.Deadline.String != "" {
		d, err := core.ParseDate(row.Deadline.String)
		if err != nil {
			return core.Goal{}, core.StorageError("parse goal deadline", err)
		}
		g.Deadline = &d
	}
	return g, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
