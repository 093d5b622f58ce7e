package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run inside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUser = `
INSERT INTO users (username, password_hash) VALUES (?, ?)
RETURNING id, username, password_hash`

func (q *Queries) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, createUser, username, passwordHash).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	return u, err
}

const getUserByUsername = `
SELECT id, username, password_hash FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByUsername, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	return u, err
}

type CreateTransactionParams struct {
	UserID           int64
	OccurredAt       string
	Kind             string
	Category         string
	OriginalCents    int64
	OriginalCurrency string
	NormalizedCents  int64
	Description      string
}

const createTransaction = `
INSERT INTO transactions (
    user_id, occurred_at, kind, category, original_cents, original_currency, normalized_cents, description
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID,
		arg.OccurredAt,
		arg.Kind,
		arg.Category,
		arg.OriginalCents,
		arg.OriginalCurrency,
		arg.NormalizedCents,
		arg.Description,
	).Scan(&id)
	return id, err
}

const transactionColumns = `id, user_id, occurred_at, kind, category, original_cents, original_currency, normalized_cents, description`

const getTransaction = `
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id, userID int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id, userID)
	return scanTransaction(row)
}

type ListTransactionsParams struct {
	UserID   int64
	Month    string // "" or YYYY-MM
	Category string // "" means any
}

const listTransactions = `
SELECT ` + transactionColumns + ` FROM transactions
WHERE user_id = ?
  AND occurred_at LIKE ? || '%'
  AND (? = '' OR category = ?)
ORDER BY occurred_at DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.UserID, arg.Month, arg.Category, arg.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type SumByKindParams struct {
	UserID int64
	From   string // inclusive
	To     string // exclusive
}

const sumByKind = `
SELECT
    COALESCE(SUM(CASE WHEN kind = 'income'  THEN normalized_cents END), 0),
    COALESCE(SUM(CASE WHEN kind = 'expense' THEN normalized_cents END), 0)
FROM transactions
WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`

func (q *Queries) SumByKind(ctx context.Context, arg SumByKindParams) (SumByKindRow, error) {
	var r SumByKindRow
	err := q.db.QueryRowContext(ctx, sumByKind, arg.UserID, arg.From, arg.To).
		Scan(&r.IncomeCents, &r.ExpenseCents)
	return r, err
}

const getCategoryTotals = `
SELECT category, kind, SUM(normalized_cents) AS total
FROM transactions
WHERE user_id = ?
GROUP BY category, kind
ORDER BY kind, total DESC, category`

func (q *Queries) GetCategoryTotals(ctx context.Context, userID int64) ([]CategoryTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoryTotals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTotalRow
	for rows.Next() {
		var r CategoryTotalRow
		if err := rows.Scan(&r.Category, &r.Kind, &r.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRecentDailyTotals = `
SELECT
    substr(occurred_at, 1, 10) AS day,
    COALESCE(SUM(CASE WHEN kind = 'income'  THEN normalized_cents END), 0),
    COALESCE(SUM(CASE WHEN kind = 'expense' THEN normalized_cents END), 0)
FROM transactions
WHERE user_id = ?
GROUP BY day
ORDER BY day DESC
LIMIT ?`

// GetRecentDailyTotals returns the most recent distinct days, newest first.
func (q *Queries) GetRecentDailyTotals(ctx context.Context, userID int64, limit int64) ([]DailyTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, getRecentDailyTotals, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyTotalRow
	for rows.Next() {
		var r DailyTotalRow
		if err := rows.Scan(&r.Day, &r.IncomeCents, &r.ExpenseCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertBudget = `
INSERT INTO budgets (user_id, ceiling_cents) VALUES (?, ?)
ON CONFLICT(user_id) DO UPDATE SET ceiling_cents = excluded.ceiling_cents, updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertBudget(ctx context.Context, userID, ceilingCents int64) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, userID, ceilingCents)
	return err
}

const getBudget = `
SELECT user_id, ceiling_cents FROM budgets WHERE user_id = ?`

func (q *Queries) GetBudget(ctx context.Context, userID int64) (Budget, error) {
	var b Budget
	err := q.db.QueryRowContext(ctx, getBudget, userID).Scan(&b.UserID, &b.CeilingCents)
	return b, err
}

const listBudgetUserIDs = `
SELECT user_id FROM budgets ORDER BY user_id`

func (q *Queries) ListBudgetUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetUserIDs)
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

type CreateGoalParams struct {
	UserID      int64
	Name        string
	TargetCents int64
	Deadline    sql.NullString
}

const createGoal = `
INSERT INTO goals (user_id, name, target_cents, current_cents, deadline) VALUES (?, ?, ?, 0, ?)
RETURNING id`

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createGoal, arg.UserID, arg.Name, arg.TargetCents, arg.Deadline).Scan(&id)
	return id, err
}

const goalColumns = `id, user_id, name, target_cents, current_cents, deadline`

const getGoal = `
SELECT ` + goalColumns + ` FROM goals WHERE id = ? AND user_id = ?`

func (q *Queries) GetGoal(ctx context.Context, id, userID int64) (Goal, error) {
	var g Goal
	err := q.db.QueryRowContext(ctx, getGoal, id, userID).
		Scan(&g.ID, &g.UserID, &g.Name, &g.TargetCents, &g.CurrentCents, &g.Deadline)
	return g, err
}

const listGoals = `
SELECT ` + goalColumns + ` FROM goals WHERE user_id = ? ORDER BY id DESC`

func (q *Queries) ListGoals(ctx context.Context, userID int64) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetCents, &g.CurrentCents, &g.Deadline); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addToGoal = `
UPDATE goals SET current_cents = current_cents + ? WHERE id = ? AND user_id = ?`

func (q *Queries) AddToGoal(ctx context.Context, amountCents, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, addToGoal, amountCents, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (Transaction, error) {
	var t Transaction
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.OccurredAt,
		&t.Kind,
		&t.Category,
		&t.OriginalCents,
		&t.OriginalCurrency,
		&t.NormalizedCents,
		&t.Description,
	)
	return t, err
}
