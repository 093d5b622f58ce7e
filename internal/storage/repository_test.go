package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/brianvoe/gofakeit/v6"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, name string) int64 {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func tx(userID int64, kind core.Kind, category string, cents int64, at time.Time) core.Transaction {
	return core.Transaction{
		UserID:           userID,
		Timestamp:        at,
		Kind:             kind,
		Category:         category,
		OriginalAmount:   core.Money{Cents: cents},
		OriginalCurrency: "THB",
		NormalizedAmount: core.Money{Cents: cents},
		Description:      "test",
	}
}

func mustInsert(t *testing.T, repo *SQLiteRepository, tr core.Transaction) int64 {
	t.Helper()
	id, err := repo.InsertTransaction(context.Background(), tr)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	repo, err := NewSQLiteRepository(path, time.UTC)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo.Close()

	v, dirty, err := SchemaVersion(DSN(path))
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 || dirty {
		t.Fatalf("expected clean version 1, got %d dirty=%v", v, dirty)
	}
	// reopening an up-to-date database is a no-op
	repo, err = NewSQLiteRepository(path, time.UTC)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	repo.Close()
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	newTestUser(t, repo, "alice")

	if _, err := repo.CreateUser(ctx, "alice", "other"); !errors.Is(err, core.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	u, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil || u.PasswordHash != "hash" {
		t.Fatalf("unexpected user %+v err=%v", u, err)
	}
	if _, err := repo.GetUserByUsername(ctx, "bob"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionRoundTripAndListing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	other := newTestUser(t, repo, "bob")

	feb := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 5, 18, 30, 0, 0, time.UTC)
	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, feb))
	id := mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", 2550, mar))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Transport", 900, mar.Add(time.Hour)))
	mustInsert(t, repo, tx(other, core.KindExpense, "Food and Drink", 1, mar))

	got, err := repo.GetTransaction(ctx, uid, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != core.KindExpense || got.Category != "Food and Drink" || got.OriginalAmount.Cents != 2550 ||
		got.Description != "test" || !got.Timestamp.Equal(mar) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := repo.GetTransaction(ctx, other, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected other user's lookup to miss, got %v", err)
	}

	all, err := repo.ListTransactions(ctx, uid, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}
	if all[0].Category != "Transport" || all[2].Category != "Salary" {
		t.Fatalf("expected newest first, got %s..%s", all[0].Category, all[2].Category)
	}

	march, _ := repo.ListTransactions(ctx, uid, core.TransactionFilter{MonthPrefix: "2025-03"})
	if len(march) != 2 {
		t.Fatalf("expected 2 march transactions, got %d", len(march))
	}
	food, _ := repo.ListTransactions(ctx, uid, core.TransactionFilter{Category: "Food and Drink"})
	if len(food) != 1 || food[0].ID != id {
		t.Fatalf("expected category filter to match one, got %+v", food)
	}
}

func TestAggregateRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")

	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Bill", 5000, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Bill", 7000, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))

	all, err := repo.Aggregate(ctx, uid, core.DateRange{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if all.Income.Cents != 100000 || all.Expense.Cents != 12000 || all.Balance().Cents != 88000 {
		t.Fatalf("unexpected totals %+v", all)
	}

	march, _ := repo.Aggregate(ctx, uid, core.MonthRange(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))
	if march.Income.Cents != 0 || march.Expense.Cents != 5000 {
		t.Fatalf("expected only the march 1st expense, got %+v", march)
	}

	empty, _ := repo.Aggregate(ctx, newTestUser(t, repo, "bob"), core.DateRange{})
	if !empty.Income.IsZero() || !empty.Expense.IsZero() {
		t.Fatalf("expected zero totals, got %+v", empty)
	}
}

func TestBalanceMatchesIndependentSum(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	faker := gofakeit.New(42)

	var want int64
	for i := 0; i < 60; i++ {
		cents := int64(faker.Number(1, 500000))
		kind := core.KindExpense
		if faker.Bool() {
			kind = core.KindIncome
			want += cents
		} else {
			want -= cents
		}
		at := faker.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
		mustInsert(t, repo, tx(uid, kind, faker.RandomString(core.ExpenseCategories), cents, at))
	}

	totals, err := repo.Aggregate(ctx, uid, core.DateRange{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if totals.Balance().Cents != want {
		t.Fatalf("balance %d != independent sum %d", totals.Balance().Cents, want)
	}
}

func TestCategoryTotalsAndDailySeries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")

	for d := 1; d <= 9; d++ {
		at := time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)
		mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", int64(d*100), at))
		if d%3 == 0 {
			mustInsert(t, repo, tx(uid, core.KindIncome, "Gift", 1000, at))
		}
	}

	totals, err := repo.CategoryTotals(ctx, uid)
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 groups, got %+v", totals)
	}
	for _, ct := range totals {
		switch ct.Category {
		case "Food and Drink":
			if ct.Kind != core.KindExpense || ct.Total.Cents != 4500 {
				t.Fatalf("unexpected %+v", ct)
			}
		case "Gift":
			if ct.Kind != core.KindIncome || ct.Total.Cents != 3000 {
				t.Fatalf("unexpected %+v", ct)
			}
		}
	}

	series, err := repo.RecentDailyTotals(ctx, uid, 7)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("expected 7 days, got %d", len(series))
	}
	if series[0].Day != "2025-03-03" || series[6].Day != "2025-03-09" {
		t.Fatalf("expected chronological 03..09, got %s..%s", series[0].Day, series[6].Day)
	}
	if series[0].Income.Cents != 1000 || series[0].Expense.Cents != 300 {
		t.Fatalf("unexpected first day %+v", series[0])
	}
}

func TestBudgetUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")

	if _, err := repo.GetBudget(ctx, uid); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, c := range []int64{100000, 0, 2500} {
		if err := repo.UpsertBudget(ctx, uid, core.Money{Cents: c}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		b, err := repo.GetBudget(ctx, uid)
		if err != nil || b.Ceiling.Cents != c {
			t.Fatalf("expected ceiling %d, got %+v err=%v", c, b, err)
		}
	}
}

func TestListBudgetUserIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := newTestUser(t, repo, "alice")
	newTestUser(t, repo, "bob")
	carol := newTestUser(t, repo, "carol")

	ids, err := repo.ListBudgetUserIDs(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no budget users, got %v err=%v", ids, err)
	}

	for _, uid := range []int64{carol, alice} {
		if err := repo.UpsertBudget(ctx, uid, core.Money{Cents: 5000}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	ids, err = repo.ListBudgetUserIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != alice || ids[1] != carol {
		t.Errorf("expected [%d %d], got %v", alice, carol, ids)
	}
}

func TestGoals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	deadline := core.NewDate(2026, 6, 30)

	id1, err := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Laptop", Target: core.Money{Cents: 5000000}, Deadline: &deadline})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	id2, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Trip", Target: core.Money{Cents: 100}})

	g, err := repo.GetGoal(ctx, uid, id1)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if g.Name != "Laptop" || g.Current.Cents != 0 || g.Deadline == nil || g.Deadline.String() != "2026-06-30" {
		t.Fatalf("unexpected goal %+v", g)
	}

	goals, _ := repo.ListGoals(ctx, uid)
	if len(goals) != 2 || goals[0].ID != id2 {
		t.Fatalf("expected newest goal first, got %+v", goals)
	}
	if _, err := repo.GetGoal(ctx, newTestUser(t, repo, "bob"), id1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign goal, got %v", err)
	}
}

func TestDepositToGoal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, at))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", 20000, at))
	goalID, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Laptop", Target: core.Money{Cents: 500000}})

	_, err := repo.DepositToGoal(ctx, uid, goalID, core.Money{Cents: 90000}, "THB", at)
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	list, _ := repo.ListTransactions(ctx, uid, core.TransactionFilter{})
	g, _ := repo.GetGoal(ctx, uid, goalID)
	if len(list) != 2 || g.Current.Cents != 0 {
		t.Fatalf("failed deposit must not write: %d txs, goal %d", len(list), g.Current.Cents)
	}

	res, err := repo.DepositToGoal(ctx, uid, goalID, core.Money{Cents: 80000}, "THB", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Goal.Current.Cents != 80000 || res.BalanceAfter.Cents != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	totals, _ := repo.Aggregate(ctx, uid, core.DateRange{})
	if totals.Balance().Cents != 0 {
		t.Fatalf("expected zero balance, got %d", totals.Balance().Cents)
	}
	linked, err := repo.GetTransaction(ctx, uid, res.TransactionID)
	if err != nil {
		t.Fatalf("get linked: %v", err)
	}
	if linked.Kind != core.KindExpense || linked.Category != "Goal: Laptop" ||
		linked.Description != "Transfer to Goal" || linked.NormalizedAmount.Cents != 80000 {
		t.Fatalf("unexpected linked transaction %+v", linked)
	}

	if _, err := repo.DepositToGoal(ctx, uid, goalID+100, core.Money{Cents: 1}, "THB", at); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDepositToGoalRollsBackWhenExpenseInsertFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, at))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", 20000, at))
	goalID, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Laptop", Target: core.Money{Cents: 500000}})

	// the goal update runs first, then this rejects the linked expense
	if _, err := repo.db.ExecContext(ctx, `CREATE TRIGGER reject_goal_expense BEFORE INSERT ON transactions
		WHEN NEW.category LIKE 'Goal:%'
		BEGIN SELECT RAISE(ABORT, 'goal expense rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err := repo.DepositToGoal(ctx, uid, goalID, core.Money{Cents: 50000}, "THB", at.Add(time.Minute))
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	g, _ := repo.GetGoal(ctx, uid, goalID)
	if g.Current.Cents != 0 {
		t.Fatalf("goal update must roll back, current is %d", g.Current.Cents)
	}
	list, _ := repo.ListTransactions(ctx, uid, core.TransactionFilter{})
	if len(list) != 2 {
		t.Fatalf("expected the log unchanged at 2 transactions, got %d", len(list))
	}
	totals, _ := repo.Aggregate(ctx, uid, core.DateRange{})
	if totals.Balance().Cents != 80000 {
		t.Fatalf("expected balance 80000, got %d", totals.Balance().Cents)
	}
}

func TestDashboardSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	march := core.MonthRange(at)

	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, at.AddDate(0, -1, 0)))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", 20000, at))
	goalID, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Laptop", Target: core.Money{Cents: 500000}})

	snap, err := repo.DashboardSnapshot(ctx, uid, march, 7)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Totals.Balance().Cents != 80000 || snap.MonthToDate.Expense.Cents != 20000 || snap.MonthToDate.Income.Cents != 0 {
		t.Fatalf("unexpected totals %+v / %+v", snap.Totals, snap.MonthToDate)
	}
	if snap.Ceiling != nil {
		t.Fatalf("expected no ceiling, got %v", *snap.Ceiling)
	}
	if len(snap.DailySeries) != 2 || len(snap.Goals) != 1 {
		t.Fatalf("unexpected series %d / goals %d", len(snap.DailySeries), len(snap.Goals))
	}

	repo.UpsertBudget(ctx, uid, core.Money{})
	snap, _ = repo.DashboardSnapshot(ctx, uid, march, 7)
	if snap.Ceiling == nil || snap.Ceiling.Cents != 0 {
		t.Fatalf("a zero ceiling is still a ceiling, got %v", snap.Ceiling)
	}
	if snap.Goals[0].ID != goalID {
		t.Fatalf("unexpected goal %+v", snap.Goals[0])
	}
}

func TestDashboardSnapshotIgnoresDepositCommittedMidRead(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 100000, at))
	mustInsert(t, repo, tx(uid, core.KindExpense, "Food and Drink", 20000, at))
	goalID, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Laptop", Target: core.Money{Cents: 500000}})

	var depositErr error
	snap, err := repo.dashboardSnapshot(ctx, uid, core.MonthRange(at), 7, func() {
		_, depositErr = repo.DepositToGoal(ctx, uid, goalID, core.Money{Cents: 80000}, "THB", at.Add(time.Minute))
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if depositErr != nil {
		t.Fatalf("deposit during snapshot: %v", depositErr)
	}

	balance, current := snap.Totals.Balance().Cents, snap.Goals[0].Current.Cents
	if balance != 80000 || current != 0 {
		t.Fatalf("snapshot mixed states: balance %d, goal %d", balance, current)
	}

	after, err := repo.DashboardSnapshot(ctx, uid, core.MonthRange(at), 7)
	if err != nil {
		t.Fatalf("snapshot after deposit: %v", err)
	}
	if after.Totals.Balance().Cents != 0 || after.Goals[0].Current.Cents != 80000 {
		t.Fatalf("deposit not visible afterwards: balance %d, goal %d",
			after.Totals.Balance().Cents, after.Goals[0].Current.Cents)
	}
}

func TestConcurrentDepositsNeverOverdraw(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := newTestUser(t, repo, "alice")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mustInsert(t, repo, tx(uid, core.KindIncome, "Salary", 1000, at))
	goalID, _ := repo.CreateGoal(ctx, core.Goal{UserID: uid, Name: "Jar", Target: core.Money{Cents: 100000}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.DepositToGoal(ctx, uid, goalID, core.Money{Cents: 100}, "THB", at)
		}()
	}
	wg.Wait()

	totals, _ := repo.Aggregate(ctx, uid, core.DateRange{})
	g, _ := repo.GetGoal(ctx, uid, goalID)
	if totals.Balance().Cents < 0 {
		t.Fatalf("balance went negative: %d", totals.Balance().Cents)
	}
	if g.Current.Cents+totals.Balance().Cents != 1000 {
		t.Fatalf("goal %d + balance %d must equal 1000", g.Current.Cents, totals.Balance().Cents)
	}
}
