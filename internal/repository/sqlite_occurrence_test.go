package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func occurrenceTestSetup(t *testing.T) (*sql.DB, *SQLiteOccurrenceRepo, string) {
	t.Helper()
	db := testutil.NewTestDB(t)
	g := testutil.NewTestGoal("Read")
	require.NoError(t, NewSQLiteGoalRepo(db).Create(context.Background(), g))
	return db, NewSQLiteOccurrenceRepo(db), g.ID
}

func TestOccurrenceRepo_ApplyDiffAndList(t *testing.T) {
	_, repo, goalID := occurrenceTestSetup(t)
	ctx := context.Background()

	a := testutil.NewTestOccurrence(goalID, "2023-05-03")
	b := testutil.NewTestOccurrence(goalID, "2023-05-01")
	c := testutil.NewTestOccurrence(goalID, "2023-05-05", testutil.AsException(), testutil.WithNotes("felt good"))
	require.NoError(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{a, b, c}, nil))

	all, err := repo.ListByGoal(ctx, goalID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, b.ID, all[0].ID, "ordered by date")
	assert.Equal(t, domain.OriginException, all[2].Origin)
	require.NotNil(t, all[2].Notes)
	assert.Equal(t, "felt good", *all[2].Notes)
	assert.Nil(t, all[0].Notes)

	require.NoError(t, repo.ApplyDiff(ctx, goalID, nil, []string{a.ID, b.ID}))
	all, err = repo.ListByGoal(ctx, goalID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, c.ID, all[0].ID)
}

func TestOccurrenceRepo_ApplyDiffRejectsForeignRows(t *testing.T) {
	_, repo, goalID := occurrenceTestSetup(t)
	o := testutil.NewTestOccurrence("other-goal", "2023-05-01")
	assert.Error(t, repo.ApplyDiff(context.Background(), goalID, []domain.Occurrence{o}, nil))
}

func TestOccurrenceRepo_DuplicateGeneratedDateFails(t *testing.T) {
	_, repo, goalID := occurrenceTestSetup(t)
	ctx := context.Background()

	first := testutil.NewTestOccurrence(goalID, "2023-05-01")
	dup := testutil.NewTestOccurrence(goalID, "2023-05-01")
	require.NoError(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{first}, nil))
	assert.Error(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{dup}, nil))
}

func TestOccurrenceRepo_Ranges(t *testing.T) {
	db, repo, goalID := occurrenceTestSetup(t)
	ctx := context.Background()

	other := testutil.NewTestGoal("Write")
	require.NoError(t, NewSQLiteGoalRepo(db).Create(ctx, other))

	require.NoError(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{
		testutil.NewTestOccurrence(goalID, "2023-04-30"),
		testutil.NewTestOccurrence(goalID, "2023-05-01"),
		testutil.NewTestOccurrence(goalID, "2023-05-31"),
		testutil.NewTestOccurrence(goalID, "2023-06-01"),
	}, nil))
	require.NoError(t, repo.ApplyDiff(ctx, other.ID, []domain.Occurrence{
		testutil.NewTestOccurrence(other.ID, "2023-05-15"),
	}, nil))

	may := calendar.NewRange(calendar.MustParse("2023-05-01"), calendar.MustParse("2023-05-31"))
	mine, err := repo.ListByGoalInRange(ctx, goalID, may)
	require.NoError(t, err)
	assert.Len(t, mine, 2, "bounds are inclusive")

	everyone, err := repo.ListInRange(ctx, may)
	require.NoError(t, err)
	require.Len(t, everyone, 3)
	assert.Equal(t, "2023-05-15", everyone[1].Date.String())
}

func TestOccurrenceRepo_UpdateGetDelete(t *testing.T) {
	_, repo, goalID := occurrenceTestSetup(t)
	ctx := context.Background()

	o := testutil.NewTestOccurrence(goalID, "2023-05-01")
	require.NoError(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{o}, nil))

	o.Date = calendar.MustParse("2023-05-02")
	o.Completed = true
	o.Origin = domain.OriginException
	o.Skipped = true
	o.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, &o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "2023-05-02", got.Date.String())
	assert.Equal(t, "2023-05-01", got.OriginalDate.String())
	assert.True(t, got.Completed)
	assert.True(t, got.Skipped)
	assert.True(t, got.IsException())

	missing := o
	missing.ID = "missing"
	assert.ErrorIs(t, repo.Update(ctx, &missing), ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOccurrenceRepo_GoalDeleteCascades(t *testing.T) {
	db, repo, goalID := occurrenceTestSetup(t)
	ctx := context.Background()

	require.NoError(t, repo.ApplyDiff(ctx, goalID, []domain.Occurrence{
		testutil.NewTestOccurrence(goalID, "2023-05-01"),
		testutil.NewTestOccurrence(goalID, "2023-05-02", testutil.AsException()),
	}, nil))
	require.NoError(t, NewSQLiteGoalRepo(db).Delete(ctx, goalID))

	left, err := repo.ListByGoal(ctx, goalID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestOccurrenceRepo_WorksInsideTransaction(t *testing.T) {
	database, _, goalID := occurrenceTestSetup(t)
	ctx := context.Background()
	uow := testutil.NewTestUoW(database)

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return NewSQLiteOccurrenceRepo(tx).ApplyDiff(ctx, goalID, []domain.Occurrence{
			testutil.NewTestOccurrence(goalID, "2023-05-01"),
		}, nil)
	})
	require.NoError(t, err)

	all, err := NewSQLiteOccurrenceRepo(database).ListByGoal(ctx, goalID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
