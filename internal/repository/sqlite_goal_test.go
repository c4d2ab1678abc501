package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	rule := testutil.WeeklyRule("2023-05-01", time.Monday, time.Wednesday, time.Friday)
	rule.Bound = domain.CountBound(20)
	g := testutil.NewTestGoal("Run", testutil.WithRule(rule), testutil.WithHorizon("2023-05-30"), testutil.WithDescription("5k"))
	require.NoError(t, repo.Create(ctx, g))

	fetched, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run", fetched.Title)
	assert.Equal(t, "5k", fetched.Description)
	assert.Equal(t, "2023-05-30", fetched.Horizon.String())
	require.NotNil(t, fetched.Rule)
	assert.True(t, rule.Equal(*fetched.Rule))
	assert.True(t, g.CreatedAt.Equal(fetched.CreatedAt))
}

func TestGoalRepo_GoalWithoutRule(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	g := testutil.NewTestGoal("One-off")
	require.NoError(t, repo.Create(ctx, g))

	fetched, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.Rule)
	assert.True(t, fetched.Horizon.IsZero())
}

func TestGoalRepo_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateHorizon(ctx, "missing", calendar.MustParse("2023-06-01")), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateDetails(ctx, &domain.Goal{ID: "missing", Title: "x"}), ErrNotFound)
}

func TestGoalRepo_ListAndUpdateHorizon(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	a := testutil.NewTestGoal("A")
	b := testutil.NewTestGoal("B")
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.UpdateHorizon(ctx, b.ID, calendar.MustParse("2024-01-31")))

	goals, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "A", goals[0].Title)
	assert.Equal(t, "2024-01-31", goals[1].Horizon.String())
}

func TestGoalRepo_UpdateDetailsLeavesRuleAndHorizon(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	rule := testutil.DailyRule("2023-05-01", 2)
	g := testutil.NewTestGoal("Read", testutil.WithRule(rule), testutil.WithHorizon("2023-05-30"), testutil.WithDescription("fiction"))
	require.NoError(t, repo.Create(ctx, g))

	g.Title = "Read more"
	g.Description = ""
	g.UpdatedAt = g.CreatedAt.Add(time.Hour)
	require.NoError(t, repo.UpdateDetails(ctx, g))

	fetched, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read more", fetched.Title)
	assert.Empty(t, fetched.Description)
	assert.Equal(t, "2023-05-30", fetched.Horizon.String())
	require.NotNil(t, fetched.Rule)
	assert.True(t, rule.Equal(*fetched.Rule))
	assert.True(t, g.UpdatedAt.Equal(fetched.UpdatedAt))
}

func TestGoalRepo_MalformedStoredRuleSurfaces(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteGoalRepo(db)
	ctx := context.Background()

	g := testutil.NewTestGoal("Broken")
	require.NoError(t, repo.Create(ctx, g))
	_, err := db.Exec(`UPDATE goals SET rrule = ? WHERE id = ?`, "DTSTART;VALUE=DATE:20230501\nRRULE:FREQ=SOMETIMES", g.ID)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrMalformedRule)

	_, err = NewSQLiteRuleRepo(db).Load(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrMalformedRule)
}

func TestRuleRepo_SaveLoadClear(t *testing.T) {
	db := testutil.NewTestDB(t)
	goals := NewSQLiteGoalRepo(db)
	rules := NewSQLiteRuleRepo(db)
	ctx := context.Background()

	g := testutil.NewTestGoal("Stretch")
	require.NoError(t, goals.Create(ctx, g))

	loaded, err := rules.Load(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	rule := testutil.DailyRule("2023-05-01", 7)
	rule.Extensions = []string{"X-FOO=bar"}
	require.NoError(t, rules.Save(ctx, g.ID, &rule))

	var stored string
	require.NoError(t, db.QueryRow(`SELECT rrule FROM goals WHERE id = ?`, g.ID).Scan(&stored))
	assert.Equal(t, "DTSTART;VALUE=DATE:20230501\nRRULE:FREQ=DAILY;INTERVAL=7;X-FOO=bar", stored)

	loaded, err = rules.Load(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rule, *loaded)

	require.NoError(t, rules.Save(ctx, g.ID, nil))
	loaded, err = rules.Load(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, err = rules.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, rules.Save(ctx, "missing", &rule), ErrNotFound)
}
