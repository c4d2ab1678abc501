package domain

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalApply(t *testing.T) {
	created := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)

	t.Run("normalizes and stamps", func(t *testing.T) {
		g := &Goal{Title: "Run", Description: "Lake", UpdatedAt: created}
		changed, err := g.Apply(GoalPatch{Title: mo.Some("  Café run ")}, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "Café run", g.Title)
		assert.Equal(t, "Lake", g.Description)
		assert.Equal(t, now, g.UpdatedAt)
	})

	t.Run("empty description clears", func(t *testing.T) {
		g := &Goal{Title: "Run", Description: "Lake", UpdatedAt: created}
		changed, err := g.Apply(GoalPatch{Description: mo.Some(" ")}, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Empty(t, g.Description)
	})

	t.Run("same values are a no-op", func(t *testing.T) {
		g := &Goal{Title: "Run", Description: "Lake", UpdatedAt: created}
		changed, err := g.Apply(GoalPatch{Title: mo.Some("Run "), Description: mo.Some("Lake")}, now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, created, g.UpdatedAt)
	})

	t.Run("blank title rejected", func(t *testing.T) {
		g := &Goal{Title: "Run", Description: "Lake", UpdatedAt: created}
		_, err := g.Apply(GoalPatch{Title: mo.Some("\t"), Description: mo.Some("new")}, now)
		assert.ErrorIs(t, err, ErrTitleRequired)
		assert.Equal(t, "Run", g.Title)
		assert.Equal(t, "Lake", g.Description)
	})

	assert.True(t, GoalPatch{}.Empty())
	assert.False(t, GoalPatch{Description: mo.Some("")}.Empty())
}
