package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

func TestGroupServiceList_SeededGroups(t *testing.T) {
	env := newTestEnv(t)

	groups, err := env.groups.List(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Group A", groups[0].Name)
	assert.Zero(t, groups[0].StudentCount)
}

func TestGroupServiceCreate_RejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group, err := env.groups.Create(ctx, "Evening Class")
	require.NoError(t, err)
	assert.NotZero(t, group.ID)

	_, err = env.groups.Create(ctx, "Evening Class")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = env.groups.Create(ctx, "  ")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGroupServiceDelete_RefusedWithMembersAndNoTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustCreateStudent(t, models.PlanMonthly, 850, nil)

	err := env.groups.Delete(ctx, 1, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraint))

	// The group and its member are untouched.
	_, err = env.groups.Get(ctx, 1)
	require.NoError(t, err)
}

func TestGroupServiceDelete_ReassignsAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.mustCreateStudent(t, models.PlanMonthly, 850, nil)
	second := env.mustCreateStudent(t, models.PlanMonthly, 850, nil)

	target := int64(2)
	require.NoError(t, env.groups.Delete(ctx, 1, &target))

	// No student is left referencing the deleted group.
	var orphans int
	require.NoError(t, env.db.GetContext(ctx, &orphans,
		"SELECT COUNT(*) FROM students WHERE group_id = 1"))
	assert.Zero(t, orphans)

	for _, id := range []string{first.ID, second.ID} {
		detail, err := env.students.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), detail.GroupID)
		assert.Equal(t, "Group B", detail.GroupName)
	}

	_, err := env.groups.Get(ctx, 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestGroupServiceDelete_RejectsSelfReassignment(t *testing.T) {
	env := newTestEnv(t)

	env.mustCreateStudent(t, models.PlanMonthly, 850, nil)

	self := int64(1)
	err := env.groups.Delete(context.Background(), 1, &self)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGroupServiceDelete_EmptyGroupNeedsNoTarget(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.groups.Delete(context.Background(), 3, nil))
}

func TestGroupServiceUpdate_Rename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group, err := env.groups.Update(ctx, 1, "Morning Class")
	require.NoError(t, err)
	assert.Equal(t, "Morning Class", group.Name)

	_, err = env.groups.Update(ctx, 2, "Morning Class")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}
