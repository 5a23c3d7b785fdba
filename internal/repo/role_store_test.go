package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleStoreIsIdentity(t *testing.T) {
	ctx := context.Background()
	rs := NewRoleStore()

	require.True(t, rs.Create(ctx, "admin").Succeeded)
	require.True(t, rs.Update(ctx, "admin").Succeeded)
	require.True(t, rs.Delete(ctx, "admin").Succeeded)

	id, err := rs.FindByID(ctx, "editor")
	require.NoError(t, err)
	require.Equal(t, "editor", id)

	name, err := rs.FindByName(ctx, "editor")
	require.NoError(t, err)
	require.Equal(t, "editor", name)

	require.Equal(t, "Editor", rs.GetRoleID("Editor"))
	require.Equal(t, "Editor", rs.GetRoleName("Editor"))
	require.Equal(t, "Editor", rs.GetNormalizedRoleName("Editor"))
	require.NoError(t, rs.SetRoleName(ctx, "Editor", "Other"))
	require.NoError(t, rs.SetNormalizedRoleName(ctx, "Editor", "other"))
}
