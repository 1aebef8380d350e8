package users_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/testutil"
	"github.com/hugh/turnout-tracker/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Create(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := users.NewService(tc.DB, nil)
	ctx := testutil.TestContext(t)

	t.Run("creates user with counties", func(t *testing.T) {
		user, err := svc.Create(ctx, users.CreateInput{
			Email:           "Canvasser@Example.com",
			FullName:        "Casey Canvasser",
			Password:        "longenough",
			AllowedCounties: []string{"Cook", " cook ", "DuPage", ""},
		})
		require.NoError(t, err)
		assert.Equal(t, "canvasser@example.com", user.Email)
		assert.False(t, user.IsAdmin)
		assert.Equal(t, []string{"Cook", "DuPage"}, user.AllowedCounties())
		assert.True(t, auth.CheckPassword("longenough", user.PasswordHash))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, users.CreateInput{
			Email:    "CANVASSER@example.com",
			FullName: "Someone Else",
			Password: "longenough",
		})
		assert.ErrorIs(t, err, users.ErrEmailTaken)
		assert.True(t, users.IsValidationError(err))
	})

	tests := []struct {
		name  string
		input users.CreateInput
		want  error
	}{
		{"bad email", users.CreateInput{Email: "not-an-email", FullName: "X", Password: "longenough"}, users.ErrInvalidEmail},
		{"short password", users.CreateInput{Email: "a@b.com", FullName: "X", Password: "short"}, users.ErrWeakPassword},
		{"missing name", users.CreateInput{Email: "a@b.com", FullName: "  ", Password: "longenough"}, users.ErrNameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, users.IsValidationError(err))
		})
	}
}

func TestService_List(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := users.NewService(tc.DB, nil)
	ctx := testutil.TestContext(t)

	_, err := svc.Create(ctx, users.CreateInput{Email: "aaron@example.com", FullName: "Aaron A", Password: "longenough"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Aaron A", list[0].FullName)
}

func TestService_CountyAccess(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := users.NewService(tc.DB, nil)
	ctx := testutil.TestContext(t)

	counties, err := svc.GetCounties(ctx, tc.User.ID)
	require.NoError(t, err)
	assert.Empty(t, counties)

	counties, err = svc.SetCounties(ctx, tc.User.ID, []string{"Sangamon", "Cook", "COOK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cook", "Sangamon"}, counties)

	// Replacing, not appending
	_, err = svc.SetCounties(ctx, tc.User.ID, []string{"Lake"})
	require.NoError(t, err)
	counties, err = svc.GetCounties(ctx, tc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lake"}, counties)

	_, err = svc.SetCounties(ctx, tc.User.ID, nil)
	require.NoError(t, err)
	counties, err = svc.GetCounties(ctx, tc.User.ID)
	require.NoError(t, err)
	assert.Empty(t, counties)

	_, err = svc.GetCounties(ctx, uuid.New())
	assert.ErrorIs(t, err, users.ErrUserNotFound)
	_, err = svc.SetCounties(ctx, uuid.New(), []string{"Cook"})
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestNormalizeCounties(t *testing.T) {
	got, err := users.NormalizeCounties([]string{"  St.  Clair ", "st. clair", "", "Will"})
	require.NoError(t, err)
	assert.Equal(t, []string{"St. Clair", "Will"}, got)
}
