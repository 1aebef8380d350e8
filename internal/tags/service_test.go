package tags_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/internal/tags"
	"github.com/hugh/turnout-tracker/internal/testutil"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/hugh/turnout-tracker/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, tc *testutil.TestSetup) *tags.Service {
	t.Helper()
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	return tags.NewService(tc.DB, enc, nil)
}

func strPtr(s string) *string { return &s }

func TestService_TagIsIdempotent(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)
	viewer := voters.Viewer{UserID: tc.User.ID}

	v := testutil.CreateTestVoter(t, tc.DB, "V1")

	status, _, err := svc.Tag(ctx, viewer, "V1")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusTagged, status)

	status, _, err = svc.Tag(ctx, viewer, v.ID.String())
	require.NoError(t, err)
	assert.Equal(t, tags.StatusAlreadyTagged, status)

	var count int64
	require.NoError(t, tc.DB.Model(&models.Tag{}).Where("user_id = ? AND voter_id = ?", tc.User.ID, v.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Another user tags independently.
	status, _, err = svc.Tag(ctx, voters.Viewer{UserID: tc.Admin.ID, IsAdmin: true}, "V1")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusTagged, status)
}

func TestService_TagErrors(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)

	testutil.CreateTestVoter(t, tc.DB, "V1", testutil.WithCounty("Cook"))

	_, _, err := svc.Tag(ctx, voters.Viewer{UserID: tc.User.ID}, "missing")
	assert.ErrorIs(t, err, voters.ErrVoterNotFound)

	_, _, err = svc.Tag(ctx, voters.Viewer{UserID: tc.User.ID, Counties: []string{"Lake"}}, "V1")
	assert.ErrorIs(t, err, voters.ErrVoterNotFound)
}

func TestService_UntagIsIdempotent(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)
	viewer := voters.Viewer{UserID: tc.User.ID}

	v := testutil.CreateTestVoter(t, tc.DB, "V1")
	testutil.CreateTestTag(t, tc.DB, tc.User, v)

	status, err := svc.Untag(ctx, viewer, "V1")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusUntagged, status)

	status, err = svc.Untag(ctx, viewer, "V1")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusNotTagged, status)

	status, err = svc.Untag(ctx, viewer, "no-such-voter")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusNotTagged, status)

	// Re-tagging after untag works against the unique index.
	status, _, err = svc.Tag(ctx, viewer, "V1")
	require.NoError(t, err)
	assert.Equal(t, tags.StatusTagged, status)
}

func TestService_Dashboard(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)

	a := testutil.CreateTestVoter(t, tc.DB, "A", testutil.WithName("Ann", "Lee"))
	b := testutil.CreateTestVoter(t, tc.DB, "B", testutil.WithName("Bob", "Adams"), testutil.Voted())
	c := testutil.CreateTestVoter(t, tc.DB, "C", testutil.WithName("Cy", "Young"))
	testutil.CreateTestTag(t, tc.DB, tc.User, a)
	testutil.CreateTestTag(t, tc.DB, tc.User, b)
	testutil.CreateTestTag(t, tc.DB, tc.Admin, c)

	d, err := svc.Dashboard(ctx, tc.User.ID)
	require.NoError(t, err)
	require.Len(t, d.TaggedVoters, 2)
	assert.Equal(t, "Adams", d.TaggedVoters[0].LastName)
	assert.Equal(t, 2, d.TotalTagged)
	assert.Equal(t, 1, d.TotalVoted)
	assert.Equal(t, 1, d.TotalNotVoted)
	assert.Equal(t, d.TotalTagged-d.TotalVoted, d.TotalNotVoted)

	empty, err := svc.Dashboard(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty.TaggedVoters)
	assert.Zero(t, empty.TotalTagged)
}

func TestService_UpdateContact(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)
	viewer := voters.Viewer{UserID: tc.User.ID}

	v := testutil.CreateTestVoter(t, tc.DB, "V1")

	_, err := svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{Note: strPtr("hi")})
	assert.ErrorIs(t, err, tags.ErrNotTagged)

	testutil.CreateTestTag(t, tc.DB, tc.User, v)

	contact, err := svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{
		Phone: strPtr("555-9999"),
		Note:  strPtr("prefers evenings"),
	})
	require.NoError(t, err)
	assert.Equal(t, "555-9999", contact.Phone)

	// Stored encrypted, not in the clear.
	var tag models.Tag
	require.NoError(t, tc.DB.Where("user_id = ?", tc.User.ID).First(&tag).Error)
	assert.NotEmpty(t, tag.EncryptedContact)
	assert.NotContains(t, string(tag.EncryptedContact), "prefers evenings")

	d, err := svc.Dashboard(ctx, tc.User.ID)
	require.NoError(t, err)
	require.Len(t, d.TaggedVoters, 1)
	assert.Equal(t, "555-9999", d.TaggedVoters[0].Phone)
	assert.Equal(t, v.Email, d.TaggedVoters[0].Email)
	assert.Equal(t, "prefers evenings", d.TaggedVoters[0].Note)
	assert.True(t, d.TaggedVoters[0].Overridden)

	// Empty string clears, nil leaves alone.
	contact, err = svc.UpdateContact(ctx, viewer, v.ID.String(), tags.ContactUpdate{Phone: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, contact.Phone)
	assert.Equal(t, "prefers evenings", contact.Note)

	// Control characters are stripped, line breaks survive.
	contact, err = svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{
		Phone: strPtr("555\x00-1212"),
		Note:  strPtr("ring\x07 twice\nside door\x1b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "555-1212", contact.Phone)
	assert.Equal(t, "ring twice\nside door", contact.Note)

	_, err = svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{Email: strPtr("not an email")})
	assert.ErrorIs(t, err, tags.ErrInvalidEmail)

	_, err = svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{})
	assert.ErrorIs(t, err, tags.ErrEmptyOverride)

	// Overrides are per user.
	testutil.CreateTestTag(t, tc.DB, tc.Admin, v)
	admin, err := svc.Dashboard(ctx, tc.Admin.ID)
	require.NoError(t, err)
	require.Len(t, admin.TaggedVoters, 1)
	assert.Empty(t, admin.TaggedVoters[0].Note)
	assert.Equal(t, v.Phone, admin.TaggedVoters[0].Phone)
}

func TestService_WriteCallList(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)
	viewer := voters.Viewer{UserID: tc.User.ID}

	v1 := testutil.CreateTestVoter(t, tc.DB, "V1", testutil.WithName("Ann", "Lee"))
	v2 := testutil.CreateTestVoter(t, tc.DB, "V2", testutil.WithName("Bob", "Adams"), testutil.Voted())
	testutil.CreateTestTag(t, tc.DB, tc.User, v1)
	testutil.CreateTestTag(t, tc.DB, tc.User, v2)

	_, err := svc.UpdateContact(ctx, viewer, "V1", tags.ContactUpdate{Note: strPtr("call after 5, ask for Ann")})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := svc.WriteCallList(ctx, tc.User.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tags.CallListHeader, records[0])
	assert.Equal(t, "V1", records[1][0])
	assert.Equal(t, "call after 5, ask for Ann", records[1][9])
}

func TestService_Overview(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	svc := newService(t, tc)
	ctx := testutil.TestContext(t)

	v1 := testutil.CreateTestVoter(t, tc.DB, "V1", testutil.WithCounty("Cook"))
	v2 := testutil.CreateTestVoter(t, tc.DB, "V2")
	testutil.CreateTestTag(t, tc.DB, tc.User, v1)
	testutil.CreateTestTag(t, tc.DB, tc.User, v2)
	testutil.CreateTestTag(t, tc.DB, tc.Admin, v1)

	all, err := svc.Overview(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := svc.Overview(ctx, &tc.User.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, row := range mine {
		assert.Equal(t, tc.User.ID, row.UserID)
		assert.Equal(t, tc.User.Email, row.UserEmail)
		assert.NotEqual(t, uuid.Nil, row.VoterInternalID)
	}

	none, err := svc.Overview(ctx, &[]uuid.UUID{uuid.New()}[0])
	require.NoError(t, err)
	assert.Empty(t, none)
}
