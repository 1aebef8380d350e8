package voters_test

import (
	"strings"
	"testing"

	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/internal/testutil"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func loadVoter(t *testing.T, db *gorm.DB, voterID string) models.Voter {
	t.Helper()
	var v models.Voter
	require.NoError(t, db.Where("voter_id = ?", voterID).First(&v).Error)
	return v
}

func TestImporter_ImportVoters(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	im := voters.NewImporter(tc.DB, nil)
	ctx := testutil.TestContext(t)

	file := "\ufeffVoter ID,First Name,Last-Name,ZIP,Party,County\n" +
		"V1,Ann,Lee,62701,DEM,Cook\n" +
		"V2,Bob,Adams,62702,REP,Cook\n" +
		",No,Id,00000,IND,Cook\n" +
		"V3,Short,Row\n"

	res, err := im.ImportVoters(ctx, strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Line)
	assert.Equal(t, "missing voter_id", res.Errors[0].Reason)

	// A short row that still carries its voter_id is kept and flagged.
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 5, res.Warnings[0].Line)
	assert.Equal(t, "expected 6 columns, got 3", res.Warnings[0].Reason)
	short := loadVoter(t, tc.DB, "V3")
	assert.Equal(t, "Short", short.FirstName)
	assert.Equal(t, "Row", short.LastName)
	assert.Empty(t, short.County)

	ann := loadVoter(t, tc.DB, "V1")
	assert.Equal(t, "Ann", ann.FirstName)
	assert.Equal(t, "62701", ann.ZipCode)
	assert.Equal(t, "DEM", ann.RegisteredParty)

	t.Run("re-import updates instead of duplicating", func(t *testing.T) {
		res, err := im.ImportVoters(ctx, strings.NewReader("voter_id,phone\nV1,555-1234\nV2,\nV9,555-9999\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
		assert.Equal(t, 2, res.Updated)

		var count int64
		require.NoError(t, tc.DB.Model(&models.Voter{}).Where("voter_id = ?", "V1").Count(&count).Error)
		assert.Equal(t, int64(1), count)

		ann := loadVoter(t, tc.DB, "V1")
		assert.Equal(t, "555-1234", ann.Phone)
		// Columns absent from the file keep their values.
		assert.Equal(t, "Ann", ann.FirstName)
		assert.Equal(t, "Cook", ann.County)
	})

	t.Run("duplicate ids within one file", func(t *testing.T) {
		res, err := im.ImportVoters(ctx, strings.NewReader("voter_id,first_name\nN1,First\nN1,Second\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, "Second", loadVoter(t, tc.DB, "N1").FirstName)
	})

	t.Run("missing voter_id column", func(t *testing.T) {
		_, err := im.ImportVoters(ctx, strings.NewReader("first_name,last_name\nAnn,Lee\n"))
		assert.ErrorIs(t, err, voters.ErrMissingVoterIDColumn)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := im.ImportVoters(ctx, strings.NewReader(""))
		assert.ErrorIs(t, err, voters.ErrEmptyFile)
	})
}

func TestImporter_GenericIDColumnDoesNotShadowVoterID(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	im := voters.NewImporter(tc.DB, nil)
	ctx := testutil.TestContext(t)

	file := "ID,Voter ID,First Name,Last Name\n1,NC000123,Ann,Lee\n2,NC000456,Bob,Ray\n"
	res, err := im.ImportVoters(ctx, strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	var ids []string
	require.NoError(t, tc.DB.Model(&models.Voter{}).Order("voter_id").Pluck("voter_id", &ids).Error)
	assert.Equal(t, []string{"NC000123", "NC000456"}, ids)

	t.Run("voted list", func(t *testing.T) {
		res, err := im.ImportVoted(ctx, strings.NewReader("id,voter_id\n1,NC000123\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 0, res.NotFound)
		assert.True(t, loadVoter(t, tc.DB, "NC000123").HasVoted)
	})

	t.Run("bare id column still works alone", func(t *testing.T) {
		res, err := im.ImportVoters(ctx, strings.NewReader("id,first_name\nNC000789,Cy\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
		assert.Equal(t, "Cy", loadVoter(t, tc.DB, "NC000789").FirstName)
	})
}

func TestImporter_FullNameColumn(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	im := voters.NewImporter(tc.DB, nil)
	ctx := testutil.TestContext(t)

	file := "voterid,name\nF1,\"Lee, Ann Marie\"\nF2,Bob Adams\n"
	res, err := im.ImportVoters(ctx, strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	f1 := loadVoter(t, tc.DB, "F1")
	assert.Equal(t, "Ann Marie", f1.FirstName)
	assert.Equal(t, "Lee", f1.LastName)

	f2 := loadVoter(t, tc.DB, "F2")
	assert.Equal(t, "Bob", f2.FirstName)
	assert.Equal(t, "Adams", f2.LastName)
}

func TestImporter_HasVotedNeverUnset(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	im := voters.NewImporter(tc.DB, nil)
	ctx := testutil.TestContext(t)

	testutil.CreateTestVoter(t, tc.DB, "H1", testutil.Voted())
	testutil.CreateTestVoter(t, tc.DB, "H2")

	_, err := im.ImportVoters(ctx, strings.NewReader("voter_id,voted\nH1,no\nH2,Y\n"))
	require.NoError(t, err)

	assert.True(t, loadVoter(t, tc.DB, "H1").HasVoted)
	h2 := loadVoter(t, tc.DB, "H2")
	assert.True(t, h2.HasVoted)
	assert.NotZero(t, h2.VotedAt)
}

func TestImporter_ImportVoted(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	im := voters.NewImporter(tc.DB, nil)
	ctx := testutil.TestContext(t)

	testutil.CreateTestVoter(t, tc.DB, "V1")
	testutil.CreateTestVoter(t, tc.DB, "V2", testutil.Voted())
	testutil.CreateTestVoter(t, tc.DB, "V3")

	t.Run("csv with header", func(t *testing.T) {
		res, err := im.ImportVoted(ctx, strings.NewReader("Name,SOS VoterID\nAnn,V1\nBob,V2\nGhost,X9\nAnn,V1\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.AlreadyVoted)
		assert.Equal(t, 1, res.NotFound)
		assert.Equal(t, []string{"X9"}, res.NotFoundIDs)
		assert.True(t, loadVoter(t, tc.DB, "V1").HasVoted)
	})

	t.Run("headerless list", func(t *testing.T) {
		res, err := im.ImportVoted(ctx, strings.NewReader("V3\n\nV404\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.NotFound)
		assert.True(t, loadVoter(t, tc.DB, "V3").HasVoted)
	})

	t.Run("multi column without voter id", func(t *testing.T) {
		_, err := im.ImportVoted(ctx, strings.NewReader("a,b\n1,2\n"))
		assert.ErrorIs(t, err, voters.ErrMissingVoterIDColumn)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := im.ImportVoted(ctx, strings.NewReader("\n\n"))
		assert.ErrorIs(t, err, voters.ErrEmptyFile)
	})
}
