package branding_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hugh/turnout-tracker/internal/branding"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/internal/testutil"
	"github.com/hugh/turnout-tracker/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is the smallest header http.DetectContentType recognizes as PNG.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

var gifBytes = append([]byte("GIF89a"), bytes.Repeat([]byte{1}, 32)...)

func newService(t *testing.T, publicURL string) (*branding.Service, *testutil.TestSetup, string) {
	t.Helper()
	tc := testutil.NewTestContext(t)
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "/uploads")
	require.NoError(t, err)
	return branding.NewService(tc.DB, store, "Team Turnout Tracker", publicURL, nil), tc, dir
}

func TestService_GetDefaults(t *testing.T) {
	svc, tc, _ := newService(t, "")
	defer tc.Cleanup()

	info, err := svc.Get(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "Team Turnout Tracker", info.AppName)
	assert.Nil(t, info.LogoURL)
}

func TestService_UploadLogo(t *testing.T) {
	svc, tc, dir := newService(t, "https://turnout.example.com/")
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)

	info, err := svc.UploadLogo(ctx, "Logo.PNG", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.NotNil(t, info.LogoURL)
	assert.True(t, strings.HasPrefix(*info.LogoURL, "https://turnout.example.com/uploads/logos/logo_"))
	assert.True(t, strings.HasSuffix(*info.LogoURL, ".png"))

	first, err := filepath.Glob(filepath.Join(dir, "logos", "*.png"))
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Replacing the logo removes the old object.
	info, err = svc.UploadLogo(ctx, "logo.gif", bytes.NewReader(gifBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(*info.LogoURL, ".gif"))

	_, err = os.Stat(first[0])
	assert.True(t, os.IsNotExist(err))

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, *info.LogoURL, *got.LogoURL)
}

func TestService_UploadLogoRejects(t *testing.T) {
	svc, tc, _ := newService(t, "")
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)

	_, err := svc.UploadLogo(ctx, "logo.svg", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, branding.ErrUnsupportedLogoType)

	_, err = svc.UploadLogo(ctx, "logo.png", strings.NewReader("definitely text, not an image"))
	assert.ErrorIs(t, err, branding.ErrUnsupportedLogoType)

	_, err = svc.UploadLogo(ctx, "logo.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, branding.ErrEmptyLogo)

	big := append(append([]byte{}, pngBytes...), make([]byte, branding.MaxLogoBytes)...)
	_, err = svc.UploadLogo(ctx, "logo.png", bytes.NewReader(big))
	assert.ErrorIs(t, err, branding.ErrLogoTooLarge)
}

func TestService_SetAppName(t *testing.T) {
	svc, tc, _ := newService(t, "")
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)

	info, err := svc.SetAppName(ctx, "  Boots on the Ground ")
	require.NoError(t, err)
	assert.Equal(t, "Boots on the Ground", info.AppName)

	_, err = svc.SetAppName(ctx, "   ")
	assert.ErrorIs(t, err, branding.ErrInvalidAppName)

	_, err = svc.SetAppName(ctx, strings.Repeat("x", 101))
	assert.ErrorIs(t, err, branding.ErrInvalidAppName)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Boots on the Ground", got.AppName)
}

func TestService_FirstWritesShareOneRow(t *testing.T) {
	svc, tc, _ := newService(t, "")
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.SetAppName(ctx, fmt.Sprintf("Team %d", i))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.UploadLogo(ctx, "logo.png", bytes.NewReader(pngBytes))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows []models.Branding
	require.NoError(t, tc.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.BrandingID, rows[0].ID)

	// Neither writer clobbers the other's column.
	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.AppName, "Team "))
	require.NotNil(t, got.LogoURL)
	assert.True(t, strings.HasSuffix(*got.LogoURL, ".png"))
}
