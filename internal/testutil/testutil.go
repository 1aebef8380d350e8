package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/database"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection to :memory: would be a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

func createUser(t *testing.T, db *gorm.DB, isAdmin bool) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	prefix := "user-"
	if isAdmin {
		prefix = "admin-"
	}
	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        prefix + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		FullName:     "Test User",
		IsAdmin:      isAdmin,
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestUser creates an active non-admin user with TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, false)
}

// CreateTestAdmin creates an active admin user with TestPassword.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, true)
}

// SetCountyAccess replaces the user's allowed counties.
func SetCountyAccess(t *testing.T, db *gorm.DB, user *models.User, counties ...string) {
	t.Helper()

	if err := db.Where("user_id = ?", user.ID).Delete(&models.UserCountyAccess{}).Error; err != nil {
		t.Fatalf("failed to clear county access: %v", err)
	}
	for _, county := range counties {
		row := &models.UserCountyAccess{UserID: user.ID, County: county}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("failed to create county access: %v", err)
		}
	}
}

// VoterOption adjusts a fixture voter before insert.
type VoterOption func(*models.Voter)

func WithCounty(county string) VoterOption {
	return func(v *models.Voter) { v.County = county }
}

func WithName(first, last string) VoterOption {
	return func(v *models.Voter) {
		v.FirstName = first
		v.LastName = last
	}
}

func Voted() VoterOption {
	return func(v *models.Voter) {
		v.HasVoted = true
		v.VotedAt = time.Now().Unix()
	}
}

// CreateTestVoter creates a voter with the given external id
func CreateTestVoter(t *testing.T, db *gorm.DB, voterID string, opts ...VoterOption) *models.Voter {
	t.Helper()

	voter := &models.Voter{
		Base: models.Base{
			ID: uuid.New(),
		},
		VoterID:   voterID,
		FirstName: "Test",
		LastName:  "Voter " + voterID,
		Address:   "1 Main St",
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62701",
		County:    "Sangamon",
		Precinct:  "P-1",
		Phone:     "555-0100",
		Email:     strings.ToLower(voterID) + "@voters.example.com",
	}
	for _, opt := range opts {
		opt(voter)
	}

	if err := db.Create(voter).Error; err != nil {
		t.Fatalf("failed to create test voter: %v", err)
	}

	return voter
}

// CreateTestTag tags voter for user
func CreateTestTag(t *testing.T, db *gorm.DB, user *models.User, voter *models.Voter) *models.Tag {
	t.Helper()

	tag := &models.Tag{
		Base: models.Base{
			ID: uuid.New(),
		},
		UserID:  user.ID,
		VoterID: voter.ID,
	}

	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}

	return tag
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// MultipartRequest builds a request carrying content as the "file" form field.
func MultipartRequest(t *testing.T, method, path, filename string, content []byte, token string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Admin      *models.User
	AdminToken string
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, an admin, a regular user and their tokens
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	admin := CreateTestAdmin(t, db)
	user := CreateTestUser(t, db)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Admin:      admin,
		AdminToken: GenerateTestToken(t, jwtService, admin),
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
