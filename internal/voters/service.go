package voters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/api/validation"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/gorm"
)

var ErrVoterNotFound = errors.New("voter not found")

const (
	DefaultPageSize = 25
	maxQueryLength  = 200
)

// AllowedPageSizes are the page sizes the search UI offers.
var AllowedPageSizes = []int{10, 25, 50}

// SearchFields maps the field parameter to the column it searches.
var SearchFields = map[string]string{
	"first_name":       "voters.first_name",
	"last_name":        "voters.last_name",
	"address":          "voters.address",
	"city":             "voters.city",
	"state":            "voters.state",
	"zip_code":         "voters.zip_code",
	"registered_party": "voters.registered_party",
	"phone":            "voters.phone",
	"email":            "voters.email",
	"voter_id":         "voters.voter_id",
	"county":           "voters.county",
	"precinct":         "voters.precinct",
}

// broadSearchOrder fixes the column order of the "all" search so generated SQL is stable.
var broadSearchOrder = []string{
	"first_name", "last_name", "address", "city", "state", "zip_code",
	"registered_party", "phone", "email", "voter_id", "county", "precinct",
}

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

type SearchParams struct {
	Query    string
	Field    string
	Page     int
	PageSize int
}

// Normalize clamps paging and trims the query.
func (p *SearchParams) Normalize() {
	// maxQueryLength counts runes so the cut never splits a character.
	p.Query = validation.TruncateString(strings.TrimSpace(p.Query), maxQueryLength)
	p.Field = strings.ToLower(strings.TrimSpace(p.Field))
	if p.Page < 1 {
		p.Page = 1
	}
	p.PageSize = SnapPageSize(p.PageSize)
}

func (p *SearchParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// SnapPageSize returns size if it is one of AllowedPageSizes, else the default.
func SnapPageSize(size int) int {
	for _, allowed := range AllowedPageSizes {
		if size == allowed {
			return size
		}
	}
	return DefaultPageSize
}

// VoterResult is a search hit annotated for the calling user.
type VoterResult struct {
	models.Voter
	IsTagged bool `json:"is_tagged"`
}

type SearchResult struct {
	Voters     []VoterResult `json:"voters"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
	HasMore    bool          `json:"has_more"`
}

func (s *Service) Search(ctx context.Context, viewer Viewer, params SearchParams) (*SearchResult, error) {
	params.Normalize()

	query := viewer.Scope(s.db.WithContext(ctx).Model(&models.Voter{}))
	if params.Query != "" {
		query = applyMatch(query, params.Field, params.Query)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting voters: %w", err)
	}

	var found []models.Voter
	if err := query.
		Order("voters.last_name").Order("voters.first_name").Order("voters.voter_id").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&found).Error; err != nil {
		return nil, fmt.Errorf("searching voters: %w", err)
	}

	tagged, err := s.taggedAmong(ctx, viewer.UserID, found)
	if err != nil {
		return nil, err
	}

	results := make([]VoterResult, 0, len(found))
	for _, v := range found {
		_, isTagged := tagged[v.ID]
		results = append(results, VoterResult{Voter: v, IsTagged: isTagged})
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	return &SearchResult{
		Voters:     results,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
		HasMore:    int64(params.Offset()+len(results)) < total,
	}, nil
}

func applyMatch(db *gorm.DB, field, q string) *gorm.DB {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	if column, ok := SearchFields[field]; ok {
		return db.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", pattern)
	}

	clauses := make([]string, 0, len(broadSearchOrder))
	args := make([]interface{}, 0, len(broadSearchOrder))
	for _, name := range broadSearchOrder {
		clauses = append(clauses, "LOWER("+SearchFields[name]+") LIKE ? ESCAPE '\\'")
		args = append(args, pattern)
	}
	return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Service) taggedAmong(ctx context.Context, userID uuid.UUID, found []models.Voter) (map[uuid.UUID]struct{}, error) {
	tagged := make(map[uuid.UUID]struct{})
	if userID == uuid.Nil || len(found) == 0 {
		return tagged, nil
	}
	ids := make([]uuid.UUID, 0, len(found))
	for _, v := range found {
		ids = append(ids, v.ID)
	}

	var voterIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Where("user_id = ? AND voter_id IN ?", userID, ids).
		Pluck("voter_id", &voterIDs).Error; err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	for _, id := range voterIDs {
		tagged[id] = struct{}{}
	}
	return tagged, nil
}

// Resolve finds a voter by internal UUID or external voter_id, honoring the
// viewer's county restriction. Hidden voters are reported as not found.
func (s *Service) Resolve(ctx context.Context, viewer Viewer, ref string) (*models.Voter, error) {
	return Resolve(s.db.WithContext(ctx), viewer, ref)
}

// Resolve is Service.Resolve against an explicit handle, usable inside transactions.
func Resolve(db *gorm.DB, viewer Viewer, ref string) (*models.Voter, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrVoterNotFound
	}

	query := db.Model(&models.Voter{})
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("voters.id = ? OR voters.voter_id = ?", id, ref)
	} else {
		query = query.Where("voters.voter_id = ?", ref)
	}

	var voter models.Voter
	if err := viewer.Scope(query).First(&voter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoterNotFound
		}
		return nil, fmt.Errorf("loading voter: %w", err)
	}
	return &voter, nil
}

type DeleteResult struct {
	Deleted     int64 `json:"deleted"`
	DeletedTags int64 `json:"deleted_tags"`
}

// DeleteAll removes every tag and then every voter in one transaction.
func (s *Service) DeleteAll(ctx context.Context) (*DeleteResult, error) {
	var result DeleteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})

		res := global.Delete(&models.Tag{})
		if res.Error != nil {
			return fmt.Errorf("deleting tags: %w", res.Error)
		}
		result.DeletedTags = res.RowsAffected

		res = global.Delete(&models.Voter{})
		if res.Error != nil {
			return fmt.Errorf("deleting voters: %w", res.Error)
		}
		result.Deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("all voters deleted", "voters", result.Deleted, "tags", result.DeletedTags)
	return &result, nil
}
