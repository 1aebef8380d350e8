package models

// Voter is one row of the canvassed roll, keyed externally by VoterID.
type Voter struct {
	Base
	VoterID string `gorm:"uniqueIndex;not null" json:"voter_id"`

	FirstName string `gorm:"index;not null;default:''" json:"first_name"`
	LastName  string `gorm:"index;not null;default:''" json:"last_name"`

	Address string `json:"address"`
	City    string `gorm:"index" json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`

	County          string `gorm:"index" json:"county"`
	Precinct        string `json:"precinct"`
	RegisteredParty string `json:"registered_party"`

	Phone string `json:"phone"`
	Email string `json:"email"`

	// HasVoted only ever moves from false to true.
	HasVoted bool  `gorm:"default:false;index" json:"has_voted"`
	VotedAt  int64 `json:"voted_at,omitempty"`

	Tags []Tag `gorm:"foreignKey:VoterID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Voter) TableName() string {
	return "voters"
}
