package models

import "time"

// User holds a student profile. Research interests are the free-text source
// for the profile embedding.
type User struct {
	ID                  string     `json:"userID"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Name                string     `json:"name"`
	University          string     `json:"university,omitempty"`
	Major               string     `json:"major,omitempty"`
	GraduationYear      int        `json:"graduationYear,omitempty"`
	GPA                 string     `json:"gpa,omitempty"`
	ResumeFilePath      string     `json:"resumeFilePath,omitempty"`
	ResumeText          string     `json:"-"`
	Skills              []string   `json:"skills,omitempty"`
	ResearchInterests   string     `json:"researchInterests"`
	DegreeLevel         string     `json:"degreeLevel"` // undergraduate|masters|phd
	LocationPreferences []string   `json:"locationPreferences,omitempty"`
	Availability        string     `json:"availability,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Opportunity is the filterable, ranked entity discovered by scraping.
type Opportunity struct {
	ID                 string     `json:"opportunityID"`
	SourceURL          string     `json:"sourceURL"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	LabName            string     `json:"labName,omitempty"`
	PIName             string     `json:"piName,omitempty"`
	Institution        string     `json:"institution,omitempty"`
	ResearchTopics     []string   `json:"researchTopics,omitempty"`
	Methods            []string   `json:"methods,omitempty"`
	Datasets           []string   `json:"datasets,omitempty"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	FundingStatus      string     `json:"fundingStatus,omitempty"` // funded|unfunded|tbd
	ExperienceRequired string     `json:"experienceRequired,omitempty"`
	ContactEmail       string     `json:"contactEmail,omitempty"`
	ApplicationLink    string     `json:"applicationLink,omitempty"`
	IsActive           bool       `json:"isActive"`
	LocationCity       string     `json:"locationCity,omitempty"`
	LocationState      string     `json:"locationState,omitempty"` // two-letter state code
	IsRemote           bool       `json:"isRemote"`
	DegreeLevels       []string   `json:"degreeLevels,omitempty"`
	MinHours           *int       `json:"minHours,omitempty"`
	MaxHours           *int       `json:"maxHours,omitempty"`
	PaidType           string     `json:"paidType,omitempty"` // stipend|hourly|unpaid|credit
	ScrapedAt          time.Time  `json:"scrapedAt"`
	LastUpdated        time.Time  `json:"lastUpdated"`
}

// Owner kinds for embedding rows.
const (
	OwnerUser        = "user"
	OwnerOpportunity = "opportunity"
)

// Embedding is one stored vector per owner entity, replaced in place on
// regeneration. SourceText records the exact text that was embedded.
type Embedding struct {
	OwnerKind  string    `json:"ownerKind"`
	OwnerID    string    `json:"ownerID"`
	Model      string    `json:"model"`
	SourceText string    `json:"-"`
	Dim        int       `json:"dim"`
	Vector     []float32 `json:"-"`
	EmbeddedAt time.Time `json:"embeddedAt"`
}

// RefreshToken supports rotation and revocation of JWT refresh tokens.
type RefreshToken struct {
	Token     string
	UserID    string
	Revoked   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid reports whether the token can still mint new access tokens.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Outreach records one drafted cold email for a (user, opportunity) pair.
type Outreach struct {
	ID              string     `json:"outreachID"`
	UserID          string     `json:"userID"`
	OpportunityID   string     `json:"opportunityID"`
	GeneratedEmail  string     `json:"generatedEmail"`
	UserEditedEmail string     `json:"userEditedEmail,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Match is a saved search hit with a user-visible status.
type Match struct {
	ID            string    `json:"matchID"`
	UserID        string    `json:"userID"`
	OpportunityID string    `json:"opportunityID"`
	Score         float64   `json:"matchScore"`
	Status        string    `json:"userStatus"` // pending|saved|dismissed|contacted
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SearchFilters narrows candidates before ranking. Zero values mean the
// corresponding filter is absent and every opportunity passes it.
type SearchFilters struct {
	States       []string `json:"states,omitempty"`       // two-letter codes; remote postings bypass this
	IsRemote     *bool    `json:"isRemote,omitempty"`     // exact match when set
	DegreeLevel  string   `json:"degreeLevel,omitempty"`  // must appear in the posting's accepted levels
	PaidType     string   `json:"paidType,omitempty"`     // exact match when set
	MinHours     *int     `json:"minHours,omitempty"`
	MaxHours     *int     `json:"maxHours,omitempty"` // must fit the posting's open-bounded range
}

// SearchResult pairs an opportunity with its similarity score in [0,1].
type SearchResult struct {
	Opportunity *Opportunity `json:"opportunity"`
	Score       float64      `json:"similarityScore"`
}
