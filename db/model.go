package db

import "time"

// ===========================
// TEAM MODELS
// ===========================

// TeamKind discriminates the three team variants.
// A division always hangs under a contest; the other two kinds have no parent.
type TeamKind string

const (
	KindTraditional TeamKind = "traditional"
	KindContest     TeamKind = "contest"
	KindDivision    TeamKind = "division"
)

// Access policies govern how join requests are handled
const (
	AccessOpen       = "open"        // join requests are approved immediately
	AccessApply      = "apply"       // join requests wait for a manager's decision
	AccessInviteOnly = "invite_only" // join requests are rejected outright
)

// Team represents a tasting team, contest, or contest division
type Team struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Kind       TeamKind `json:"kind"`
	ParentID   string   `json:"parent_id,omitempty"` // set only for divisions (owning contest)
	Visibility string   `json:"visibility"`          // public, hidden, private, unlisted
	Access     string   `json:"access"`              // open, apply, invite_only
	Avatar     string   `json:"avatar,omitempty"`
	CreatedBy  string   `json:"created_by,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"` // soft delete marker

	// For API responses (populated via JOINs)
	MemberCount int `json:"member_count,omitempty"`
}

// Relation is one granted (user, team, role) membership fact.
// A user may hold several roles on the same team; each (user, team, role)
// triple exists at most once among live rows.
type Relation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TeamID    string     `json:"team_id"`
	Role      string     `json:"role"`
	GrantedBy string     `json:"granted_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// User details (populated when listing team members)
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// ===========================
// MEMBERSHIP WORKFLOW MODELS
// ===========================

// Action kinds and statuses for the join-request / invite workflow
const (
	ActionJoin   = "join"
	ActionInvite = "invite"

	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

// Action is a pending or decided join-request / invite record.
// At most one pending action exists per (user, team, kind).
type Action struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TeamID    string     `json:"team_id"`
	Kind      string     `json:"kind"`   // join, invite
	Role      string     `json:"role"`   // requested role
	Status    string     `json:"status"` // pending, approved, declined, cancelled
	CreatedBy string     `json:"created_by,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// User details (populated when listing pending actions)
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// ===========================
// TASTING MODELS
// ===========================

// Collection is a curated set of items to taste, grouped under a theme
type Collection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Theme     string     `json:"theme"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CollectionImpression is a single tastable item within a collection
type CollectionImpression struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Label        string    `json:"label"`
	Position     int       `json:"position"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// TeamCollection link types
const (
	LinkCategory = "category" // contest-level ownership
	LinkDivision = "division" // division-level assignment
)

// TeamCollection associates a team with a collection.
// A collection is owned by exactly one contest (category link) but may be
// assigned to any number of that contest's divisions (division links).
type TeamCollection struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	CollectionID string    `json:"collection_id"`
	LinkType     string    `json:"link_type"` // category, division
	CreatedAt    time.Time `json:"created_at"`
}

// Statement captures a team's recorded judgment on one collection impression.
// Unique per (team, impression); upserted, never duplicated.
type Statement struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	ImpressionID string    `json:"impression_id"`
	Statement    *string   `json:"statement,omitempty"` // nil until the team records a verdict
	RecordedBy   string    `json:"recorded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ThemeProgress is one row of the per-theme progress rollup
type ThemeProgress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// ===========================
// USER MODELS
// ===========================

// User represents a registered platform user
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Handle    string     `json:"handle"`
	Email     string     `json:"email"`
	FCMToken  string     `json:"fcm_token,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
