package domain

import (
	"strings"
	"time"
)

// Role is the access level of a club account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User represents a club account.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Role           Role      `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName is the full name, falling back to the username.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

const DefaultBio = "Hey! Just another fellow member in the club!"

// Profile holds the club-specific details of a user.
type Profile struct {
	UserID                int64     `db:"user_id" json:"user_id"`
	Age                   int       `db:"age" json:"age"`
	School                string    `db:"school" json:"school"`
	ProgrammingExperience string    `db:"programming_experience" json:"programming_experience"`
	Bio                   string    `db:"bio" json:"bio"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Profile) IsComplete(u *User) bool {
	return u.FirstName != "" && u.LastName != "" && p.Age > 0 && p.School != "" && p.ProgrammingExperience != ""
}

// ApplicationStatus tracks where a membership application is in review.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a membership request from a prospective member.
type Application struct {
	ID                    int64             `db:"id" json:"id"`
	Username              string            `db:"username" json:"username"`
	Email                 string            `db:"email" json:"email"`
	HashedPassword        string            `db:"hashed_password" json:"-"`
	FirstName             string            `db:"first_name" json:"first_name"`
	LastName              string            `db:"last_name" json:"last_name"`
	Age                   int               `db:"age" json:"age"`
	School                string            `db:"school" json:"school"`
	ProgrammingExperience string            `db:"programming_experience" json:"programming_experience"`
	WhyJoin               string            `db:"why_join" json:"why_join"`
	Status                ApplicationStatus `db:"status" json:"status"`
	RejectionReason       string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	SubmittedAt           time.Time         `db:"submitted_at" json:"submitted_at"`
	ReviewedAt            *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy            *int64            `db:"reviewed_by" json:"reviewed_by,omitempty"`
}

// Conversation is the private channel between an unordered pair of users.
// UserLow < UserHigh always holds.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserLow   int64     `db:"user_low" json:"user_low"`
	UserHigh  int64     `db:"user_high" json:"user_high"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OtherParticipant returns whichever participant is not userID.
func (c *Conversation) OtherParticipant(userID int64) (int64, error) {
	switch userID {
	case c.UserLow:
		return c.UserHigh, nil
	case c.UserHigh:
		return c.UserLow, nil
	}
	return 0, ErrNotFound
}

// GroupScope is the audience of a broadcast message.
type GroupScope string

const (
	GroupAll    GroupScope = "all"
	GroupAdmins GroupScope = "admin"
)

func ParseGroupScope(s string) (GroupScope, error) {
	switch GroupScope(s) {
	case GroupAll, GroupAdmins:
		return GroupScope(s), nil
	}
	return "", ErrInvalidInput
}

func (s GroupScope) DisplayName() string {
	if s == GroupAdmins {
		return "Admins Only"
	}
	return "All Members"
}

// CanRead reports whether a user with the given role sees this scope.
func (s GroupScope) CanRead(role Role) bool {
	return s == GroupAll || role == RoleAdmin
}

// MessageTarget says where a message is delivered. It is either
// PrivateTarget or BroadcastTarget.
type MessageTarget interface {
	isMessageTarget()
}

type PrivateTarget struct {
	ConversationID int64
	ReceiverID     int64
}

type BroadcastTarget struct {
	Scope GroupScope
}

func (PrivateTarget) isMessageTarget()   {}
func (BroadcastTarget) isMessageTarget() {}

// Message is a single chat message. Content is encrypted at rest.
type Message struct {
	ID        int64         `db:"id"`
	SenderID  int64         `db:"sender_id"`
	Content   string        `db:"content"`
	IsRead    bool          `db:"is_read"`
	CreatedAt time.Time     `db:"created_at"`
	Target    MessageTarget `db:"-"`
}

// Private returns the private target and true when the message is private.
func (m *Message) Private() (PrivateTarget, bool) {
	t, ok := m.Target.(PrivateTarget)
	return t, ok
}

// FeedScope selects the stream a feed query reads from. It is either
// ConversationFeed or GroupFeed.
type FeedScope interface {
	isFeedScope()
}

type ConversationFeed struct {
	ConversationID int64
}

type GroupFeed struct {
	Scope GroupScope
}

func (ConversationFeed) isFeedScope() {}
func (GroupFeed) isFeedScope()        {}

// Block prevents messaging between two users in both directions.
type Block struct {
	ID        int64     `db:"id" json:"id"`
	BlockerID int64     `db:"blocker_id" json:"blocker_id"`
	BlockedID int64     `db:"blocked_id" json:"blocked_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ReportReason string

const (
	ReasonHarassment    ReportReason = "harassment"
	ReasonSpam          ReportReason = "spam"
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonCheating      ReportReason = "cheating"
	ReasonOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonHarassment, ReasonSpam, ReasonInappropriate, ReasonCheating, ReasonOther:
		return true
	}
	return false
}

// Report is a member complaint reviewed by admins.
type Report struct {
	ID             int64        `db:"id" json:"id"`
	ReporterID     int64        `db:"reporter_id" json:"reporter_id"`
	ReportedUserID int64        `db:"reported_user_id" json:"reported_user_id"`
	Reason         ReportReason `db:"reason" json:"reason"`
	Description    string       `db:"description" json:"description"`
	Reviewed       bool         `db:"reviewed" json:"reviewed"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// Post is an admin-authored article.
type Post struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Comment struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CompetitionStatus string

const (
	CompetitionUpcoming  CompetitionStatus = "upcoming"
	CompetitionActive    CompetitionStatus = "active"
	CompetitionCompleted CompetitionStatus = "completed"
)

func (s CompetitionStatus) Valid() bool {
	switch s {
	case CompetitionUpcoming, CompetitionActive, CompetitionCompleted:
		return true
	}
	return false
}

// Competition is a programming contest.
type Competition struct {
	ID          int64             `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description"`
	StartDate   time.Time         `db:"start_date" json:"start_date"`
	EndDate     time.Time         `db:"end_date" json:"end_date"`
	Status      CompetitionStatus `db:"status" json:"status"`
	MaxScore    int               `db:"max_score" json:"max_score"`
	CreatedBy   int64             `db:"created_by" json:"created_by"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

type Problem struct {
	ID            int64  `db:"id" json:"id"`
	CompetitionID int64  `db:"competition_id" json:"competition_id"`
	Title         string `db:"title" json:"title"`
	Description   string `db:"description" json:"description"`
	Points        int    `db:"points" json:"points"`
	Position      int    `db:"position" json:"order"`
}

// Submission is a user's single entry in a competition.
type Submission struct {
	ID            int64      `db:"id" json:"id"`
	CompetitionID int64      `db:"competition_id" json:"competition_id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Solution      string     `db:"solution" json:"solution"`
	Score         int        `db:"score" json:"score"`
	Rank          *int       `db:"rank" json:"rank,omitempty"`
	SubmittedAt   time.Time  `db:"submitted_at" json:"submitted_at"`
	ScoredBy      *int64     `db:"scored_by" json:"scored_by,omitempty"`
	ScoredAt      *time.Time `db:"scored_at" json:"scored_at,omitempty"`
	Feedback      string     `db:"feedback" json:"feedback"`
}
