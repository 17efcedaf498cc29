package domain

import (
	"context"
	"iter"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
}

// ProfileRepository defines persistence operations for member profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID int64) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}

// ApplicationRepository defines persistence operations for membership applications.
type ApplicationRepository interface {
	Create(ctx context.Context, a *Application) error
	GetByID(ctx context.Context, id int64) (*Application, error)
	ListByStatus(ctx context.Context, status ApplicationStatus) ([]*Application, error)
	CountByStatus(ctx context.Context, status ApplicationStatus) (int, error)
	Update(ctx context.Context, a *Application) error
	Delete(ctx context.Context, id int64) error
}

// ConversationRepository defines persistence operations for private conversations.
type ConversationRepository interface {
	// GetOrCreate returns the conversation of the pair, creating it when
	// missing. A concurrent creation of the same pair returns the winner's row.
	GetOrCreate(ctx context.Context, pair Pair, now time.Time) (*Conversation, error)
	// FindByPair returns nil, nil when the pair has no conversation yet.
	FindByPair(ctx context.Context, pair Pair) (*Conversation, error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	// Lock serializes writers of one conversation until the transaction ends.
	Lock(ctx context.Context, id int64) error
	Touch(ctx context.Context, id int64, now time.Time) error
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
}

// MessageRepository is the append-only message ledger.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// LockScope serializes broadcast appends to scope until the transaction
	// ends, so ids in a scope commit in order.
	LockScope(ctx context.Context, scope GroupScope) error
	// Since yields messages of the scope with id > afterID in id order. The
	// sequence queries lazily and can be ranged over again.
	Since(ctx context.Context, scope FeedScope, afterID int64) iter.Seq2[*Message, error]
	MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	// MarkReadRange marks read the messages addressed to readerID with
	// afterID < id <= uptoID.
	MarkReadRange(ctx context.Context, conversationID, readerID, afterID, uptoID int64) (int64, error)
	CountUnread(ctx context.Context, conversationID, userID int64) (int, error)
	CountUnreadByConversation(ctx context.Context, userID int64) (map[int64]int, error)
	CountUnreadForReceiver(ctx context.Context, userID int64) (int, error)
}

// FirstContactRepository stores first-contact throttle records.
type FirstContactRepository interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, senderID, receiverID int64) (*FirstContact, error)
	// FindForUpdate is Get plus a row lock held until the transaction ends.
	FindForUpdate(ctx context.Context, senderID, receiverID int64) (*FirstContact, error)
	// Ensure creates a zero-count record unless one exists.
	Ensure(ctx context.Context, senderID, receiverID int64, now time.Time) error
	Update(ctx context.Context, fc *FirstContact) error
}

// BlockRepository defines persistence operations for user blocks.
type BlockRepository interface {
	Create(ctx context.Context, b *Block) error
	Delete(ctx context.Context, blockerID, blockedID int64) error
	Exists(ctx context.Context, blockerID, blockedID int64) (bool, error)
	ExistsEither(ctx context.Context, a, b int64) (bool, error)
	ListByBlocker(ctx context.Context, blockerID int64) ([]*Block, error)
}

// ReportRepository defines persistence operations for member reports.
type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id int64) (*Report, error)
	ListByReviewed(ctx context.Context, reviewed bool, limit int) ([]*Report, error)
	MarkReviewed(ctx context.Context, id int64) error
}

// PostRepository defines persistence operations for posts and their comments.
type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context) ([]*Post, error)
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id int64) (*Comment, error)
	ListComments(ctx context.Context, postID int64) ([]*Comment, error)
	UpdateComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id int64) error
}

// CompetitionRepository defines persistence operations for competitions,
// their problems and submissions.
type CompetitionRepository interface {
	Create(ctx context.Context, c *Competition) error
	GetByID(ctx context.Context, id int64) (*Competition, error)
	List(ctx context.Context) ([]*Competition, error)
	Update(ctx context.Context, c *Competition) error
	Delete(ctx context.Context, id int64) error

	AddProblem(ctx context.Context, p *Problem) error
	ListProblems(ctx context.Context, competitionID int64) ([]*Problem, error)

	GetSubmission(ctx context.Context, id int64) (*Submission, error)
	// FindSubmission returns nil, nil when the user has not submitted.
	FindSubmission(ctx context.Context, competitionID, userID int64) (*Submission, error)
	CreateSubmission(ctx context.Context, s *Submission) error
	UpdateSolution(ctx context.Context, s *Submission) error
	Score(ctx context.Context, s *Submission) error
	// ListSubmissions orders by score desc, then submission time.
	ListSubmissions(ctx context.Context, competitionID int64) ([]*Submission, error)
	SetRank(ctx context.Context, submissionID int64, rank int) error
}

// Repositories groups the repositories bound to one database handle.
type Repositories struct {
	Users         UserRepository
	Profiles      ProfileRepository
	Applications  ApplicationRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	FirstContacts FirstContactRepository
	Blocks        BlockRepository
	Reports       ReportRepository
	Posts         PostRepository
	Competitions  CompetitionRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() *Repositories
	// WithinTx runs fn with repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(*Repositories) error) error
}
