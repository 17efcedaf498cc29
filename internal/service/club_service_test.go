package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clubhouse/internal/domain"
	"clubhouse/internal/security"
	"clubhouse/internal/service"
)

func validApplication(username string) service.ApplyInput {
	return service.ApplyInput{
		Username:              username,
		Email:                 username + "@School.edu",
		Password:              "Password1!",
		PasswordConfirm:       "Password1!",
		FirstName:             "Ada",
		LastName:              "Lovelace",
		Age:                   17,
		School:                "Analytical High",
		ProgrammingExperience: "Python, some Go",
		WhyJoin:               "I like contests",
	}
}

func TestApplicationWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	hasher := security.NewPasswordHasher(4)
	apps := service.NewApplicationService(store, hasher, zap.NewNop())
	admin := seedUser(t, store, "root", domain.RoleAdmin)

	t.Run("ApplyValidates", func(t *testing.T) {
		in := validApplication("mismatch")
		in.PasswordConfirm = "something else"
		_, err := apps.Apply(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		in = validApplication("young")
		in.Age = 0
		_, err = apps.Apply(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = apps.Apply(ctx, validApplication("root"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("ApproveProvisionsMember", func(t *testing.T) {
		app, err := apps.Apply(ctx, validApplication("ada"))
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationPending, app.Status)
		assert.Equal(t, "ada@school.edu", app.Email)
		require.NoError(t, hasher.Verify("Password1!", app.HashedPassword))

		dash, err := apps.Dashboard(ctx)
		require.NoError(t, err)
		require.Len(t, dash.Pending, 1)

		user, err := apps.Approve(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada", user.Username)
		assert.Equal(t, domain.RoleMember, user.Role)
		assert.True(t, user.IsActive)

		profile, err := store.Repos().Profiles.GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 17, profile.Age)
		assert.Equal(t, domain.DefaultBio, profile.Bio)

		_, err = apps.Get(ctx, app.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = apps.Apply(ctx, validApplication("ada"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("RejectIsFinal", func(t *testing.T) {
		app, err := apps.Apply(ctx, validApplication("grace"))
		require.NoError(t, err)

		rejected, err := apps.Reject(ctx, admin, app.ID, " not now ")
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationRejected, rejected.Status)
		assert.Equal(t, "not now", rejected.RejectionReason)
		require.NotNil(t, rejected.ReviewedBy)
		assert.Equal(t, admin.ID, *rejected.ReviewedBy)

		_, err = apps.Approve(ctx, app.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		_, err = store.Repos().Users.GetByUsername(ctx, "grace")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		dash, err := apps.Dashboard(ctx)
		require.NoError(t, err)
		assert.Empty(t, dash.Pending)
		assert.Equal(t, 1, dash.RejectedCount)
	})
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	users := service.NewUserService(store, zap.NewNop())

	admin, err := users.Provision(ctx, service.ProvisionInput{
		Username: "root", Email: "root@example.com", HashedPassword: "x", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	member, err := users.Provision(ctx, service.ProvisionInput{
		Username: "bob", Email: "bob@example.com", HashedPassword: "x", Role: domain.RoleMember,
		FirstName: "Bob", LastName: "Smith", Age: 16, School: "North", ProgrammingExperience: "Go",
	})
	require.NoError(t, err)

	_, err = users.Provision(ctx, service.ProvisionInput{Username: "bob", Email: "other@example.com", Role: domain.RoleMember})
	assert.ErrorIs(t, err, domain.ErrConflict)

	t.Run("Members", func(t *testing.T) {
		m, err := users.Members(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, m.AdminCount)
		assert.Equal(t, 1, m.MemberCount)
		assert.Equal(t, 2, m.TotalMembers)
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		view, err := users.Profile(ctx, member)
		require.NoError(t, err)
		assert.True(t, view.Complete)

		long := string(make([]rune, 501))
		_, err = users.UpdateProfile(ctx, member, service.ProfileUpdate{Bio: &long})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		bio := "  Competitive programmer  "
		school := "South"
		view, err = users.UpdateProfile(ctx, member, service.ProfileUpdate{Bio: &bio, School: &school})
		require.NoError(t, err)
		assert.Equal(t, "Competitive programmer", view.Profile.Bio)
		assert.Equal(t, "South", view.Profile.School)
		assert.Equal(t, "Bob", view.User.FirstName)
	})

	t.Run("Kick", func(t *testing.T) {
		assert.ErrorIs(t, users.Kick(ctx, admin, admin.ID, ""), domain.ErrForbidden)

		other := seedUser(t, store, "admin2", domain.RoleAdmin)
		assert.ErrorIs(t, users.Kick(ctx, admin, other.ID, ""), domain.ErrForbidden)

		require.NoError(t, users.Kick(ctx, admin, member.ID, ""))
		_, err := users.GetByID(ctx, member.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		rejected, err := store.Repos().Applications.ListByStatus(ctx, domain.ApplicationRejected)
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, "bob", rejected[0].Username)
		assert.Equal(t, "Removed by admin", rejected[0].RejectionReason)
		assert.Equal(t, "[User was removed from club]", rejected[0].WhyJoin)
	})
}

type failingProfiles struct {
	domain.ProfileRepository
	err error
}

func (p failingProfiles) GetByUserID(context.Context, int64) (*domain.Profile, error) {
	return nil, p.err
}

// failingProfileStore hands transactions a profile repository whose lookups fail.
type failingProfileStore struct {
	domain.Store
	err error
}

func (s failingProfileStore) WithinTx(ctx context.Context, fn func(*domain.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(r *domain.Repositories) error {
		repos := *r
		repos.Profiles = failingProfiles{ProfileRepository: r.Profiles, err: s.err}
		return fn(&repos)
	})
}

func TestKickProfileLookup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	admin := seedUser(t, store, "root", domain.RoleAdmin)

	t.Run("MissingProfileIsEmpty", func(t *testing.T) {
		bare := seedUser(t, store, "bare", domain.RoleMember)
		users := service.NewUserService(store, zap.NewNop())
		require.NoError(t, users.Kick(ctx, admin, bare.ID, "inactive"))

		rejected, err := store.Repos().Applications.ListByStatus(ctx, domain.ApplicationRejected)
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, "bare", rejected[0].Username)
		assert.Empty(t, rejected[0].School)
	})

	t.Run("LookupErrorAborts", func(t *testing.T) {
		member := seedUser(t, store, "kept", domain.RoleMember)
		dbErr := errors.New("connection reset")
		users := service.NewUserService(failingProfileStore{Store: store, err: dbErr}, zap.NewNop())

		require.ErrorIs(t, users.Kick(ctx, admin, member.ID, ""), dbErr)
		_, err := store.Repos().Users.GetByID(ctx, member.ID)
		assert.NoError(t, err, "the member survives a failed kick")
	})
}

func TestModerationService(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mod := service.NewModerationService(store, zap.NewNop())
	alice := seedUser(t, store, "alice", domain.RoleMember)
	bob := seedUser(t, store, "bob", domain.RoleMember)
	admin := seedUser(t, store, "root", domain.RoleAdmin)

	t.Run("Block", func(t *testing.T) {
		_, err := mod.Block(ctx, alice, alice.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = mod.Block(ctx, alice, admin.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = mod.Block(ctx, alice, 777)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = mod.Block(ctx, alice, bob.ID)
		require.NoError(t, err)
		_, err = mod.Block(ctx, alice, bob.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)

		list, err := mod.Blocked(ctx, alice)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "bob", list[0].User.Username)

		require.NoError(t, mod.Unblock(ctx, alice, bob.ID))
		assert.ErrorIs(t, mod.Unblock(ctx, alice, bob.ID), domain.ErrNotFound)
	})

	t.Run("Report", func(t *testing.T) {
		_, err := mod.Report(ctx, alice, bob.ID, service.ReportInput{Reason: "rude", Description: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = mod.Report(ctx, alice, bob.ID, service.ReportInput{Reason: domain.ReasonSpam, Description: "  "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = mod.Report(ctx, alice, admin.ID, service.ReportInput{Reason: domain.ReasonSpam, Description: "spam"})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		r, err := mod.Report(ctx, alice, bob.ID, service.ReportInput{Reason: domain.ReasonSpam, Description: "links everywhere"})
		require.NoError(t, err)

		dash, err := mod.Reports(ctx)
		require.NoError(t, err)
		require.Len(t, dash.Unreviewed, 1)
		assert.Empty(t, dash.Reviewed)

		require.NoError(t, mod.MarkReviewed(ctx, r.ID))
		dash, err = mod.Reports(ctx)
		require.NoError(t, err)
		assert.Empty(t, dash.Unreviewed)
		require.Len(t, dash.Reviewed, 1)
		assert.Equal(t, r.ID, dash.Reviewed[0].ID)
	})
}

func TestPostComments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	posts := service.NewPostService(store)
	admin := seedUser(t, store, "root", domain.RoleAdmin)
	alice := seedUser(t, store, "alice", domain.RoleMember)
	bob := seedUser(t, store, "bob", domain.RoleMember)

	_, err := posts.Create(ctx, admin, service.PostInput{Title: " ", Content: "body"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	post, err := posts.Create(ctx, admin, service.PostInput{Title: "Welcome", Content: "First meeting on Friday"})
	require.NoError(t, err)

	c, err := posts.AddComment(ctx, alice, post.ID, "see you there")
	require.NoError(t, err)
	_, err = posts.AddComment(ctx, alice, 999, "lost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = posts.EditComment(ctx, bob, c.ID, "hijacked")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = posts.EditComment(ctx, admin, c.ID, "moderated")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	edited, err := posts.EditComment(ctx, alice, c.ID, "see you Friday")
	require.NoError(t, err)
	assert.Equal(t, "see you Friday", edited.Content)

	assert.ErrorIs(t, posts.DeleteComment(ctx, bob, c.ID), domain.ErrForbidden)
	require.NoError(t, posts.DeleteComment(ctx, admin, c.ID))

	detail, err := posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Comments)

	require.NoError(t, posts.Delete(ctx, post.ID))
	_, err = posts.Get(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompetitionScoringRanks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	comps := service.NewCompetitionService(store, zap.NewNop())
	admin := seedUser(t, store, "root", domain.RoleAdmin)
	contestants := []*domain.User{
		seedUser(t, store, "ann", domain.RoleMember),
		seedUser(t, store, "ben", domain.RoleMember),
		seedUser(t, store, "cal", domain.RoleMember),
	}

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := comps.Create(ctx, admin, service.CompetitionInput{
		Title: "Backwards", Description: "d", StartDate: start, EndDate: start.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	c, err := comps.Create(ctx, admin, service.CompetitionInput{
		Title: "Spring Cup", Description: "Three problems", StartDate: start, EndDate: start.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 100, c.MaxScore)
	assert.Equal(t, domain.CompetitionUpcoming, c.Status)

	p, err := comps.AddProblem(ctx, c.ID, service.ProblemInput{Title: "A", Description: "sum two numbers"})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Points)

	var subs []*domain.Submission
	for _, u := range contestants {
		s, err := comps.Submit(ctx, u, c.ID, "print(42)")
		require.NoError(t, err)
		subs = append(subs, s)
	}
	again, err := comps.Submit(ctx, contestants[0], c.ID, "print(43)")
	require.NoError(t, err)
	assert.Equal(t, subs[0].ID, again.ID)

	_, err = comps.Score(ctx, admin, subs[0].ID, service.ScoreInput{Score: 101})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	for i, score := range []int{90, 70, 90} {
		_, err := comps.Score(ctx, admin, subs[i].ID, service.ScoreInput{Score: score, Feedback: "ok"})
		require.NoError(t, err)
	}

	board, err := comps.Leaderboard(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, []int{1, 1, 3}, []int{board.Entries[0].Rank, board.Entries[1].Rank, board.Entries[2].Rank})
	assert.Equal(t, "ben", board.Entries[2].Username)

	stored, err := store.Repos().Competitions.GetSubmission(ctx, subs[1].ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rank)
	assert.Equal(t, 3, *stored.Rank)

	detail, err := comps.Get(ctx, contestants[0], c.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.MySubmission)
	assert.Equal(t, "print(43)", detail.MySubmission.Solution)
	assert.Len(t, detail.Problems, 1)

	adminView, err := comps.Get(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Nil(t, adminView.MySubmission)
}
