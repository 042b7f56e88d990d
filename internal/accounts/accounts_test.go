package accounts_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonto42/nano-midea/identity/internal/accounts"
	"github.com/anonto42/nano-midea/identity/internal/credentials"
	"github.com/anonto42/nano-midea/identity/internal/feed"
	"github.com/anonto42/nano-midea/identity/internal/graph"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/anonto42/nano-midea/identity/internal/testdb"
	"github.com/anonto42/nano-midea/identity/internal/tokens"
)

// recordingMailer keeps the last token sent per kind.
type recordingMailer struct {
	mu         sync.Mutex
	activation map[string]string
	reset      map[string]string
	err        error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{activation: map[string]string{}, reset: map[string]string{}}
}

func (m *recordingMailer) SendActivationEmail(_ context.Context, user *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.activation[user.Email] = token
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, user *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reset[user.Email] = token
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type harness struct {
	svc    *accounts.Service
	repos  *repositories.Repositories
	graph  *graph.Service
	feed   *feed.Builder
	mail   *recordingMailer
	clock  *clock
	hasher *credentials.Hasher
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	repos := repositories.New(testdb.New(t))
	hasher := credentials.NewHasher(bcrypt.MinCost)
	c := &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	tok, err := tokens.NewService(repos.Users, hasher, tokens.WithClock(c.now))
	require.NoError(t, err)
	g := graph.NewService(repos.Users, repos.Follows, log)
	mail := newRecordingMailer()

	return &harness{
		svc:    accounts.NewService(repos, hasher, tok, g, mail, log),
		repos:  repos,
		graph:  g,
		feed:   feed.NewBuilder(repos.Posts, 10, log),
		mail:   mail,
		clock:  c,
		hasher: hasher,
		logs:   logs,
	}
}

func registration(name string) models.RegisterRequest {
	return models.RegisterRequest{
		Name:                 name,
		Email:                name + "@Example.com",
		Password:             "foobar",
		PasswordConfirmation: "foobar",
	}
}

// racingUsers runs hook once, just before the first profile write or right
// after the first lookup by id, whichever comes first.
type racingUsers struct {
	repositories.UserRepository
	once sync.Once
	hook func()
}

func (r *racingUsers) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	u, err := r.UserRepository.GetUserByID(ctx, id)
	r.once.Do(r.hook)
	return u, err
}

func (r *racingUsers) UpdateColumns(ctx context.Context, id uint, columns map[string]any) error {
	if _, ok := columns["name"]; ok {
		r.once.Do(r.hook)
	}
	return r.UserRepository.UpdateColumns(ctx, id, columns)
}

func (r *racingUsers) UpdateUser(ctx context.Context, user *models.User) error {
	r.once.Do(r.hook)
	return r.UserRepository.UpdateUser(ctx, user)
}

// activeUser registers and activates an account.
func (h *harness) activeUser(t *testing.T, name string) *models.User {
	t.Helper()
	ctx := context.Background()
	res, err := h.svc.Register(ctx, registration(name))
	require.NoError(t, err)
	user, err := h.svc.ActivateAccount(ctx, res.User.Email, res.ActivationToken)
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.svc.Register(ctx, registration("Alice"))
	require.NoError(t, err)

	stored, err := h.repos.Users.GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.False(t, stored.Activated)
	assert.NotEqual(t, "foobar", stored.PasswordDigest)
	assert.True(t, h.hasher.Verify("foobar", stored.PasswordDigest))

	require.NotNil(t, stored.ActivationDigest)
	assert.True(t, h.hasher.Verify(res.ActivationToken, *stored.ActivationDigest))
	assert.Equal(t, res.ActivationToken, h.mail.activation["alice@example.com"])
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
	}{
		{"blank name", func(r *models.RegisterRequest) { r.Name = "" }},
		{"name too long", func(r *models.RegisterRequest) { r.Name = strings.Repeat("a", 51) }},
		{"malformed email", func(r *models.RegisterRequest) { r.Email = "user@example,com" }},
		{"email too long", func(r *models.RegisterRequest) { r.Email = strings.Repeat("a", 244) + "@example.com" }},
		{"password too short", func(r *models.RegisterRequest) { r.Password, r.PasswordConfirmation = "five5", "five5" }},
		{"confirmation mismatch", func(r *models.RegisterRequest) { r.PasswordConfirmation = "barfoo" }},
		{"password over 72 bytes", func(r *models.RegisterRequest) {
			r.Password = strings.Repeat("é", 40)
			r.PasswordConfirmation = r.Password
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registration("bob")
			tt.mutate(&req)

			_, err := h.svc.Register(context.Background(), req)
			var verrs validator.ValidationErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

func TestRegister_EmailTakenIgnoresCase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.Register(ctx, registration("alice"))
	require.NoError(t, err)

	again := registration("alice")
	again.Email = "ALICE@example.COM"
	_, err = h.svc.Register(ctx, again)
	assert.ErrorIs(t, err, accounts.ErrEmailTaken)
}

func TestRegister_MailFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.mail.err = assert.AnError

	res, err := h.svc.Register(context.Background(), registration("alice"))
	require.NoError(t, err)
	assert.NotZero(t, res.User.ID)

	entries := h.logs.FilterMessage("activation email not sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.Register(ctx, registration("alice"))
	require.NoError(t, err)

	user, err := h.svc.Authenticate(ctx, "ALICE@example.com", "foobar")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = h.svc.Authenticate(ctx, "alice@example.com", "wrong!")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	_, err = h.svc.Authenticate(ctx, "nobody@example.com", "foobar")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestRememberAndForget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.activeUser(t, "alice")

	raw, err := h.svc.Remember(ctx, user)
	require.NoError(t, err)

	restored, err := h.svc.UserFromRemember(ctx, user.ID, raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, restored.ID)

	_, err = h.svc.UserFromRemember(ctx, user.ID, "not-the-token")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	_, err = h.svc.UserFromRemember(ctx, 999, raw)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	require.NoError(t, h.svc.Forget(ctx, user))
	_, err = h.svc.UserFromRemember(ctx, user.ID, raw)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestActivateAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, err := h.svc.Register(ctx, registration("alice"))
	require.NoError(t, err)

	_, err = h.svc.ActivateAccount(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, accounts.ErrInvalidActivation)

	_, err = h.svc.ActivateAccount(ctx, "nobody@example.com", res.ActivationToken)
	assert.ErrorIs(t, err, accounts.ErrInvalidActivation)

	user, err := h.svc.ActivateAccount(ctx, "Alice@Example.com", res.ActivationToken)
	require.NoError(t, err)
	assert.True(t, user.Activated)
	assert.NotNil(t, user.ActivatedAt)

	_, err = h.svc.ActivateAccount(ctx, "alice@example.com", res.ActivationToken)
	assert.ErrorIs(t, err, accounts.ErrInvalidActivation, "a used link must not work again")
}

func TestResendActivation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, err := h.svc.Register(ctx, registration("alice"))
	require.NoError(t, err)

	fresh, err := h.svc.ResendActivation(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, fresh, h.mail.activation["alice@example.com"])

	_, err = h.svc.ActivateAccount(ctx, "alice@example.com", res.ActivationToken)
	assert.ErrorIs(t, err, accounts.ErrInvalidActivation)

	_, err = h.svc.ActivateAccount(ctx, "alice@example.com", fresh)
	require.NoError(t, err)

	_, err = h.svc.ResendActivation(ctx, "alice@example.com")
	assert.ErrorIs(t, err, accounts.ErrInvalidActivation)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	newPassword := models.ResetPasswordRequest{Password: "secret99", PasswordConfirmation: "secret99"}

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.RequestPasswordReset(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("full flow", func(t *testing.T) {
		h := newHarness(t)
		h.activeUser(t, "alice")

		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, raw, h.mail.reset["alice@example.com"])

		h.clock.t = h.clock.t.Add(90 * time.Minute)
		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw, newPassword)
		require.NoError(t, err)

		_, err = h.svc.Authenticate(ctx, "alice@example.com", "foobar")
		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
		_, err = h.svc.Authenticate(ctx, "alice@example.com", "secret99")
		assert.NoError(t, err)

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw, newPassword)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken, "a used link must not work again")
	})

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t)
		h.activeUser(t, "alice")

		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		h.clock.t = h.clock.t.Add(tokens.DefaultResetTTL + time.Second)
		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw, newPassword)
		assert.ErrorIs(t, err, tokens.ErrTokenExpired)
	})

	t.Run("wrong token", func(t *testing.T) {
		h := newHarness(t)
		h.activeUser(t, "alice")
		_, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", "wrong", newPassword)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	})

	t.Run("unactivated account", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Register(ctx, registration("alice"))
		require.NoError(t, err)
		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw, newPassword)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	})

	t.Run("new password over 72 bytes", func(t *testing.T) {
		h := newHarness(t)
		h.activeUser(t, "alice")
		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		long := strings.Repeat("é", 40)
		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw,
			models.ResetPasswordRequest{Password: long, PasswordConfirmation: long})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})

	t.Run("invalid new password keeps token", func(t *testing.T) {
		h := newHarness(t)
		h.activeUser(t, "alice")
		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw,
			models.ResetPasswordRequest{Password: "", PasswordConfirmation: ""})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw, newPassword)
		assert.NoError(t, err)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice")
	h.activeUser(t, "bob")

	t.Run("blank password keeps the old one", func(t *testing.T) {
		user, err := h.svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{
			Name:  "Alice Liddell",
			Email: "Liddell@Example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "liddell@example.com", user.Email)

		_, err = h.svc.Authenticate(ctx, "liddell@example.com", "foobar")
		assert.NoError(t, err)
	})

	t.Run("new password", func(t *testing.T) {
		_, err := h.svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{
			Name:                 "Alice",
			Email:                "liddell@example.com",
			Password:             "newpass",
			PasswordConfirmation: "newpass",
		})
		require.NoError(t, err)

		_, err = h.svc.Authenticate(ctx, "liddell@example.com", "newpass")
		assert.NoError(t, err)
	})

	t.Run("email of another account", func(t *testing.T) {
		_, err := h.svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{
			Name:  "Alice",
			Email: "BOB@example.com",
		})
		assert.ErrorIs(t, err, accounts.ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := h.svc.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{
			Name:                 "Alice",
			Email:                "liddell@example.com",
			Password:             "abc",
			PasswordConfirmation: "abc",
		})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})
}

func TestUpdateProfile_KeepsConcurrentTokenChanges(t *testing.T) {
	ctx := context.Background()
	profile := models.UpdateProfileRequest{Name: "Alice L", Email: "alice@example.com"}

	t.Run("forget", func(t *testing.T) {
		h := newHarness(t)
		alice := h.activeUser(t, "alice")
		raw, err := h.svc.Remember(ctx, alice)
		require.NoError(t, err)

		users := h.repos.Users
		h.repos.Users = &racingUsers{UserRepository: users, hook: func() {
			require.NoError(t, h.svc.Forget(ctx, alice))
		}}
		_, err = h.svc.UpdateProfile(ctx, alice.ID, profile)
		h.repos.Users = users
		require.NoError(t, err)

		_, err = h.svc.UserFromRemember(ctx, alice.ID, raw)
		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	})

	t.Run("consumed reset", func(t *testing.T) {
		h := newHarness(t)
		alice := h.activeUser(t, "alice")
		raw, err := h.svc.RequestPasswordReset(ctx, "alice@example.com")
		require.NoError(t, err)

		users := h.repos.Users
		h.repos.Users = &racingUsers{UserRepository: users, hook: func() {
			_, err := h.svc.ResetPassword(ctx, "alice@example.com", raw,
				models.ResetPasswordRequest{Password: "secret99", PasswordConfirmation: "secret99"})
			require.NoError(t, err)
		}}
		_, err = h.svc.UpdateProfile(ctx, alice.ID, profile)
		h.repos.Users = users
		require.NoError(t, err)

		stored, err := h.repos.Users.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ResetDigest)
		assert.True(t, h.hasher.Verify("secret99", stored.PasswordDigest))

		_, err = h.svc.ResetPassword(ctx, "alice@example.com", raw,
			models.ResetPasswordRequest{Password: "another1", PasswordConfirmation: "another1"})
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.activeUser(t, "alice")
	b := h.activeUser(t, "bob")
	c := h.activeUser(t, "carol")

	require.NoError(t, h.graph.Follow(ctx, a.ID, b.ID))
	require.NoError(t, h.graph.Follow(ctx, b.ID, c.ID))
	post, err := h.feed.Publish(ctx, b.ID, "bob was here")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteUser(ctx, b.ID))

	_, err = h.repos.Users.GetUserByID(ctx, b.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = h.repos.Posts.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	following, err := h.graph.Following(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err := h.graph.Followers(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	for p, err := range h.feed.Feed(ctx, a.ID) {
		require.NoError(t, err)
		assert.NotEqual(t, post.ID, p.ID)
	}

	assert.ErrorIs(t, h.svc.DeleteUser(ctx, b.ID), repositories.ErrNotFound)
}
