package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository that applies
// UserUpsert the way the SQL store does: Insert fields on a new open id,
// Update fields on an existing one.
type fakeUserRepo struct {
	users   map[string]*model.User
	nextID  int64
	upserts []model.UserUpsert

	upsertErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Upsert(_ context.Context, upsert model.UserUpsert) error {
	f.upserts = append(f.upserts, upsert)
	if f.upsertErr != nil {
		return f.upsertErr
	}

	u, ok := f.users[upsert.OpenID]
	fields := upsert.Update
	if !ok {
		f.nextID++
		u = &model.User{ID: f.nextID, OpenID: upsert.OpenID, Role: model.RoleUser}
		f.users[upsert.OpenID] = u
		fields = upsert.Insert
	}
	if fields.Name != nil {
		u.Name = fields.Name
	}
	if fields.Email != nil {
		u.Email = fields.Email
	}
	if fields.LoginMethod != nil {
		u.LoginMethod = fields.LoginMethod
	}
	if fields.Role != nil {
		u.Role = *fields.Role
	}
	if fields.LastSignedIn != nil {
		u.LastSignedIn = *fields.LastSignedIn
	}
	return nil
}

func (f *fakeUserRepo) GetByOpenID(_ context.Context, openID string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[openID]
	if !ok {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
	}
	found := *u
	return &found, nil
}

// fakeRevoker is an in-memory auth.Revoker.
type fakeRevoker struct {
	revoked map[string]time.Time
	err     error
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]time.Time)}
}

func (f *fakeRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[tokenID] = expiresAt
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[tokenID]
	return ok, nil
}

const testOwner = "github:1"

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// newTestAuthService returns an AuthService wired with fakes and a clock
// pinned to now.
func newTestAuthService(t *testing.T, repo *fakeUserRepo, revoker auth.Revoker, now time.Time) *AuthService {
	t.Helper()
	svc := NewAuthService(repo, newTestTokens(t), revoker, testOwner, newTestLogger())
	svc.now = func() time.Time { return now }
	return svc
}

var (
	t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(72 * time.Hour)
)

// =========================================================================
// UpsertUser TESTS
// =========================================================================

func TestUpsertUser_MissingOpenID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{}); err == nil {
		t.Fatal("UpsertUser() should fail without an openId")
	}
	if len(repo.upserts) != 0 {
		t.Error("store was called without an openId")
	}
}

func TestUpsertUser_TwiceKeepsIDAndRefreshesLastSignedIn(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: "abc"}); err != nil {
		t.Fatalf("first UpsertUser() error = %v", err)
	}
	first := *repo.users["abc"]

	svc.now = func() time.Time { return t1 }
	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: "abc"}); err != nil {
		t.Fatalf("second UpsertUser() error = %v", err)
	}
	second := repo.users["abc"]

	if second.ID != first.ID {
		t.Errorf("ID changed from %d to %d", first.ID, second.ID)
	}
	if !first.LastSignedIn.Equal(t0) {
		t.Errorf("first LastSignedIn = %v, want %v", first.LastSignedIn, t0)
	}
	if !second.LastSignedIn.Equal(t1) {
		t.Errorf("second LastSignedIn = %v, want %v", second.LastSignedIn, t1)
	}
	if second.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", second.Role, model.RoleUser)
	}
}

func TestUpsertUser_OwnerBecomesAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: testOwner}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	if repo.users[testOwner].Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", repo.users[testOwner].Role, model.RoleAdmin)
	}
	upsert := repo.upserts[0]
	if upsert.Update.Role == nil || *upsert.Update.Role != model.RoleAdmin {
		t.Error("owner role should also be in the update set")
	}
}

func TestUpsertUser_SuppliedRoleWins(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)
	role := model.RoleUser

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: testOwner, Role: &role}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	if repo.users[testOwner].Role != model.RoleUser {
		t.Errorf("Role = %q, want supplied %q", repo.users[testOwner].Role, model.RoleUser)
	}
}

func TestUpsertUser_SuppliedFieldsInBothSets(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)
	name := "Octo"

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: "abc", Name: &name}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	upsert := repo.upserts[0]
	if upsert.Insert.Name == nil || upsert.Update.Name == nil {
		t.Fatal("name should be in both insert values and update set")
	}
	if upsert.Update.LastSignedIn != nil {
		t.Error("a non-empty update set should not get an implicit lastSignedIn")
	}
	if upsert.Insert.LastSignedIn == nil || !upsert.Insert.LastSignedIn.Equal(t0) {
		t.Errorf("insert lastSignedIn = %v, want %v", upsert.Insert.LastSignedIn, t0)
	}
}

func TestUpsertUser_UnavailableIsSwallowed(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = apperror.Unavailable("database")
	svc := newTestAuthService(t, repo, nil, t0)

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: "abc"}); err != nil {
		t.Errorf("UpsertUser() error = %v, want nil when the database is unavailable", err)
	}
}

func TestUpsertUser_StoreErrorPropagates(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = errors.New("constraint violated")
	svc := newTestAuthService(t, repo, nil, t0)

	if err := svc.UpsertUser(context.Background(), model.UserIdentity{OpenID: "abc"}); err == nil {
		t.Fatal("UpsertUser() should return store errors")
	}
}

// =========================================================================
// SignIn / Authenticate TESTS
// =========================================================================

func TestSignIn_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)

	result, err := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat", Email: "octo@example.com"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if result.User == nil {
		t.Fatal("SignIn() returned nil User")
	}
	if result.User.OpenID != "github:42" {
		t.Errorf("OpenID = %q, want %q", result.User.OpenID, "github:42")
	}
	if result.User.LoginMethod == nil || *result.User.LoginMethod != LoginMethodGitHub {
		t.Errorf("LoginMethod = %v, want %q", result.User.LoginMethod, LoginMethodGitHub)
	}
	if result.User.Name == nil || *result.User.Name != "octocat" {
		t.Errorf("Name = %v, want login fallback", result.User.Name)
	}
	if result.Token == "" {
		t.Fatal("SignIn() returned empty Token")
	}
}

func TestSignIn_OwnerIsAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)

	result, err := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 1, Login: "owner"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if result.User.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", result.User.Role, model.RoleAdmin)
	}
}

func TestSignIn_WithoutDatabaseStillIssuesSession(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = apperror.Unavailable("database")
	svc := newTestAuthService(t, repo, nil, t0)

	result, err := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 5, Login: "nodb"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if result.User != nil {
		t.Errorf("User = %+v, want nil without a database", result.User)
	}
	if result.Token == "" {
		t.Error("SignIn() should still issue a token")
	}
}

func TestSignIn_NilUserAndNoTokens(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, t0)
	if _, err := svc.SignIn(context.Background(), nil); err == nil {
		t.Error("SignIn(nil) should fail")
	}

	noSessions := NewAuthService(repo, nil, nil, "", newTestLogger())
	if _, err := noSessions.SignIn(context.Background(), &auth.GitHubUser{ID: 1}); !errors.Is(err, ErrSessionsDisabled) {
		t.Errorf("SignIn() error = %v, want ErrSessionsDisabled", err)
	}
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, newFakeRevoker(), time.Now())

	result, err := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 7, Login: "seven"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	user, err := svc.Authenticate(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.OpenID != "github:7" {
		t.Errorf("OpenID = %q, want %q", user.OpenID, "github:7")
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil, time.Now())

	if _, err := svc.Authenticate(context.Background(), "this.is.garbage"); err == nil {
		t.Error("Authenticate() should reject a garbage token")
	}

	// valid token, but the account was never stored
	token, _, _ := svc.tokens.Issue("github:404")
	if _, err := svc.Authenticate(context.Background(), token); err == nil {
		t.Error("Authenticate() should reject a token for an unknown account")
	}
}

func TestAuthenticate_RevocationCheckFailureRejects(t *testing.T) {
	repo := newFakeUserRepo()
	revoker := newFakeRevoker()
	svc := newTestAuthService(t, repo, revoker, time.Now())

	result, _ := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 8, Login: "eight"})
	revoker.err = errors.New("redis timeout")

	if _, err := svc.Authenticate(context.Background(), result.Token); err == nil {
		t.Error("Authenticate() should fail when revocation cannot be checked")
	}
}

// =========================================================================
// Logout TESTS
// =========================================================================

func TestLogout_RevokesSession(t *testing.T) {
	repo := newFakeUserRepo()
	revoker := newFakeRevoker()
	svc := newTestAuthService(t, repo, revoker, time.Now())

	result, _ := svc.SignIn(context.Background(), &auth.GitHubUser{ID: 9, Login: "nine"})

	svc.Logout(context.Background(), result.Token)

	if _, ok := revoker.revoked[result.Session.TokenID]; !ok {
		t.Fatal("Logout() did not revoke the token id")
	}
	if _, err := svc.Authenticate(context.Background(), result.Token); err == nil {
		t.Error("Authenticate() accepted a logged out session")
	}
}

func TestLogout_NothingToRevoke(t *testing.T) {
	repo := newFakeUserRepo()
	revoker := newFakeRevoker()
	svc := newTestAuthService(t, repo, revoker, time.Now())

	svc.Logout(context.Background(), "")
	svc.Logout(context.Background(), "garbage")

	if len(revoker.revoked) != 0 {
		t.Errorf("revoked %d tokens, want 0", len(revoker.revoked))
	}

	// no revoker configured: must not panic
	plain := newTestAuthService(t, repo, nil, time.Now())
	plain.Logout(context.Background(), "garbage")
}
