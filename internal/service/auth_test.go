package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/model"
)

type loginCounter struct{ ok, failed int }

func (c *loginCounter) Login(ok bool) {
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

// newTestAuth returns an AuthService over a fake repo holding one member with
// code 11916339.
func newTestAuth(t *testing.T) (*AuthService, *fakeChoirRepo, *model.Choir) {
	t.Helper()
	repo := newFakeChoirRepo()
	member := &model.Choir{Name: "Demo", Email: "demo@choir.test", Level: "senior", Code: "11916339"}
	if err := repo.Create(context.Background(), member); err != nil {
		t.Fatalf("seeding member: %v", err)
	}
	return NewAuthService(repo, nil, discardLogger()), repo, member
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_Success(t *testing.T) {
	svc, _, member := newTestAuth(t)

	got, token, err := svc.Login(context.Background(), "11916339")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.UUID != member.UUID {
		t.Errorf("Login() member = %s, want %s", got.UUID, member.UUID)
	}
	if len(token) != auth.TokenLength {
		t.Errorf("token length = %d, want %d", len(token), auth.TokenLength)
	}
	if got.Token == nil || *got.Token != token {
		t.Error("returned member does not hold the issued token")
	}
}

func TestLogin_InvalidCodes(t *testing.T) {
	svc, _, _ := newTestAuth(t)

	for _, code := range []string{"", "00000000", "1191633", "119163390", " 11916339"} {
		_, _, err := svc.Login(context.Background(), code)
		if !errors.Is(err, apperror.ErrInvalidCredentials) {
			t.Errorf("Login(%q) error = %v, want ErrInvalidCredentials", code, err)
		}
	}
}

func TestLogin_IsCaseSensitive(t *testing.T) {
	repo := newFakeChoirRepo()
	repo.Create(context.Background(), &model.Choir{Name: "x", Email: "x@choir.test", Code: "ABCD1234"})
	svc := NewAuthService(repo, nil, discardLogger())

	if _, _, err := svc.Login(context.Background(), "abcd1234"); !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("lower-case code accepted: err = %v", err)
	}
}

func TestLogin_SecondLoginRevokesFirstToken(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()

	_, t1, err := svc.Login(ctx, "11916339")
	if err != nil {
		t.Fatal(err)
	}
	_, t2, err := svc.Login(ctx, "11916339")
	if err != nil {
		t.Fatal(err)
	}

	if t1 == t2 {
		t.Fatal("two logins returned the same token")
	}
	if _, err := svc.ResolveToken(ctx, t1); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("first token still valid: err = %v", err)
	}
	if _, err := svc.ResolveToken(ctx, t2); err != nil {
		t.Errorf("second token rejected: %v", err)
	}
}

func TestLogin_TokenGeneratorFailure(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	svc.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, _, err := svc.Login(context.Background(), "11916339")
	if err == nil || errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want an internal error", err)
	}
}

func TestLogin_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	svc, repo, _ := newTestAuth(t)
	repo.err = errors.New("disk I/O error")

	_, _, err := svc.Login(context.Background(), "11916339")
	if err == nil || apperror.IsAuthFailure(err) {
		t.Fatalf("Login() error = %v, want a non-auth internal error", err)
	}
}

func TestLogin_RecordsOutcome(t *testing.T) {
	repo := newFakeChoirRepo()
	repo.Create(context.Background(), &model.Choir{Name: "x", Email: "x@choir.test", Code: "11916339"})
	rec := &loginCounter{}
	svc := NewAuthService(repo, rec, discardLogger())

	svc.Login(context.Background(), "11916339")
	svc.Login(context.Background(), "wrong")
	svc.Login(context.Background(), "")

	if rec.ok != 1 || rec.failed != 2 {
		t.Errorf("recorded ok=%d failed=%d, want 1/2", rec.ok, rec.failed)
	}
}

// =========================================================================
// VALIDATE / LOGOUT
// =========================================================================

func TestValidate(t *testing.T) {
	svc, _, member := newTestAuth(t)
	ctx := context.Background()
	_, token, _ := svc.Login(ctx, "11916339")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", token, nil},
		{"empty", "", apperror.ErrUnauthenticated},
		{"unknown", "not-a-real-token", apperror.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Validate(ctx, tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got.UUID != member.UUID {
				t.Errorf("Validate() member = %s, want %s", got.UUID, member.UUID)
			}
		})
	}
}

func TestLogout_IsIdempotent(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()
	_, token, _ := svc.Login(ctx, "11916339")

	for i := 0; i < 2; i++ {
		if err := svc.Logout(ctx, token); err != nil {
			t.Fatalf("Logout() #%d error = %v", i+1, err)
		}
	}
	if _, err := svc.ResolveToken(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("token valid after logout: err = %v", err)
	}
}

func TestLogout_UnknownAndEmptyTokens(t *testing.T) {
	svc, _, _ := newTestAuth(t)

	for _, tok := range []string{"", "never-issued"} {
		if err := svc.Logout(context.Background(), tok); err != nil {
			t.Errorf("Logout(%q) error = %v, want nil", tok, err)
		}
	}
}

func TestLogout_DoesNotAffectOtherMembers(t *testing.T) {
	svc, repo, _ := newTestAuth(t)
	repo.Create(context.Background(), &model.Choir{Name: "b", Email: "b@choir.test", Code: "BBBB2222"})
	ctx := context.Background()

	_, ta, _ := svc.Login(ctx, "11916339")
	_, tb, _ := svc.Login(ctx, "BBBB2222")
	svc.Logout(ctx, ta)

	if _, err := svc.ResolveToken(ctx, tb); err != nil {
		t.Errorf("other member logged out: %v", err)
	}
}

// TestSessionLifecycle walks the whole flow for the seeded demo member.
func TestSessionLifecycle(t *testing.T) {
	svc, _, member := newTestAuth(t)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "11916339")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if len(token) != 60 {
		t.Fatalf("token length = %d, want 60", len(token))
	}

	got, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if p := got.Profile(); p.UUID != member.UUID || p.Code != "11916339" {
		t.Errorf("profile = %+v", p)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.Validate(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() after logout error = %v, want ErrUnauthorized", err)
	}
}

func TestResolveToken_StoreFailure(t *testing.T) {
	svc, repo, _ := newTestAuth(t)
	repo.err = fmt.Errorf("connection reset")

	_, err := svc.ResolveToken(context.Background(), "x")
	if err == nil || errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ResolveToken() error = %v, want a non-auth error", err)
	}
}
