package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
)

// newTestDB opens a fresh in-memory database with the schema applied.
// t.Helper() makes failures point at the caller's line.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestChoir(t *testing.T, r *ChoirDB, name, code string) *model.Choir {
	t.Helper()
	c := &model.Choir{
		Name:  name,
		Email: name + "@choir.test",
		Level: "senior",
		Code:  code,
	}
	if err := r.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create test choir: %v", err)
	}
	return c
}

// =========================================================================
// CREATE / READ
// =========================================================================

func TestChoirCreate(t *testing.T) {
	r := newTestDB(t).Choirs()

	c := createTestChoir(t, r, "alto", "11916339")

	if c.ID == 0 {
		t.Error("Create() did not set ID")
	}
	if c.UUID == "" {
		t.Error("Create() did not set UUID")
	}
	if c.Role != model.DefaultRole {
		t.Errorf("Role = %q, want default %q", c.Role, model.DefaultRole)
	}
	if c.LoggedIn() {
		t.Error("a new member must start logged out")
	}
}

func TestChoirGetByUUID(t *testing.T) {
	r := newTestDB(t).Choirs()
	voice := "Alto 1"
	c := &model.Choir{Name: "alto", Email: "a@choir.test", Level: "l", Role: "leader", Code: "AAAA1111", VoiceDesignation: &voice}
	if err := r.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := r.GetByUUID(context.Background(), c.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}
	if got.Name != "alto" || got.Role != "leader" || got.Code != "AAAA1111" {
		t.Errorf("GetByUUID() = %+v", got)
	}
	if got.VoiceDesignation == nil || *got.VoiceDesignation != "Alto 1" {
		t.Errorf("VoiceDesignation = %v, want Alto 1", got.VoiceDesignation)
	}
	if got.Token != nil {
		t.Errorf("Token = %v, want nil", *got.Token)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, c.CreatedAt)
	}
}

func TestChoirGetByUUID_NotFound(t *testing.T) {
	r := newTestDB(t).Choirs()

	_, err := r.GetByUUID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByUUID() error = %v, want ErrNotFound", err)
	}
}

func TestChoirCreate_DuplicateEmail(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "AAAA1111")

	dup := &model.Choir{Name: "other", Email: "alto@choir.test", Level: "x", Code: "BBBB2222"}
	err := r.Create(context.Background(), dup)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	if appErr.Field != "email" {
		t.Errorf("Field = %q, want email", appErr.Field)
	}
}

func TestChoirCreate_DuplicateCode(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "AAAA1111")

	dup := &model.Choir{Name: "bass", Email: "bass@choir.test", Level: "x", Code: "AAAA1111"}
	err := r.Create(context.Background(), dup)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "code" {
		t.Fatalf("Create() error = %v, want code conflict", err)
	}
}

// =========================================================================
// LIST / UPDATE / DELETE
// =========================================================================

func TestChoirList_Pagination(t *testing.T) {
	r := newTestDB(t).Choirs()
	for i := 0; i < 12; i++ {
		createTestChoir(t, r, fmt.Sprintf("member%02d", i), fmt.Sprintf("CODE%04d", i))
	}

	page, total, err := r.List(context.Background(), repository.ListOptions{Limit: 10, Offset: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 12 {
		t.Errorf("total = %d, want 12", total)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	// newest first: the last page holds the two oldest
	if page[0].Name != "member01" || page[1].Name != "member00" {
		t.Errorf("page = %s, %s; want member01, member00", page[0].Name, page[1].Name)
	}
}

func TestChoirUpdate(t *testing.T) {
	r := newTestDB(t).Choirs()
	c := createTestChoir(t, r, "alto", "AAAA1111")

	c.Name = "Alto Section"
	c.Level = "junior"
	if err := r.Update(context.Background(), c); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := r.GetByUUID(context.Background(), c.UUID)
	if got.Name != "Alto Section" || got.Level != "junior" {
		t.Errorf("after Update() got %+v", got)
	}
	if got.Code != "AAAA1111" {
		t.Errorf("Update() changed the login code to %q", got.Code)
	}
}

func TestChoirUpdate_NotFound(t *testing.T) {
	r := newTestDB(t).Choirs()

	err := r.Update(context.Background(), &model.Choir{UUID: "ghost", Email: "g@choir.test"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestChoirDelete(t *testing.T) {
	r := newTestDB(t).Choirs()
	c := createTestChoir(t, r, "alto", "AAAA1111")

	if err := r.Delete(context.Background(), c.UUID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := r.Delete(context.Background(), c.UUID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	n, _ := r.Count(context.Background())
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

// =========================================================================
// TOKENS
// =========================================================================

func TestRotateToken(t *testing.T) {
	r := newTestDB(t).Choirs()
	c := createTestChoir(t, r, "alto", "11916339")

	got, err := r.RotateToken(context.Background(), "11916339", "tok-1")
	if err != nil {
		t.Fatalf("RotateToken() error = %v", err)
	}
	if got.UUID != c.UUID || got.Token == nil || *got.Token != "tok-1" {
		t.Fatalf("RotateToken() = %+v", got)
	}

	holder, err := r.GetByToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if holder.UUID != c.UUID {
		t.Errorf("GetByToken() resolved %s, want %s", holder.UUID, c.UUID)
	}
}

func TestRotateToken_ReplacesPreviousToken(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "11916339")
	ctx := context.Background()

	if _, err := r.RotateToken(ctx, "11916339", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RotateToken(ctx, "11916339", "second"); err != nil {
		t.Fatal(err)
	}

	if _, err := r.GetByToken(ctx, "first"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("old token still resolves: err = %v", err)
	}
	if _, err := r.GetByToken(ctx, "second"); err != nil {
		t.Errorf("new token does not resolve: %v", err)
	}
}

func TestRotateToken_CodeIsCaseSensitive(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "ABCD1234")

	for _, code := range []string{"abcd1234", "ABCD123", "ABCD12345", " ABCD1234", ""} {
		if _, err := r.RotateToken(context.Background(), code, "tok"); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("RotateToken(%q) error = %v, want ErrNotFound", code, err)
		}
	}
}

func TestClearToken(t *testing.T) {
	r := newTestDB(t).Choirs()
	c := createTestChoir(t, r, "alto", "11916339")
	ctx := context.Background()
	if _, err := r.RotateToken(ctx, "11916339", "tok"); err != nil {
		t.Fatal(err)
	}

	cleared, err := r.ClearToken(ctx, "tok")
	if err != nil || !cleared {
		t.Fatalf("ClearToken() = %v, %v; want true, nil", cleared, err)
	}

	again, err := r.ClearToken(ctx, "tok")
	if err != nil || again {
		t.Errorf("second ClearToken() = %v, %v; want false, nil", again, err)
	}

	got, _ := r.GetByUUID(ctx, c.UUID)
	if got.LoggedIn() {
		t.Error("member still logged in after ClearToken()")
	}
}

func TestClearToken_LeavesOtherMembersAlone(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "AAAA1111")
	createTestChoir(t, r, "bass", "BBBB2222")
	ctx := context.Background()
	r.RotateToken(ctx, "AAAA1111", "tok-a")
	r.RotateToken(ctx, "BBBB2222", "tok-b")

	if _, err := r.ClearToken(ctx, "tok-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetByToken(ctx, "tok-b"); err != nil {
		t.Errorf("bass was logged out by alto's logout: %v", err)
	}
}

func TestGetByToken_EmptyNeverMatches(t *testing.T) {
	r := newTestDB(t).Choirs()
	createTestChoir(t, r, "alto", "AAAA1111")

	if _, err := r.GetByToken(context.Background(), ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken(\"\") error = %v, want ErrNotFound", err)
	}
}
