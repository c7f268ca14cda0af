package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/pkg/errors"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Errorf("Expected password to match its hash")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Errorf("Expected wrong password to be rejected")
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	token, err := iss.CreateToken(42, "jdoe", session.RoleWorker)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := iss.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID() != 42 || claims.Username != "jdoe" || claims.Role != session.RoleWorker {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	token, _ := iss.CreateToken(1, "admin", session.RoleAdmin)

	if _, err := NewIssuer("other-secret", time.Hour).VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected token signed with another secret to be rejected, got %v", err)
	}

	expired := NewIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.CreateToken(1, "admin", session.RoleAdmin)
	if _, err := iss.VerifyToken(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}

	odd, _ := iss.CreateToken(1, "x", session.Role("root"))
	if _, err := iss.VerifyToken(odd); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected unknown role to be rejected, got %v", err)
	}
}

func TestEnsureAdminExists(t *testing.T) {
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := EnsureAdminExists(db, "root", "pw"); err != nil {
		t.Fatalf("EnsureAdminExists: %v", err)
	}
	if err := EnsureAdminExists(db, "other", "pw"); err != nil {
		t.Fatalf("EnsureAdminExists again: %v", err)
	}

	var admins []database.AdminUser
	db.Find(&admins)
	if len(admins) != 1 || admins[0].Username != "root" {
		t.Fatalf("Expected exactly the first admin, got %+v", admins)
	}
	if !CheckPasswordHash("pw", admins[0].PasswordHash) {
		t.Errorf("Expected stored hash to match")
	}
}
