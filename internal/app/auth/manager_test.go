package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/walla-walla-travel/tourops/internal/config"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

func testConfig(users string) config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenTTLSec: 3600,
		Users:       users,
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	mgr, err := NewManager(testConfig("kim:hunter2:admin;pat:letmein:staff"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !mgr.Enabled() {
		t.Fatal("manager with users must report enabled")
	}

	token, ident, err := mgr.Login("kim", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ident.Username != "kim" || ident.Role != RoleAdmin {
		t.Fatalf("identity = %+v, want kim/admin", ident)
	}
	if !ident.Admin() {
		t.Fatal("admin identity must report Admin")
	}

	parsed, err := mgr.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if parsed != ident {
		t.Fatalf("round trip identity = %+v, want %+v", parsed, ident)
	}

	_, staff, err := mgr.Login("pat", "letmein")
	if err != nil {
		t.Fatalf("staff login: %v", err)
	}
	if staff.Admin() {
		t.Fatal("staff identity must not report Admin")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mgr, err := NewManager(testConfig("kim:hunter2:admin"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for _, tc := range []struct{ user, pass string }{
		{"kim", "wrong"},
		{"nobody", "hunter2"},
		{"", ""},
	} {
		_, _, err := mgr.Login(tc.user, tc.pass)
		svcErr := apperrors.GetServiceError(err)
		if svcErr == nil || svcErr.Code != apperrors.CodeUnauthorized {
			t.Fatalf("login %q/%q error = %v, want unauthorized", tc.user, tc.pass, err)
		}
	}
}

func TestBcryptPasswords(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}

	mgr, err := NewManager(testConfig("kim:" + string(hash) + ":staff"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, _, err := mgr.Login("kim", "s3cret"); err != nil {
		t.Fatalf("Login with bcrypt hash: %v", err)
	}
	if _, _, err := mgr.Login("kim", "wrong"); err == nil {
		t.Fatal("expected error for wrong password against bcrypt hash")
	}
}

func TestStaticTokens(t *testing.T) {
	cfg := testConfig("")
	cfg.APITokens = "tok-alpha, tok-beta"
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ident, err := mgr.Authenticate("tok-beta")
	if err != nil {
		t.Fatalf("Authenticate static: %v", err)
	}
	if ident.Role != RoleStaff {
		t.Fatalf("static token role = %q, want staff", ident.Role)
	}

	if _, err := mgr.Authenticate("tok-gamma"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	mgr, err := NewManager(testConfig("kim:hunter2:admin"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	other, err := NewManager(config.AuthConfig{JWTSecret: "different-secret", Users: "kim:hunter2:admin"})
	if err != nil {
		t.Fatalf("NewManager other: %v", err)
	}
	foreign, _, err := other.Login("kim", "hunter2")
	if err != nil {
		t.Fatalf("Login other: %v", err)
	}
	if _, err := mgr.VerifyJWT(foreign); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
	if _, err := mgr.VerifyJWT("not.a.jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}

	mgr.ttl = -time.Hour
	expired, _, err := mgr.Login("kim", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := mgr.VerifyJWT(expired); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{Users: "kim:hunter2:admin"}); err == nil {
		t.Fatal("expected error for users without a JWT secret")
	}
	if _, err := NewManager(testConfig("kim:hunter2:owner")); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := NewManager(testConfig("kim:a:staff;kim:b:staff")); err == nil {
		t.Fatal("expected error for duplicate username")
	}
	if _, err := NewManager(testConfig("kim")); err == nil {
		t.Fatal("expected error for malformed user entry")
	}
}
