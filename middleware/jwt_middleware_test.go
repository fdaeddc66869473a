// middleware/jwt_middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
)

func TestGenerateAndVerifySessionToken(t *testing.T) {
	token, err := GenerateJWT("64f000000000000000000001", "alice@example.com", "+919876543210", true)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := VerifySessionToken(token)
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if claims.UserID != "64f000000000000000000001" {
		t.Errorf("UserID = %q", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Phone != "+919876543210" {
		t.Errorf("Phone = %q", claims.Phone)
	}
	if !claims.IsVerified {
		t.Error("IsVerified not carried in claims")
	}

	// Expiry must sit one session length out.
	want := time.Now().Add(sessionValidity).Unix()
	if diff := claims.ExpiresAt - want; diff < -5 || diff > 5 {
		t.Errorf("ExpiresAt off by %d seconds", diff)
	}
}

func TestUnverifiedFlagSurvivesRoundTrip(t *testing.T) {
	token, err := GenerateJWT("id", "bob@example.com", "+14155552671", false)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := VerifySessionToken(token)
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if claims.IsVerified {
		t.Error("unverified token round-tripped as verified")
	}
}

func TestVerifySessionTokenRejectsTampering(t *testing.T) {
	token, err := GenerateJWT("id", "alice@example.com", "+919876543210", false)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := VerifySessionToken(tampered); err == nil {
		t.Error("tampered token accepted")
	}
}

func TestVerifySessionTokenRejectsExpired(t *testing.T) {
	claims := &JwtCustomClaims{
		UserID: "id",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
			IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(GetJWTSecret())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifySessionToken(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestJWTMiddleware(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	handler := JWTMiddleware()(next)

	run := func(authHeader string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))
		return rec.Code
	}

	if code := run(""); code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d", code)
	}
	if code := run("Token abc"); code != http.StatusUnauthorized {
		t.Errorf("bad scheme: got %d", code)
	}
	if code := run("Bearer not-a-token"); code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d", code)
	}

	token, err := GenerateJWT("id", "alice@example.com", "+919876543210", true)
	if err != nil {
		t.Fatal(err)
	}
	if code := run("Bearer " + token); code != http.StatusOK {
		t.Errorf("valid token: got %d", code)
	}
}
