// utils/password_test.go
package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Tr0ub4dour&3x!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword("Tr0ub4dour&3x!", hash); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := CheckPassword("wrong-password", hash); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestStructuralFailureEnumeratesMissingClasses(t *testing.T) {
	msg := structuralFailure("abc")
	for _, want := range []string{"at least 8 characters", "an uppercase letter", "a number", "a special character"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "a lowercase letter") {
		t.Errorf("message %q flags lowercase which is present", msg)
	}

	if got := structuralFailure("Str0ng&Pass"); got != "" {
		t.Errorf("compliant password flagged: %q", got)
	}
}

func TestEvaluatePasswordWeak(t *testing.T) {
	err := EvaluatePassword("password", nil)
	if err == nil {
		t.Fatal("common password accepted")
	}
	if !strings.Contains(err.Error(), "too weak") {
		t.Errorf("unexpected message: %v", err)
	}
}

func breachServer(t *testing.T, password string, count int) *httptest.Server {
	t.Helper()
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	suffix := digest[5:]
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pad with unrelated suffixes the way the real range API does.
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n")
		if count > 0 {
			fmt.Fprintf(w, "%s:%d\r\n", suffix, count)
		}
		fmt.Fprintf(w, "011053FD0102E94D6AE2F8B83D76FAF94F6:5\r\n")
	}))
}

func TestBreachLookupHit(t *testing.T) {
	const password = "xK9#mQv2Lp5!wz"
	srv := breachServer(t, password, 42)
	defer srv.Close()

	b := &BreachChecker{BaseURL: srv.URL, Client: srv.Client()}
	if got := b.Lookup(password); got != 42 {
		t.Errorf("Lookup = %d, want 42", got)
	}

	err := EvaluatePassword(password, b)
	if err == nil {
		t.Fatal("breached password accepted")
	}
	if !strings.Contains(err.Error(), "42 known data breaches") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestBreachLookupMiss(t *testing.T) {
	const password = "xK9#mQv2Lp5!wz"
	srv := breachServer(t, password, 0)
	defer srv.Close()

	b := &BreachChecker{BaseURL: srv.URL, Client: srv.Client()}
	if got := b.Lookup(password); got != 0 {
		t.Errorf("Lookup = %d, want 0", got)
	}
	if err := EvaluatePassword(password, b); err != nil {
		t.Errorf("clean password rejected: %v", err)
	}
}

func TestBreachLookupFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // connection refused from here on

	b := &BreachChecker{BaseURL: srv.URL, Client: &http.Client{Timeout: time.Second}}
	if got := b.Lookup("xK9#mQv2Lp5!wz"); got != 0 {
		t.Errorf("unreachable service reported %d, want 0", got)
	}
	if err := EvaluatePassword("xK9#mQv2Lp5!wz", b); err != nil {
		t.Errorf("policy did not fail open: %v", err)
	}
}
