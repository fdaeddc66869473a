// utils/phonevalidator_test.go
package utils

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+919876543210", "+919876543210", false},
		{"+91 98765 43210", "+919876543210", false},
		{"+999123456789", "", true}, // no such country code
		{"+14155552671", "+14155552671", false},
		{"9876543210", "", true}, // country code required
		{"+91123", "", true},
		{"", "", true},
		{"not a number", "", true},
	}
	for _, tt := range tests {
		got, err := ValidatePhone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidatePhone(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidatePhone(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidatePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRepeatedDigits(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+911111111111", true},
		{"+11111111111", true},
		{"9999999999", true},
		{"+919876543210", false},
		{"+91", false},
	}
	for _, tt := range tests {
		if got := repeatedDigits(tt.in); got != tt.want {
			t.Errorf("repeatedDigits(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writeNumberList(t *testing.T, data disposableNumberData) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "numbers.json")
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsDisposableStaticChecks(t *testing.T) {
	path := writeNumberList(t, disposableNumberData{
		Prefixes:    []string{"+18332"},
		FullNumbers: []string{"+919090909090"},
	})
	v := NewPhoneValidator(path, nil)

	tests := []struct {
		in   string
		want bool
	}{
		{"+911111111111", true},  // repeated digits
		{"+911234567890", true},  // fake sequence
		{"+15551234567", true},   // 555 block
		{"+18332001122", true},   // listed prefix
		{"+919090909090", true},  // listed full number
		{"garbage", true},        // unparseable counts as disposable
		{"+919876543210", false}, // legitimate mobile
	}
	for _, tt := range tests {
		if got := v.IsDisposable(tt.in); got != tt.want {
			t.Errorf("IsDisposable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func carrierTestClient(t *testing.T, handler http.HandlerFunc) (*CarrierLookupClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return &CarrierLookupClient{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Client:  srv.Client(),
		logger:  testLogger(),
	}, srv.Close
}

func TestCarrierLookupBlocksVOIP(t *testing.T) {
	client, done := carrierTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":     true,
			"carrier":   "TextNow Inc",
			"line_type": "voip",
		})
	})
	defer done()

	if !client.IsBlocked("+14155552671") {
		t.Error("VOIP line not blocked")
	}
}

func TestCarrierLookupFailsOpen(t *testing.T) {
	client, done := carrierTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer done()

	if client.IsBlocked("+14155552671") {
		t.Error("lookup failure should not block")
	}

	noKey := &CarrierLookupClient{APIKey: "", logger: testLogger()}
	if noKey.IsBlocked("+14155552671") {
		t.Error("missing API key should not block")
	}
}

func TestCarrierLookupFeedsIsDisposable(t *testing.T) {
	client, done := carrierTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":     true,
			"carrier":   "Burner App",
			"line_type": "mobile",
		})
	})
	defer done()

	path := writeNumberList(t, disposableNumberData{})
	v := NewPhoneValidator(path, client)
	if !v.IsDisposable("+919876543210") {
		t.Error("blocked carrier not treated as disposable")
	}
}
