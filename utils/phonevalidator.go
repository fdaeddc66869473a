// utils/phonevalidator.go
package utils

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// Obviously fake shapes rejected before any parsing or lookup.
var fakePhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\+91)?(1234567890|0000000000|9999999999)$`),
	regexp.MustCompile(`^\+?\d{0,3}555\d{7}$`),
	regexp.MustCompile(`^\+?\d{0,3}(123|321|111|000|999)\d{7}$`),
}

// Carriers whose lines are virtual or rented by the minute.
var blockedCarriers = []string{
	"textnow", "google voice", "twilio", "bandwidth",
	"skype", "plivo", "nexmo", "voip", "burner",
	"ping", "unassigned", "unknown",
}

var separatorReplacer = strings.NewReplacer(" ", "", "-", "")

// ValidatePhone parses a number and returns its E.164 form. The country
// code must be present; there is no default region.
func ValidatePhone(number string) (string, error) {
	number = separatorReplacer.Replace(strings.TrimSpace(number))
	if number == "" {
		return "", E(KindClientInput, "Phone number is required")
	}

	parsed, err := phonenumbers.Parse(number, "")
	if err != nil {
		return "", E(KindClientInput, "Invalid phone number format. Include the country code (e.g., +91XXXXXXXXXX)")
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", E(KindClientInput, "Invalid phone number")
	}
	if len(phonenumbers.GetNationalSignificantNumber(parsed)) < 8 {
		return "", E(KindClientInput, "Phone number too short")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// disposableNumberData mirrors data/disposable_numbers.json.
type disposableNumberData struct {
	Prefixes    []string `json:"prefixes"`
	FullNumbers []string `json:"fullNumbers"`
	Patterns    []string `json:"patterns"`
}

// CarrierLookupClient asks a line-type API whether a number is a VOIP or
// premium-rate line. It is the last line of defense and strictly
// advisory: any network or decode failure fails open.
type CarrierLookupClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	logger  *log.Logger
}

func NewCarrierLookupClient() *CarrierLookupClient {
	return &CarrierLookupClient{
		APIKey:  os.Getenv("ABSTRACT_PHONE_API_KEY"),
		BaseURL: "https://phonevalidation.abstractapi.com/v1/",
		Client:  &http.Client{Timeout: 5 * time.Second},
		logger:  log.New(os.Stdout, "[CARRIER] ", log.LstdFlags),
	}
}

type carrierLookupResponse struct {
	Valid    *bool  `json:"valid"`
	Carrier  string `json:"carrier"`
	LineType string `json:"line_type"`
}

// IsBlocked reports whether the carrier lookup says the number should be
// rejected. Lookup failure reports false.
func (c *CarrierLookupClient) IsBlocked(e164 string) bool {
	if c.APIKey == "" {
		return false
	}

	params := url.Values{}
	params.Set("api_key", c.APIKey)
	params.Set("phone", e164)

	resp, err := c.Client.Get(c.BaseURL + "?" + params.Encode())
	if err != nil {
		c.logger.Printf("Carrier lookup failed for %s: %v", e164, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var data carrierLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.logger.Printf("Carrier lookup decode failed: %v", err)
		return false
	}

	if data.Valid != nil && !*data.Valid {
		return true
	}

	carrier := strings.ToLower(data.Carrier)
	lineType := strings.ToLower(data.LineType)
	if lineType == "voip" || lineType == "premium_rate" {
		return true
	}
	for _, blocked := range blockedCarriers {
		if carrier != "" && strings.Contains(carrier, blocked) {
			return true
		}
	}
	return false
}

// PhoneValidator combines the static fake patterns, the bundled
// disposable-number list and the carrier lookup.
type PhoneValidator struct {
	dataPath string
	carrier  *CarrierLookupClient
	logger   *log.Logger

	once     sync.Once
	prefixes []string
	full     map[string]struct{}
	patterns []*regexp.Regexp
}

func NewPhoneValidator(dataPath string, carrier *CarrierLookupClient) *PhoneValidator {
	return &PhoneValidator{
		dataPath: dataPath,
		carrier:  carrier,
		logger:   log.New(os.Stdout, "[PHONE-CHECK] ", log.LstdFlags),
	}
}

func (v *PhoneValidator) loadList() {
	v.full = make(map[string]struct{})

	data, err := os.ReadFile(v.dataPath)
	if err != nil {
		v.logger.Printf("Disposable number list unavailable: %v", err)
		return
	}

	var list disposableNumberData
	if err := json.Unmarshal(data, &list); err != nil {
		v.logger.Printf("Disposable number list malformed: %v", err)
		return
	}

	v.prefixes = list.Prefixes
	for _, n := range list.FullNumbers {
		v.full[n] = struct{}{}
	}
	for _, p := range list.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			v.logger.Printf("Invalid pattern in %s: %s", v.dataPath, p)
			continue
		}
		v.patterns = append(v.patterns, re)
	}
}

// IsDisposable reports whether the number is throwaway or virtual. An
// unparseable number counts as disposable.
func (v *PhoneValidator) IsDisposable(number string) bool {
	normalized := separatorReplacer.Replace(strings.TrimSpace(number))
	if normalized == "" {
		return true
	}

	if repeatedDigits(normalized) {
		return true
	}
	for _, p := range fakePhonePatterns {
		if p.MatchString(normalized) {
			return true
		}
	}

	e164, err := ValidatePhone(normalized)
	if err != nil {
		return true
	}

	v.once.Do(v.loadList)

	for _, prefix := range v.prefixes {
		if strings.HasPrefix(normalized, prefix) || strings.HasPrefix(e164, prefix) {
			return true
		}
	}
	if _, found := v.full[normalized]; found {
		return true
	}
	if _, found := v.full[e164]; found {
		return true
	}
	for _, p := range v.patterns {
		if p.MatchString(normalized) {
			return true
		}
	}

	if v.carrier != nil && v.carrier.IsBlocked(e164) {
		return true
	}
	return false
}

// repeatedDigits reports whether every digit of the number is the same,
// e.g. +911111111111.
func repeatedDigits(number string) bool {
	digits := strings.TrimPrefix(number, "+")
	if len(digits) < 10 {
		return false
	}
	// Ignore a leading country digit so +11111111111 still matches.
	tail := digits[len(digits)-10:]
	first := tail[0]
	for i := 1; i < len(tail); i++ {
		if tail[i] != first {
			return false
		}
	}
	return true
}
