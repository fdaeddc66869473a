// utils/password.go
package utils

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

// minStrengthScore is the zxcvbn floor (0-4 scale) below which a password
// is rejected regardless of composition.
const minStrengthScore = 3

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password with a stored hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// BreachChecker queries the HIBP range API with the k-anonymity scheme:
// only the first five hex chars of the SHA-1 ever leave the process.
type BreachChecker struct {
	BaseURL string
	Client  *http.Client
}

func NewBreachChecker() *BreachChecker {
	return &BreachChecker{
		BaseURL: "https://api.pwnedpasswords.com/range",
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup returns how many times the password appears in the breach
// corpus. An unreachable service reports zero: policy enforcement fails
// open rather than blocking registration.
func (b *BreachChecker) Lookup(password string) int {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequest(http.MethodGet, b.BaseURL+"/"+prefix, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("User-Agent", "Shopsy")

	resp, err := b.Client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0
	}

	// Response lines are "SUFFIX:COUNT".
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(parts[0], suffix) {
			count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return 0
			}
			return count
		}
	}
	return 0
}

// EvaluatePassword runs the acceptance pipeline in order: strength
// estimate, structural rules, breach corpus. The first failing stage
// short-circuits.
func EvaluatePassword(candidate string, breach *BreachChecker) error {
	if zxcvbn.PasswordStrength(candidate, nil).Score < minStrengthScore {
		if msg := structuralFailure(candidate); msg != "" {
			return E(KindClientInput, "Password is too weak: "+msg)
		}
		return E(KindClientInput, "Password is too weak. Use a longer, less predictable password")
	}

	if msg := structuralFailure(candidate); msg != "" {
		return E(KindClientInput, msg)
	}

	if breach != nil {
		if count := breach.Lookup(candidate); count > 0 {
			return E(KindClientInput, fmt.Sprintf("Password has appeared in %d known data breaches. Choose a different one", count))
		}
	}

	return nil
}

// structuralFailure returns a message enumerating every missing
// composition requirement, or "" when the password satisfies all of them.
func structuralFailure(password string) string {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	var missing []string
	if len(password) < 8 {
		missing = append(missing, "at least 8 characters")
	}
	if !hasLower {
		missing = append(missing, "a lowercase letter")
	}
	if !hasUpper {
		missing = append(missing, "an uppercase letter")
	}
	if !hasDigit {
		missing = append(missing, "a number")
	}
	if !hasSymbol {
		missing = append(missing, "a special character")
	}

	if len(missing) == 0 {
		return ""
	}
	return "Password must contain " + strings.Join(missing, ", ")
}
