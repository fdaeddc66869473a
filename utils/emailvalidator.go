// utils/emailvalidator.go
package utils

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Domains that must be blocked even when every remote list is down.
var disposableSeedDomains = []string{
	"anlocc.com",
	"tmpmail.org",
	"temp-mail.org",
	"guerrillamail.com",
	"sharklasers.com",
	"mailinator.com",
	"10minutemail.com",
	"tempmail.com",
}

var disposableDomainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^temp`),
	regexp.MustCompile(`^dummy`),
	regexp.MustCompile(`^fake`),
	regexp.MustCompile(`^trash`),
	regexp.MustCompile(`mail\.tm$`),
	regexp.MustCompile(`tmpmail`),
	regexp.MustCompile(`disposable`),
	regexp.MustCompile(`mailinator`),
	regexp.MustCompile(`guerrilla`),
	regexp.MustCompile(`10minute`),
	regexp.MustCompile(`temporary`),
	regexp.MustCompile(`throwaway`),
}

var disposableDomainSources = []string{
	"https://raw.githubusercontent.com/disposable/disposable-email-domains/master/domains.txt",
	"https://raw.githubusercontent.com/7c/fakefilter/main/txt/data.txt",
	"https://raw.githubusercontent.com/martenson/disposable-email-domains/master/disposable_email_blocklist.conf",
}

// DisposableEmailChecker holds the blocked-domain set, refreshed from the
// remote lists and persisted to a local fallback file.
type DisposableEmailChecker struct {
	mu        sync.RWMutex
	domains   map[string]struct{}
	localPath string
	sources   []string
	client    *http.Client
	logger    *log.Logger
	interval  time.Duration
}

func NewDisposableEmailChecker(localPath string) *DisposableEmailChecker {
	c := &DisposableEmailChecker{
		domains:   make(map[string]struct{}),
		localPath: localPath,
		sources:   disposableDomainSources,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    log.New(os.Stdout, "[EMAIL-CHECK] ", log.LstdFlags),
		interval:  4 * time.Hour,
	}
	for _, d := range disposableSeedDomains {
		c.domains[d] = struct{}{}
	}
	if err := c.loadLocal(); err == nil {
		c.logger.Printf("Loaded disposable domains from %s", localPath)
	}
	return c
}

// StartRefreshLoop refreshes the domain set immediately and then every
// four hours.
func (c *DisposableEmailChecker) StartRefreshLoop() {
	go func() {
		for {
			if err := c.Refresh(); err != nil {
				c.logger.Printf("Disposable domain refresh failed: %v", err)
			}
			time.Sleep(c.interval)
		}
	}()
}

// Refresh unions all remote sources with the seed list, swaps the set and
// persists it. When every source fails it falls back to the local file.
func (c *DisposableEmailChecker) Refresh() error {
	merged := make(map[string]struct{})
	for _, d := range disposableSeedDomains {
		merged[d] = struct{}{}
	}

	for _, src := range c.sources {
		domains, err := c.fetchSource(src)
		if err != nil {
			c.logger.Printf("Failed to fetch %s: %v", src, err)
			continue
		}
		for _, d := range domains {
			merged[d] = struct{}{}
		}
	}

	if len(merged) <= len(disposableSeedDomains) {
		if err := c.loadLocal(); err != nil {
			return fmt.Errorf("all sources failed and no local fallback: %w", err)
		}
		c.logger.Println("All sources failed, loaded domains from local fallback")
		return nil
	}

	c.mu.Lock()
	c.domains = merged
	c.mu.Unlock()

	if err := c.persistLocal(merged); err != nil {
		c.logger.Printf("Failed to persist domain list: %v", err)
	}
	c.logger.Printf("Updated disposable domains list: %d domains", len(merged))
	return nil
}

func (c *DisposableEmailChecker) fetchSource(url string) ([]string, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var domains []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, nil
}

func (c *DisposableEmailChecker) loadLocal() error {
	data, err := os.ReadFile(c.localPath)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			c.domains[line] = struct{}{}
		}
	}
	return nil
}

func (c *DisposableEmailChecker) persistLocal(domains map[string]struct{}) error {
	if err := os.MkdirAll(filepath.Dir(c.localPath), 0755); err != nil {
		return err
	}
	lines := make([]string, 0, len(domains))
	for d := range domains {
		lines = append(lines, d)
	}
	return os.WriteFile(c.localPath, []byte(strings.Join(lines, "\n")), 0644)
}

// IsDisposableDomain checks the refreshed set first, then the static
// pattern heuristics.
func (c *DisposableEmailChecker) IsDisposableDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	c.mu.RLock()
	_, blocked := c.domains[domain]
	c.mu.RUnlock()
	if blocked {
		return true
	}

	for _, p := range disposableDomainPatterns {
		if p.MatchString(domain) {
			return true
		}
	}
	return false
}

// IsDisposableEmail reports whether the address uses a throwaway domain.
func (c *DisposableEmailChecker) IsDisposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	return c.IsDisposableDomain(email[at+1:])
}

// ValidateEmail normalizes and validates address syntax. Disposable-domain
// rejection is a separate, independent check.
func ValidateEmail(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", E(KindClientInput, "Invalid email format")
	}
	// net/mail accepts dotless domains; public addresses need a TLD.
	at := strings.LastIndex(address, "@")
	if !strings.Contains(address[at+1:], ".") {
		return "", E(KindClientInput, "Invalid email format")
	}
	return address, nil
}
