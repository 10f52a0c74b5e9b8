// Package whois looks up domain registration data for reported URLs.
// The result is informational and never feeds the risk score.
package whois

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"
)

var (
	ErrNoDomain     = errors.New("url has no domain")
	ErrLookupFailed = errors.New("whois lookup failed")
)

// DomainInfo is the registration data relevant to phishing triage.
type DomainInfo struct {
	Domain          string     `json:"domain"`
	Registrar       string     `json:"registrar,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	AgeDays         int        `json:"age_days"`
	NewlyRegistered bool       `json:"newly_registered"`
}

// NewDomainDays is the age below which a domain counts as newly registered.
const NewDomainDays = 60

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// Fetcher returns raw WHOIS text for a domain.
type Fetcher func(domain string) (string, error)

// Client performs lookups with a timeout.
type Client struct {
	fetch  Fetcher
	logger *zap.Logger
	now    func() time.Time
}

// NewClient creates a client backed by the public WHOIS servers.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	c := whois.NewClient().SetTimeout(timeout)
	return NewClientWithFetcher(func(domain string) (string, error) {
		return c.Whois(domain)
	}, logger)
}

// NewClientWithFetcher creates a client using fetch for raw lookups.
func NewClientWithFetcher(fetch Fetcher, logger *zap.Logger) *Client {
	return &Client{
		fetch:  fetch,
		logger: logger,
		now:    time.Now,
	}
}

// Lookup resolves the domain of rawURL. Subdomains that the registry does
// not know are retried against their parent domain.
func (c *Client) Lookup(ctx context.Context, rawURL string) (*DomainInfo, error) {
	domain, err := DomainOf(rawURL)
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := c.lookupDomain(domain)
		if err == nil {
			return info, nil
		}

		parts := strings.Split(domain, ".")
		if len(parts) <= 2 {
			c.logger.Warn("WHOIS lookup failed", zap.String("domain", domain), zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %v", ErrLookupFailed, domain, err)
		}
		domain = strings.Join(parts[1:], ".")
	}
}

func (c *Client) lookupDomain(domain string) (*DomainInfo, error) {
	raw, err := c.fetch(domain)
	if err != nil {
		return nil, err
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Domain == nil {
		return nil, errors.New("no domain section in response")
	}

	info := &DomainInfo{Domain: domain}
	if parsed.Registrar != nil {
		info.Registrar = parsed.Registrar.Name
	}
	if created, ok := ParseDate(parsed.Domain.CreatedDate); ok {
		info.CreatedAt = &created
		info.AgeDays = int(c.now().Sub(created).Hours() / 24)
		info.NewlyRegistered = info.AgeDays < NewDomainDays
	}
	if expires, ok := ParseDate(parsed.Domain.ExpirationDate); ok {
		info.ExpiresAt = &expires
	}
	return info, nil
}

// DomainOf extracts the lowercase hostname of rawURL, without port or userinfo.
// IP literals are rejected since they have no registration record.
func DomainOf(rawURL string) (string, error) {
	candidate := strings.TrimSpace(rawURL)
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDomain, err)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || !strings.Contains(host, ".") || net.ParseIP(host) != nil {
		return "", ErrNoDomain
	}
	return host, nil
}

// ParseDate tries the date layouts registries commonly use.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
