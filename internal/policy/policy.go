// Package policy implements the domain allow/denylist applied to
// navigation targets and landed URLs.
package policy

import (
	"net/url"
	"strings"
)

// Mode values for DomainPolicy.
const (
	ModeAllowlist = "allowlist"
	ModeDenylist  = "denylist"
)

// DomainPolicy decides whether a URL may be visited. An empty policy (or an
// unknown mode) allows everything; URLs without a host (about:blank, data:)
// are always allowed.
type DomainPolicy struct {
	mode    string
	domains []string
}

// New builds a policy from a mode and a raw domain list. Domains are
// normalized (lowercased, leading dots stripped); empty entries are dropped.
func New(mode string, domains []string) *DomainPolicy {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if n := NormalizeDomain(d); n != "" {
			normalized = append(normalized, n)
		}
	}
	return &DomainPolicy{mode: mode, domains: normalized}
}

// IsAllowed reports whether rawURL passes the policy.
func (p *DomainPolicy) IsAllowed(rawURL string) bool {
	if p == nil {
		return true
	}
	host := ExtractHost(rawURL)
	if host == "" {
		return true
	}
	matched := false
	for _, domain := range p.domains {
		if MatchesDomain(host, domain) {
			matched = true
			break
		}
	}
	switch p.mode {
	case ModeAllowlist:
		return matched
	case ModeDenylist:
		return !matched
	}
	return true
}

// NormalizeDomain lowercases and strips whitespace and leading dots.
func NormalizeDomain(value string) string {
	return strings.TrimLeft(strings.ToLower(strings.TrimSpace(value)), ".")
}

// ExtractHost returns the lowercased hostname of rawURL, or "" when the URL
// has none.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// MatchesDomain reports whether host equals domain or is a subdomain of it.
func MatchesDomain(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
