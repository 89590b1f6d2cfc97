package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/humanbrowse/internal/policy"
)

func TestDenylistBlocksMatchingDomains(t *testing.T) {
	p := policy.New(policy.ModeDenylist, []string{"example.com"})
	assert.False(t, p.IsAllowed("https://example.com"))
	assert.False(t, p.IsAllowed("https://sub.example.com/path"))
	assert.True(t, p.IsAllowed("https://other.com"))
}

func TestAllowlistAllowsOnlyMatchingDomains(t *testing.T) {
	p := policy.New(policy.ModeAllowlist, []string{"example.com"})
	assert.True(t, p.IsAllowed("https://example.com"))
	assert.True(t, p.IsAllowed("https://sub.example.com/path"))
	assert.False(t, p.IsAllowed("https://other.com"))
}

func TestPolicyAllowsNonHTTPTargets(t *testing.T) {
	p := policy.New(policy.ModeAllowlist, []string{"example.com"})
	assert.True(t, p.IsAllowed("about:blank"))
}

func TestNilPolicyAllowsEverything(t *testing.T) {
	var p *policy.DomainPolicy
	assert.True(t, p.IsAllowed("https://anything.dev"))
}

func TestDomainNormalization(t *testing.T) {
	p := policy.New(policy.ModeDenylist, []string{" .Example.COM ", ""})
	assert.False(t, p.IsAllowed("https://example.com"))
	assert.False(t, p.IsAllowed("https://WWW.EXAMPLE.com"))
}

func TestMatchesDomainRejectsSuffixTricks(t *testing.T) {
	assert.False(t, policy.MatchesDomain("notexample.com", "example.com"))
	assert.True(t, policy.MatchesDomain("a.b.example.com", "example.com"))
}
