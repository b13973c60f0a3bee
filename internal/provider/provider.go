package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sydlexius/spinmatch/internal/gateway"
)

// AccessTier classifies a provider's access model.
type AccessTier string

// Access tier constants for classifying a provider's access model.
const (
	TierFree    AccessTier = "free"     // No key, no limit known
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
	TierPaid    AccessTier = "paid"     // Paid access only
)

// RateLimitInfo documents the known rate limits for a provider.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// ProviderCapability describes a provider's access model, documented rate
// limits and the role it plays in reconciliation.
type ProviderCapability struct {
	Tier      AccessTier     `json:"tier"`
	Role      string         `json:"role"`
	HelpURL   string         `json:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// ProviderCapabilities returns the known capability metadata for each provider.
func ProviderCapabilities() map[ProviderName]ProviderCapability {
	return map[ProviderName]ProviderCapability{
		NameMusicBrainz: {
			Tier:      TierFree,
			Role:      "catalog",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1},
		},
		NameCoverArtArchive: {
			Tier:      TierFree,
			Role:      "cover_art",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1},
		},
		NameWikipedia: {
			Tier:      TierFree,
			Role:      "artist_portrait",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5},
		},
		NameDiscogs: {
			Tier:      TierFreeKey,
			Role:      "marketplace",
			HelpURL:   "https://www.discogs.com/settings/developers",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1, RequestsPerDay: 1000},
		},
		NameOracle: {
			Tier:    TierPaid,
			Role:    "field_completion",
			HelpURL: "https://openrouter.ai/settings/keys",
		},
	}
}

// ProviderName uniquely identifies an external service.
type ProviderName string

// Known provider names.
const (
	NameMusicBrainz     ProviderName = "musicbrainz"
	NameCoverArtArchive ProviderName = "coverartarchive"
	NameWikipedia       ProviderName = "wikipedia"
	NameDiscogs         ProviderName = "discogs"
	NameOracle          ProviderName = "oracle"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{
		NameMusicBrainz,
		NameCoverArtArchive,
		NameWikipedia,
		NameDiscogs,
		NameOracle,
	}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameCoverArtArchive:
		return "Cover Art Archive"
	case NameWikipedia:
		return "Wikipedia"
	case NameDiscogs:
		return "Discogs"
	case NameOracle:
		return "AI field completion"
	default:
		return string(n)
	}
}

// Checker is implemented by every adapter so operators can verify
// connectivity and credentials.
type Checker interface {
	// Name returns the unique provider identifier.
	Name() ProviderName

	// RequiresAuth returns true if this provider needs an API key to function.
	RequiresAuth() bool

	// TestConnection performs a cheap request against the provider.
	TestConnection(ctx context.Context) error
}

// ErrProviderUnavailable reports that a provider could not be reached or
// answered with a server error during a connection test.
type ErrProviderUnavailable struct {
	Provider ProviderName
	Cause    error
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// Unavailable wraps a failed connection test. Authentication failures are
// returned unchanged so they still read as credential problems.
func Unavailable(name ProviderName, err error) error {
	if err == nil || errors.Is(err, gateway.ErrAuthFailure) {
		return err
	}
	return &ErrProviderUnavailable{Provider: name, Cause: err}
}

// ErrNotFound indicates the provider has no usable record for the lookup.
// Reason carries the underlying failure, if any, for logging only.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
	Reason   string
}

func (e *ErrNotFound) Error() string {
	msg := fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// ErrAuthRequired indicates the provider needs an API key but none is configured.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: API key not configured", e.Provider)
}

// Unwrap reports a missing key as an authentication failure.
func (e *ErrAuthRequired) Unwrap() error { return gateway.ErrAuthFailure }
