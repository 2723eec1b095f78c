// Package privacy implements the Privacy Gateway: the mandatory chokepoint
// between any locally-captured payload and a third-party-bound transport.
package privacy

import (
	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/consent"
	"oneshim-edge/internal/redaction"
)

// ExternalDataPolicy governs whether a consent category's data may leave
// the device at all.
type ExternalDataPolicy int

const (
	Block ExternalDataPolicy = iota
	SanitizeOnly
	AllowWithConsent
)

// PolicyLookup resolves a consent category's ExternalDataPolicy. Supplied
// by the Policy Client so the gateway doesn't depend on it directly.
type PolicyLookup func(category consent.Category) ExternalDataPolicy

// Gateway combines the PII Filter and Consent Ledger into the one
// chokepoint every third-party-bound payload must pass through.
type Gateway struct {
	filter  *redaction.Filter
	ledger  *consent.Ledger
	level   redaction.Level
	policyOf PolicyLookup
}

// New builds a Gateway. If policyOf is nil, AllowWithConsent is assumed for
// every category.
func New(filter *redaction.Filter, ledger *consent.Ledger, level redaction.Level, policyOf PolicyLookup) *Gateway {
	if policyOf == nil {
		policyOf = func(consent.Category) ExternalDataPolicy { return AllowWithConsent }
	}
	return &Gateway{filter: filter, ledger: ledger, level: level, policyOf: policyOf}
}

// SanitizeText applies the PII Filter at the gateway's configured level.
// This alone does not authorize transmission — see SanitizeForExternal.
func (g *Gateway) SanitizeText(text string) string {
	return g.filter.Redact(text, g.level)
}

// ImagePayload is the minimal shape SanitizeForExternal needs from an
// image-bearing payload to apply the should_exclude(app_name) check.
type ImagePayload struct {
	AppName string
	IsImage bool
}

// SanitizeForExternal is the one operation every third-party-bound byte
// stream must pass through. It denies before it sanitizes: consent first,
// policy second, PII filter third, sensitive-app check last.
func (g *Gateway) SanitizeForExternal(text string, img *ImagePayload, category consent.Category) (string, error) {
	switch status, _ := g.ledger.Status(category); status {
	case consent.StatusMissing:
		return "", agenterr.New(agenterr.ConsentRequired, "consent missing for category "+string(category))
	case consent.StatusExpired:
		return "", agenterr.New(agenterr.ConsentExpired, "consent expired for category "+string(category))
	}

	switch g.policyOf(category) {
	case Block:
		return "", agenterr.New(agenterr.PrivacyDenied, "policy blocks external data for category "+string(category))
	case SanitizeOnly, AllowWithConsent:
		// fall through to sanitize below
	}

	sanitized := g.filter.Redact(text, g.level)

	if img != nil && img.IsImage && redaction.ShouldExclude(img.AppName) {
		return "", agenterr.New(agenterr.PrivacyDenied, "sensitive app excluded from external transmission: "+img.AppName)
	}

	return sanitized, nil
}
