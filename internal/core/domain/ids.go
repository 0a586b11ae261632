package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Reserved id prefixes. Internal ids carry a 16-hex suffix, external ids a dash and a 10-hex
// suffix, so the two namespaces of one kind never overlap.
const (
	PrefixPolicyHolder    = "ph_"
	PrefixAutouploadEmail = "auto_email_"
	PrefixClaim           = "CLM"
	PrefixInbox           = "INB"
	PrefixDocument        = "DOC"

	internalSuffixLen = 16
	externalSuffixLen = 10
)

func NewPolicyHolderID() string    { return PrefixPolicyHolder + randomHex(internalSuffixLen, false) }
func NewAutouploadEmailID() string { return PrefixAutouploadEmail + randomHex(internalSuffixLen, false) }
func NewClaimID() string           { return PrefixClaim + randomHex(internalSuffixLen, true) }
func NewInboxID() string           { return PrefixInbox + randomHex(internalSuffixLen, true) }
func NewDocumentID() string        { return PrefixDocument + randomHex(internalSuffixLen, true) }

// NewExternalClaimID returns the customer-facing claim number.
func NewExternalClaimID() string { return PrefixClaim + "-" + randomHex(externalSuffixLen, true) }

// NewExternalInboxID returns the customer-facing inbox reference.
func NewExternalInboxID() string { return PrefixInbox + "-" + randomHex(externalSuffixLen, true) }

// IsExternalID reports whether id is in the external namespace of the given prefix.
func IsExternalID(prefix, id string) bool {
	return strings.HasPrefix(id, prefix+"-")
}

func randomHex(n int, upper bool) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(raw) {
		n = len(raw)
	}
	out := raw[:n]
	if upper {
		out = strings.ToUpper(out)
	}
	return out
}
