package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var aliasPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// AutouploadEmail is a routable alias a policyholder forwards claim emails to.
type AutouploadEmail struct {
	ID              string    `json:"id"`
	PolicyHolderID  string    `json:"policy_holder_id"`
	Alias           string    `json:"alias"`
	Domain          string    `json:"domain"`
	IsUserGenerated bool      `json:"is_user_generated"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Address renders the inbound address: <alias>-<policyholder id lowercased>@<domain>.
func (a AutouploadEmail) Address() string {
	return fmt.Sprintf("%s-%s@%s", a.Alias, strings.ToLower(a.PolicyHolderID), a.Domain)
}

func (a *AutouploadEmail) Normalize() {
	a.Alias = strings.ToLower(strings.TrimSpace(a.Alias))
	a.Domain = strings.ToLower(strings.TrimSpace(a.Domain))
}

func (a AutouploadEmail) Validate() error {
	if !aliasPattern.MatchString(a.Alias) {
		return WrapError(ErrInvalidInput, "validate autoupload email", fmt.Errorf("alias %q must be lowercase letters, digits, dot, dash or underscore", a.Alias))
	}
	if a.Domain == "" || strings.Contains(a.Domain, "@") {
		return WrapError(ErrInvalidInput, "validate autoupload email", fmt.Errorf("domain %q is not valid", a.Domain))
	}
	if strings.TrimSpace(a.PolicyHolderID) == "" {
		return WrapError(ErrInvalidInput, "validate autoupload email", fmt.Errorf("policy_holder_id is required"))
	}
	return nil
}

// AutouploadAddress is a parsed inbound recipient address.
type AutouploadAddress struct {
	Alias          string
	PolicyHolderID string
	Domain         string
}

// ParseAutouploadAddress splits an address such as "Claims <claims-ph_1a2b@in.example.com>" into alias,
// lowercased policyholder id and domain. Policyholder ids never contain a dash, so the last dash of the
// local part separates the two.
func ParseAutouploadAddress(raw string) (AutouploadAddress, error) {
	addr := strings.TrimSpace(raw)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return AutouploadAddress{}, WrapError(ErrInvalidInput, "parse autoupload address", fmt.Errorf("%q is not an email address", raw))
	}
	local, domain := strings.ToLower(addr[:at]), strings.ToLower(addr[at+1:])
	dash := strings.LastIndex(local, "-")
	if dash <= 0 || dash == len(local)-1 {
		return AutouploadAddress{}, WrapError(ErrInvalidInput, "parse autoupload address", fmt.Errorf("%q is not an autoupload address", raw))
	}
	phID := local[dash+1:]
	if !strings.HasPrefix(phID, PrefixPolicyHolder) {
		return AutouploadAddress{}, WrapError(ErrInvalidInput, "parse autoupload address", fmt.Errorf("%q does not name a policyholder", raw))
	}
	return AutouploadAddress{Alias: local[:dash], PolicyHolderID: phID, Domain: domain}, nil
}
