package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const DefaultPolicyHolderStatus = "active"

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// PolicyHolder is an insured customer. Email is unique across policyholders.
type PolicyHolder struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DateOfBirth    Date      `json:"date_of_birth"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        Address   `json:"address"`
	LinkedPolicies []string  `json:"linked_policies"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *PolicyHolder) ApplyDefaults() {
	if strings.TrimSpace(p.Status) == "" {
		p.Status = DefaultPolicyHolderStatus
	}
	if p.LinkedPolicies == nil {
		p.LinkedPolicies = []string{}
	}
	p.Email = strings.TrimSpace(p.Email)
}

func (p PolicyHolder) Validate() error {
	var problems []string
	if strings.TrimSpace(p.FirstName) == "" {
		problems = append(problems, "first_name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		problems = append(problems, "last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		problems = append(problems, "date_of_birth is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		problems = append(problems, "email must be a valid email address")
	}
	if strings.TrimSpace(p.Phone) == "" {
		problems = append(problems, "phone is required")
	}
	if len(problems) > 0 {
		return WrapError(ErrInvalidInput, "validate policyholder", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
