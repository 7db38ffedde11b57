package interfaces

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Field names reported by RegistrationInput.Validate.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldDocumentHash = "documentHash"
)

// MinDocumentHashLength is the shortest document hash accepted for registration.
const MinDocumentHashLength = 8

// emailSpace adds Unicode separators and the BOM to ASCII whitespace.
const emailSpace = `\s\v\p{Z}\x{FEFF}`

var emailPattern = regexp.MustCompile(`^[^` + emailSpace + `@]+@[^` + emailSpace + `@]+\.[^` + emailSpace + `@]+$`)

// RegistrationInput is the name / email / document hash triple submitted
// to the identity contract's registerUser function.
type RegistrationInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	DocumentHash string `json:"documentHash"`
}

// ValidationErrors maps a field name to a user-facing message.
type ValidationErrors map[string]string

// Error lists the failing fields in a stable order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks all three fields and returns the failures, or nil if the input is valid.
func (in RegistrationInput) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if in.Name == "" {
		errs[FieldName] = "Username cannot be empty."
	}
	if !ValidEmail(in.Email) {
		errs[FieldEmail] = "Invalid email format."
	}
	if utf8.RuneCountInString(in.DocumentHash) < MinDocumentHashLength {
		errs[FieldDocumentHash] = fmt.Sprintf("Hash ID must be at least %d characters.", MinDocumentHashLength)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// UserRecord is the read-only projection returned by the contract's getUser.
type UserRecord struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

// IsEmpty reports whether the record is the zero value the contract returns
// for an address that never registered.
func (r UserRecord) IsEmpty() bool {
	return r.Name == "" && r.Email == "" && !r.IsVerified
}

// IdentityContract is a handle bound to a deployed identity contract.
type IdentityContract interface {
	// SetTransactOpts installs the signer used for state-changing calls.
	SetTransactOpts(auth *bind.TransactOpts)

	// RegisterUser submits registerUser and returns the pending transaction.
	RegisterUser(ctx context.Context, input RegistrationInput) (*types.Transaction, error)

	// GetUser reads the record stored for user.
	GetUser(ctx context.Context, user common.Address) (UserRecord, error)

	// Address is the deployment address the handle is bound to.
	Address() common.Address
}

// ContractBinder creates IdentityContract handles for a deployment address.
type ContractBinder interface {
	Bind(address common.Address) (IdentityContract, error)
}
