package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrPolicy is returned when a password does not satisfy a Policy.
var ErrPolicy = errors.New("password does not meet policy")

// Policy describes the composition rules a password must satisfy before it
// is sent to a verifier.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	SpecialCharset string // at least one of these runes; empty disables the rule

	// RestrictToCharset rejects any rune other than ASCII letters, ASCII
	// digits and SpecialCharset.
	RestrictToCharset bool
}

// BusinessPolicy is the rule set for business accounts: at least 12
// characters drawn only from A-Z, a-z, 0-9 and @$!%*?&, with at least one
// of each class.
func BusinessPolicy() Policy {
	return Policy{
		MinLength:         12,
		RequireUpper:      true,
		RequireLower:      true,
		RequireDigit:      true,
		SpecialCharset:    "@$!%*?&",
		RestrictToCharset: true,
	}
}

// Check returns ErrPolicy wrapped with the first rule password breaks.
func (p Policy) Check(password string) error {
	if utf8.RuneCountInString(password) < p.MinLength {
		return errors.Join(ErrPolicy, errors.New("too short"))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		inSpecial := p.SpecialCharset != "" && strings.ContainsRune(p.SpecialCharset, r)
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case inSpecial:
		case p.RestrictToCharset:
			return errors.Join(ErrPolicy, fmt.Errorf("character %q not allowed", r))
		}
		if inSpecial {
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return errors.Join(ErrPolicy, errors.New("missing upper-case letter"))
	case p.RequireLower && !lower:
		return errors.Join(ErrPolicy, errors.New("missing lower-case letter"))
	case p.RequireDigit && !digit:
		return errors.Join(ErrPolicy, errors.New("missing digit"))
	case p.SpecialCharset != "" && !special:
		return errors.Join(ErrPolicy, errors.New("missing special character"))
	}
	return nil
}
