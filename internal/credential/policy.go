// Package credential implements the administrator password policy and the
// password hash formats accepted by adminguard.
package credential

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the minimum password length when none is configured.
const DefaultMinLength = 8

// SpecialCharacters is the punctuation set a password must draw from.
const SpecialCharacters = "!@#$%^&*()_+-=[]{}|;:,.<>?/"

// commonPatterns are substrings that make a password easy to guess when they
// dominate it. Matching is case-insensitive.
var commonPatterns = []string{"123", "abc", "qwerty", "password", "admin"}

// Violation codes reported in WeakPasswordError.Code.
const (
	CodeEmpty            = "empty"
	CodeMinLength        = "min_length"
	CodeCharacterClasses = "character_classes"
	CodeSpecialCharacter = "special_character"
	CodeCommonPattern    = "common_pattern"
)

// WeakPasswordError reports the first password policy violation. It never
// carries the password itself.
type WeakPasswordError struct {
	Code   string
	Reason string
}

// Error implements error for WeakPasswordError.
func (e *WeakPasswordError) Error() string {
	if e == nil {
		return ""
	}
	return e.Reason
}

// Rule validates a password according to a single policy rule.
type Rule interface {
	Validate(password string) error
}

// RuleFunc adapts a function to be used as a Rule.
type RuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f RuleFunc) Validate(password string) error {
	return f(password)
}

// Policy applies an ordered sequence of rules; the first failing rule's
// reason is the one reported.
type Policy struct {
	minLength int
	rules     []Rule
}

// NewPolicy builds the administrator password policy. A minLength below one
// falls back to DefaultMinLength.
func NewPolicy(minLength int) *Policy {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &Policy{
		minLength: minLength,
		rules: []Rule{
			NotEmptyRule(),
			MinLengthRule(minLength),
			CharacterClassesRule(),
			SpecialCharacterRule(),
			CommonPatternRule(),
		},
	}
}

// MinLength returns the configured minimum length.
func (p *Policy) MinLength() int {
	return p.minLength
}

// Check returns a *WeakPasswordError for the first violated rule, or nil.
func (p *Policy) Check(password string) error {
	for _, rule := range p.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStrength reports whether password satisfies the policy, together
// with a human readable reason.
func (p *Policy) ValidateStrength(password string) (bool, string) {
	if err := p.Check(password); err != nil {
		return false, err.Error()
	}
	return true, "Password meets strength requirements"
}

// NotEmptyRule rejects the empty password.
func NotEmptyRule() Rule {
	return RuleFunc(func(password string) error {
		if password == "" {
			return &WeakPasswordError{Code: CodeEmpty, Reason: "Password cannot be empty"}
		}
		return nil
	})
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) Rule {
	return RuleFunc(func(password string) error {
		if utf8.RuneCountInString(password) < min {
			return &WeakPasswordError{
				Code:   CodeMinLength,
				Reason: fmt.Sprintf("Password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// CharacterClassesRule requires an uppercase letter, a lowercase letter and a
// digit. A single message covers all three classes.
func CharacterClassesRule() Rule {
	return RuleFunc(func(password string) error {
		var hasUpper, hasLower, hasDigit bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			}
		}
		if hasUpper && hasLower && hasDigit {
			return nil
		}
		return &WeakPasswordError{
			Code:   CodeCharacterClasses,
			Reason: "Password must contain uppercase letters, lowercase letters, and digits",
		}
	})
}

// SpecialCharacterRule requires at least one character from SpecialCharacters.
func SpecialCharacterRule() Rule {
	return RuleFunc(func(password string) error {
		if strings.ContainsAny(password, SpecialCharacters) {
			return nil
		}
		return &WeakPasswordError{
			Code:   CodeSpecialCharacter,
			Reason: "Password must contain at least one special character",
		}
	})
}

// CommonPatternRule rejects passwords in which a denylisted pattern is longer
// than half of the password.
func CommonPatternRule() Rule {
	return RuleFunc(func(password string) error {
		lower := strings.ToLower(password)
		n := utf8.RuneCountInString(password)
		for _, pattern := range commonPatterns {
			// len(pattern) > n/2, kept in integers.
			if strings.Contains(lower, pattern) && 2*len(pattern) > n {
				return &WeakPasswordError{
					Code:   CodeCommonPattern,
					Reason: "Password relies too heavily on common patterns that are easy to guess",
				}
			}
		}
		return nil
	})
}
