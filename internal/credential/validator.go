package credential

import (
	"github.com/consultease/adminguard/internal/model"
)

// Validator combines the password policy with hashing and verification. It is
// safe for concurrent use.
type Validator struct {
	policy *Policy
	hasher *Hasher
	dummy  PasswordHash
}

// NewValidator creates a Validator from a policy and a hasher. Nil arguments
// are replaced by the defaults. It spends one hash at the configured cost to
// prepare the hash BurnVerification compares against.
func NewValidator(policy *Policy, hasher *Hasher) *Validator {
	if policy == nil {
		policy = NewPolicy(DefaultMinLength)
	}
	if hasher == nil {
		hasher = NewHasher(DefaultCost)
	}
	return &Validator{policy: policy, hasher: hasher, dummy: dummyHash(hasher)}
}

func dummyHash(hasher *Hasher) PasswordHash {
	encoded, err := hasher.Hash("adminguard-unknown-user")
	if err != nil {
		return LegacyDigest{}
	}
	return AdaptiveHash{Encoded: encoded}
}

// Policy returns the password policy in use.
func (v *Validator) Policy() *Policy {
	return v.policy
}

// ValidateStrength reports whether password satisfies the policy.
func (v *Validator) ValidateStrength(password string) (bool, string) {
	return v.policy.ValidateStrength(password)
}

// Hash validates password against the policy and returns a new adaptive hash.
// A policy violation is returned as *WeakPasswordError; primitive failures
// wrap ErrHashing.
func (v *Validator) Hash(password string) (string, error) {
	if err := v.policy.Check(password); err != nil {
		return "", err
	}
	return v.hasher.Hash(password)
}

// Verify reports whether password matches the credentials stored on admin.
// It never fails: malformed hashes and missing records verify as false.
func (v *Validator) Verify(password string, admin *model.Admin) (ok bool) {
	if admin == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return ParsePasswordHash(admin.PasswordHash, admin.LegacySalt).Matches(password)
}

// BurnVerification spends one adaptive comparison at the configured cost
// without a record, so unknown usernames take as long as wrong passwords.
func (v *Validator) BurnVerification(password string) {
	_ = v.dummy.Matches(password)
}
