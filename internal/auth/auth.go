package auth

import (
	"fmt"
	"log"

	"dynupd/internal/config"
	"dynupd/internal/model"
)

// Verifier authenticates update requests against the immutable user table.
// Verification is deliberately shaped so that an unknown username and a wrong
// password are indistinguishable to the caller: both return (nil, false) and
// both perform a full hash verification.
type Verifier struct {
	cfg  *config.Config
	ldap *LDAPClient
}

// NewVerifier validates every stored hash up front so request handling can
// treat hash parsing as infallible.
func NewVerifier(cfg *config.Config, ldap *LDAPClient) (*Verifier, error) {
	for _, u := range cfg.Users {
		source := u.AuthSource
		if source == "" {
			source = "local"
		}
		switch source {
		case "local":
			if err := CheckHash(u.Hash); err != nil {
				return nil, fmt.Errorf("user %q: %w", u.Username, err)
			}
		case "ldap":
			if ldap == nil {
				return nil, fmt.Errorf("user %q: auth_source is ldap but no LDAP client is configured", u.Username)
			}
		}
	}
	return &Verifier{cfg: cfg, ldap: ldap}, nil
}

// Verify checks the credentials and returns the matching user on success.
func (v *Verifier) Verify(username, password string) (*model.User, bool) {
	user, ok := v.cfg.User(username)
	if !ok {
		// Burn the same verification work as the known-user path so response
		// timing does not reveal whether the username exists.
		VerifyHash(dummyHash, password)
		return nil, false
	}

	if user.AuthSource == "ldap" {
		if err := v.ldap.Authenticate(username, password); err != nil {
			log.Printf("LDAP authentication failed for %q: %v", username, err)
			return nil, false
		}
		return user, true
	}

	if !VerifyHash(user.Hash, password) {
		return nil, false
	}
	return user, true
}
