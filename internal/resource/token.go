// Package resource patches and resolves the localized resource tables of the
// host module (resources/base/profile and resources/base/element).
package resource

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidToken is returned by ParseToken for ids that are not "$kind:key".
var ErrInvalidToken = errors.New("invalid resource token")

// ProfileKind is the kind literal that selects a value table.
const ProfileKind = "profile"

var tokenRE = regexp.MustCompile(`^\$([a-zA-Z0-9_]+):(.+)$`)

// Token is a parsed "$kind:key" reference.
type Token struct {
	Kind string
	Key  string
}

// ParseToken parses id. Callers decide what to do with ErrInvalidToken.
func ParseToken(id string) (Token, error) {
	m := tokenRE.FindStringSubmatch(id)
	if m == nil {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, id)
	}
	return Token{Kind: m[1], Key: m[2]}, nil
}

// IsValue reports whether the token addresses a flat value table.
func (t Token) IsValue() bool { return t.Kind == ProfileKind }

func (t Token) String() string { return "$" + t.Kind + ":" + t.Key }
