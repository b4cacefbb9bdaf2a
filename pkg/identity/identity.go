// Package identity verifies the bearer tokens clients present on the
// user command and resolves them to profiles. Production deployments
// verify Firebase ID tokens; development setups can swap in a
// shared-secret JWT verifier. A caching wrapper keeps repeated
// verifications of the same token off the network.
package identity

import "context"

// DefaultDisplayName is used when a token carries no name claim.
const DefaultDisplayName = "Unknown User"

// Identity is the profile carried by a verified token.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Verifier checks a bearer token and returns the identity it proves.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// fromClaims builds an Identity from the standard profile claims,
// applying the same defaults for absent claims across all verifiers.
func fromClaims(userID string, claims map[string]any) Identity {
	id := Identity{UserID: userID, DisplayName: DefaultDisplayName}
	if name, ok := claims["name"].(string); ok && name != "" {
		id.DisplayName = name
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if picture, ok := claims["picture"].(string); ok {
		id.PhotoURL = picture
	}
	return id
}
