// Package identity extracts the calling principal from a verified JWT.
package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localsKey = "principal"

var (
	ErrNoToken      = errors.New("invalid token in context")
	ErrInvalidClaim = errors.New("invalid claims")
	ErrNoSubject    = errors.New("missing sub claim")
)

// Principal is the caller of a request. Internal principals are other network
// services acting on behalf of a user, most often the bot.
type Principal struct {
	ID       string
	Scopes   []string
	Internal bool
}

// FromToken reads sub, scopes and internal from the token's claims.
func FromToken(token *jwt.Token) (*Principal, error) {
	if token == nil {
		return nil, ErrNoToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaim
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrNoSubject
	}

	p := &Principal{ID: sub}
	switch scopes := claims["scopes"].(type) {
	case []interface{}:
		for _, s := range scopes {
			if str, ok := s.(string); ok {
				p.Scopes = append(p.Scopes, str)
			}
		}
	case string:
		p.Scopes = splitScopes(scopes)
	}
	p.Internal, _ = claims["internal"].(bool)
	return p, nil
}

// Set stores the principal of the current request.
func Set(c *fiber.Ctx, p *Principal) {
	c.Locals(localsKey, p)
}

// Get returns the principal stored by the authentication middleware.
func Get(c *fiber.Ctx) (*Principal, error) {
	if p, ok := c.Locals(localsKey).(*Principal); ok && p != nil {
		return p, nil
	}
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil, ErrNoToken
	}
	return FromToken(token)
}
