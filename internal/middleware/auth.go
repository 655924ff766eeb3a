// Package middleware holds the Fiber middleware that establishes who is calling.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	localAccountID = "account_id"
	localIsAdmin   = "is_admin"
	bearerPrefix   = "Bearer "
)

// Claims is the token payload. The subject is the account ID.
type Claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin,omitempty"`
}

// Auth verifies HS256 bearer tokens issued by the external identity service.
type Auth struct {
	secret []byte
	issuer string
}

// NewAuth creates an Auth. An empty issuer disables the issuer check.
func NewAuth(secret, issuer string) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's account ID and admin flag in the request locals.
func (a *Auth) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			return unauthorized(c)
		}

		claims, err := a.parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			log.Debug().
				Err(err).
				Str("request_id", requestID(c)).
				Str("path", c.Path()).
				Msg("rejected bearer token")
			return unauthorized(c)
		}

		accountID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return unauthorized(c)
		}

		SetAccount(c, accountID, claims.Admin)
		return c.Next()
	}
}

func (a *Auth) parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if admin, _ := c.Locals(localIsAdmin).(bool); !admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// SetAccount records the authenticated caller on the request.
func SetAccount(c *fiber.Ctx, accountID uuid.UUID, admin bool) {
	c.Locals(localAccountID, accountID)
	c.Locals(localIsAdmin, admin)
}

// AccountID returns the authenticated account of the request.
func AccountID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(localAccountID).(uuid.UUID)
	return id, ok
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
