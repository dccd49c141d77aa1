// Package middleware provides authentication, logging, tracing, and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer   = "inkwell-api"
	tokenAudience = "inkwell-client"
	tokenTTL      = 7 * 24 * time.Hour
)

// Authenticator issues and verifies bearer tokens and one-time websocket tickets.
type Authenticator struct {
	secret    []byte
	rdb       *redis.Client
	ticketTTL time.Duration
}

// NewAuthenticator returns an Authenticator. rdb may be nil, in which case
// tickets and revocation are unavailable.
func NewAuthenticator(secret string, rdb *redis.Client, ticketTTL time.Duration) *Authenticator {
	if ticketTTL <= 0 {
		ticketTTL = time.Minute
	}
	return &Authenticator{secret: []byte(secret), rdb: rdb, ticketTTL: ticketTTL}
}

// IssueToken creates a signed JWT for the user.
func (a *Authenticator) IssueToken(userID uint, username string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// IssueTicket stores a single-use websocket ticket for userID.
func (a *Authenticator) IssueTicket(ctx context.Context, userID uint) (string, error) {
	if a.rdb == nil {
		return "", errNoRedis
	}
	ticket := uuid.NewString()
	if err := a.rdb.Set(ctx, ticketKey(ticket), userID, a.ticketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Revoke blacklists a token's jti until the token would have expired.
func (a *Authenticator) Revoke(ctx context.Context, tokenString string) error {
	if a.rdb == nil {
		return errNoRedis
	}
	claims, err := a.parse(tokenString)
	if err != nil {
		return err
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	ttl := tokenTTL
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		ttl = time.Until(exp.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return a.rdb.Set(ctx, "blacklist:"+jti, 1, ttl).Err()
}

// Required rejects requests without a valid ticket or bearer token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := a.identify(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		setUser(c, userID)
		return c.Next()
	}
}

// Optional sets the user when a valid token is present and never rejects.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if userID, err := a.identify(c); err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}

// BearerToken returns the raw token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
}

func ticketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

func (a *Authenticator) identify(c *fiber.Ctx) (uint, error) {
	isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

	if ticket := c.Query("ticket"); ticket != "" && a.rdb != nil {
		// GETDEL keeps the ticket single-use under concurrent upgrades
		val, err := a.rdb.GetDel(c.UserContext(), ticketKey(ticket)).Result()
		if err == nil {
			if id, parseErr := strconv.ParseUint(val, 10, 32); parseErr == nil && id > 0 {
				return uint(id), nil
			}
		}
		if isWSPath {
			return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
		}
	}

	tokenString := BearerToken(c)
	if tokenString == "" && isWSPath {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		return 0, models.NewUnauthorizedError("Authorization required")
	}

	claims, err := a.parse(tokenString)
	if err != nil {
		return 0, err
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, models.NewUnauthorizedError("Invalid user ID in token")
	}

	if jti, _ := claims["jti"].(string); jti != "" && a.rdb != nil {
		revoked, existsErr := a.rdb.Exists(c.UserContext(), "blacklist:"+jti).Result()
		if existsErr == nil && revoked > 0 {
			return 0, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	return uint(userID), nil
}

func (a *Authenticator) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	return claims, nil
}
