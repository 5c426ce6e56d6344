package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/guardianview/guardian-backend/internal/config"
)

// ErrEmptyCredentials rejects blank usernames or passwords. There is no
// real identity verification beyond that: any non-empty pair succeeds, and
// the resulting token is only a session-scoped "authenticated" marker
// gating the exam and readiness routes.
var ErrEmptyCredentials = errors.New("username and password must not be empty")

// Claims extends JWT standard claims with the candidate identity.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// AuthService handles credential entry, JWT issuance and the Redis-backed
// session registry. A fresh login supersedes any previous session for the
// same candidate; logout clears it.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// Login issues a JWT for the candidate and registers the session in Redis.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrEmptyCredentials
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	// A new login supersedes any existing session; tokens from the old
	// session fail the JTI check from here on.
	sessionKey := config.CacheKey.CandidateSessionKey(username)
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return signed, nil
}

// Logout clears the candidate's session registry entry.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	sessionKey := config.CacheKey.CandidateSessionKey(username)
	if err := s.rdb.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateSession checks that the token's JTI matches the active session in
// Redis, rejecting tokens from logged-out or superseded visits.
func (s *AuthService) ValidateSession(ctx context.Context, username, jti string) error {
	sessionKey := config.CacheKey.CandidateSessionKey(username)
	stored, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active session")
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return errors.New("session superseded by a newer login")
	}
	return nil
}
