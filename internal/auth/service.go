package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/roomchat/internal/utils"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// Service issues and validates anonymous client tokens.
type Service struct {
	jwtConfig *JWTConfig
	now       func() time.Time
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{
		jwtConfig: jwtConfig,
		now:       time.Now,
	}
}

// Token is an issued client token.
type Token struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken creates a fresh client identity and returns its token.
func (s *Service) IssueToken() (*Token, error) {
	clientID := utils.NewID()
	now := s.now()

	signed, err := GenerateToken(s.jwtConfig, clientID, now)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &Token{
		Token:     signed,
		ClientID:  clientID,
		ExpiresAt: now.Add(s.jwtConfig.TTL).UTC(),
	}, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}
