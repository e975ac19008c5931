// internal/services/admin_auth_service.go
package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService issues admin tokens against the configured bcrypt API key
// hash, and project-scoped customer tokens.
type AuthService struct {
	admin       config.AdminConfig
	jwt         *utils.JWTManager
	customerTTL time.Duration
}

func NewAuthService(admin config.AdminConfig, jwt *utils.JWTManager, customerTTL time.Duration) *AuthService {
	return &AuthService{admin: admin, jwt: jwt, customerTTL: customerTTL}
}

// HashAPIKey produces a value for ADMIN_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *AuthService) IssueAdminToken(req TokenRequest) (*TokenResponse, error) {
	if s.admin.APIKeyHash == "" {
		logrus.Warn("Admin token requested but no API key hash is configured")
		return nil, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.admin.Username)) == 1
	keyErr := bcrypt.CompareHashAndPassword([]byte(s.admin.APIKeyHash), []byte(req.APIKey))
	if !userOK || keyErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwt.Generate(s.admin.Username, utils.RoleAdmin, s.admin.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// IssueCustomerToken grants the project's customer access to comments and
// attachments of that project only.
func (s *AuthService) IssueCustomerToken(project *models.CustomProject) (*TokenResponse, error) {
	token, expiresAt, err := s.jwt.GenerateWithTTL(project.ID.String(), utils.RoleCustomer, project.CustomerEmail, s.customerTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}
