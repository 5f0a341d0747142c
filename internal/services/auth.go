package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	googleIssuer  = "https://accounts.google.com"
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	authProviderGoogle = "google"
)

type GoogleIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// IDTokenVerifier checks a Google ID token and returns its identity claims.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleIdentity, error)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier fetches Google's signing keys lazily, on first use.
func NewGoogleVerifier(ctx context.Context, clientID string) *OIDCVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, googleJWKSURL)
	return NewOIDCVerifier(googleIssuer, keySet, clientID)
}

func NewOIDCVerifier(issuer string, keySet oidc.KeySet, clientID string) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var identity GoogleIdentity
	if err := token.Claims(&identity); err != nil {
		return nil, fmt.Errorf("decoding id token claims: %w", err)
	}
	if identity.Subject == "" {
		identity.Subject = token.Subject
	}
	return &identity, nil
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	DB       *gorm.DB
	Verifier IDTokenVerifier
}

func NewAuthService(db *gorm.DB, verifier IDTokenVerifier) *AuthService {
	return &AuthService{DB: db, Verifier: verifier}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Invalid("email and password are required")
	}

	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("login_failed", map[string]interface{}{
			"email":  email,
			"reason": "user_not_found",
		})
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, dbError("loading user", err)
	}

	if user.PasswordHash == "" || !utils.CheckPassword(password, user.PasswordHash) {
		logger.WarnWithUser(user.ID.String(), "login_failed", map[string]interface{}{
			"reason": "invalid_password",
		})
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.issue(&user, "password")
}

// GoogleLogin verifies the ID token and signs in the matching user, creating
// the account on first sign-in.
func (s *AuthService) GoogleLogin(ctx context.Context, rawIDToken string) (*LoginResult, error) {
	if s.Verifier == nil {
		return nil, apperr.Invalid("google sign-in is not configured")
	}
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return nil, apperr.Invalid("idToken is required")
	}

	identity, err := s.Verifier.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		logger.Warn("google_token_rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, apperr.Unauthorized("invalid google token")
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" || !identity.EmailVerified {
		return nil, apperr.Unauthorized("google account email is not verified")
	}

	var user models.User
	err = s.DB.WithContext(ctx).First(&user, "email = ?", email).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, err := s.provisionGoogleUser(ctx, email, identity)
		if err != nil {
			return nil, err
		}
		user = *created
	default:
		return nil, dbError("loading user", err)
	}

	return s.issue(&user, authProviderGoogle)
}

func (s *AuthService) provisionGoogleUser(ctx context.Context, email string, identity *GoogleIdentity) (*models.User, error) {
	username, err := s.availableUsername(ctx, strings.SplitN(email, "@", 2)[0])
	if err != nil {
		return nil, err
	}

	firstName, lastName := identity.GivenName, identity.FamilyName
	if firstName == "" && identity.Name != "" {
		parts := strings.SplitN(identity.Name, " ", 2)
		firstName = parts[0]
		if len(parts) > 1 {
			lastName = parts[1]
		}
	}

	provider := authProviderGoogle
	user := models.User{
		Email:        email,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		AuthProvider: &provider,
	}
	if err := s.DB.WithContext(ctx).Omit("GroupMemberships").Create(&user).Error; err != nil {
		return nil, dbError("creating user", err)
	}

	logger.InfoWithUser(user.ID.String(), "user_provisioned", map[string]interface{}{
		"provider": authProviderGoogle,
	})
	return &user, nil
}

func (s *AuthService) availableUsername(ctx context.Context, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 1; i <= 50; i++ {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", dbError("checking username", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i+1)
	}
	return "", apperr.Conflict("could not find a free username for %s", base)
}

func (s *AuthService) issue(user *models.User, method string) (*LoginResult, error) {
	token, err := utils.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	logger.InfoWithUser(user.ID.String(), "user_logged_in", map[string]interface{}{
		"method": method,
	})
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(utils.TokenTTL()),
		User:      user,
	}, nil
}
