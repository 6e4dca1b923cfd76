package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"

	"inout-backend/internal/config"
	"inout-backend/internal/domain"
	"inout-backend/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService exchanges a Firebase ID token for local access/refresh
// JWTs. First sign-in creates a pending employee profile that an
// admin must approve before attendance actions are allowed.
type AuthService struct {
	Config       config.Config
	Users        repository.Users
	Logger       *slog.Logger
	FirebaseAuth *fbauth.Client
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.User
	ExpiresAt    time.Time
}

type LoginInput struct {
	IDToken string
	Name    string
	Phone   string
}

type RefreshInput struct {
	RefreshToken string
}

// Login verifies the identity token, creating the profile document on
// first sign-in.
func (s AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	uid, email, err := s.verifyIDToken(ctx, in.IDToken)
	if err != nil {
		return nil, err
	}

	user, err := s.Users.Get(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		user = &domain.User{
			UID:      uid,
			Name:     in.Name,
			Email:    email,
			Phone:    in.Phone,
			Role:     domain.RoleEmployee,
			Approved: false,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		s.Logger.Info("profile created, pending approval", "uid", uid, "email", email)
	} else if err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// verifyIDToken prefers Firebase Auth verification; when no Firebase
// client is configured it falls back to Google ID token validation
// against the configured client id.
func (s AuthService) verifyIDToken(ctx context.Context, token string) (uid, email string, err error) {
	switch {
	case s.FirebaseAuth != nil:
		decoded, err := s.FirebaseAuth.VerifyIDToken(ctx, token)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
		}
		email, _ := decoded.Claims["email"].(string)
		return decoded.UID, email, nil
	case s.Config.GoogleClientID != "":
		payload, err := idtoken.Validate(ctx, token, s.Config.GoogleClientID)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
		}
		email, _ := payload.Claims["email"].(string)
		return payload.Subject, email, nil
	default:
		return "", "", errors.New("no identity verifier configured")
	}
}

func (s AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	token, err := jwt.Parse(in.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.Config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "refresh" {
		return nil, ErrInvalidToken
	}
	uid, ok := claims["sub"].(string)
	if !ok || uid == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.Users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.issueTokens(user)
}

func (s AuthService) issueTokens(user *domain.User) (*AuthResult, error) {
	now := time.Now()
	accessExp := now.Add(s.Config.AccessTokenTTL)
	refreshExp := now.Add(s.Config.RefreshTokenTTL)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.UID,
		"email":      user.Email,
		"role":       user.Role,
		"token_type": "access",
		"exp":        accessExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.UID,
		"token_type": "refresh",
		"exp":        refreshExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         *user,
		ExpiresAt:    accessExp,
	}, nil
}
