package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
	"github.com/dengue-gen/denguegen-backend/internal/types"
	"github.com/dengue-gen/denguegen-backend/internal/utils"
)

const (
	DemoUserID       = "usr_123"
	DemoUserName     = "Maria Silva"
	DemoUserEmail    = "user@example.com"
	DemoUserPassword = "SenhaForte!1"
	DemoUserAvatar   = "https://github.com/shadcn.png"
	TakenEmail       = "exists@example.com"

	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

var (
	ErrInvalidCredentials = errors.New("Credenciais inválidas")
	ErrEmailTaken         = errors.New("Este e-mail já está em uso.")
	ErrInvalidSession     = errors.New("invalid or expired session token")
)

// AuthInputError wraps a rejected login or registration body.
type AuthInputError struct {
	Err error
}

func (e *AuthInputError) Error() string { return e.Err.Error() }
func (e *AuthInputError) Unwrap() error { return e.Err }

type SessionClaims struct {
	jwt.RegisteredClaims
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type AuthResult struct {
	User         types.User
	SessionToken string
	ExpiresAt    time.Time
}

// AuthService is the mock cookie authentication. One demo account can log
// in; registration accepts any address except the one marked as taken.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Session(ctx context.Context, tokenString string) (*types.AuthSession, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetSessionTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	sessionTTL   time.Duration
	demoHash     string
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey string, sessionTTL time.Duration) (AuthService, error) {
	hash, err := utils.HashPassword(DemoUserPassword, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
		sessionTTL:   sessionTTL,
		demoHash:     hash,
		now:          time.Now,
	}, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	in := utils.AuthInput{Email: email, Password: password}
	utils.NormalizeAuthInput(&in)
	if vErr := utils.InputValidation("login", in, as.log); vErr != nil {
		return nil, &AuthInputError{Err: vErr}
	}
	if in.Email != DemoUserEmail || !utils.CheckPassword(as.demoHash, in.Password) {
		as.log.Warn("Invalid credentials, Cannot proceed.", "email", in.Email)
		return nil, ErrInvalidCredentials
	}
	user := types.User{
		ID:     DemoUserID,
		Name:   DemoUserName,
		Email:  in.Email,
		Avatar: DemoUserAvatar,
	}
	return as.issue(user)
}

func (as *authService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	in := utils.AuthInput{Email: email, Password: password, Name: name}
	utils.NormalizeAuthInput(&in)
	if vErr := utils.InputValidation("registration", in, as.log); vErr != nil {
		return nil, &AuthInputError{Err: vErr}
	}
	if in.Email == TakenEmail {
		as.log.Warn("Email already in use, Cannot proceed.", "email", in.Email)
		return nil, ErrEmailTaken
	}
	user := types.User{
		ID:    "usr_" + strconv.FormatInt(as.now().UnixMilli(), 10),
		Name:  in.Name,
		Email: in.Email,
	}
	as.log.Info("Registered mock user", "userID", user.ID)
	return as.issue(user)
}

func (as *authService) issue(user types.User) (*AuthResult, error) {
	now := as.now()
	expiresAt := now.Add(as.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		as.log.Error("Failed to sign session token", "error", err)
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &AuthResult{User: user, SessionToken: signed, ExpiresAt: expiresAt}, nil
}

func (as *authService) parse(tokenString string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func (as *authService) Session(ctx context.Context, tokenString string) (*types.AuthSession, error) {
	claims, err := as.parse(tokenString)
	if err != nil {
		return nil, err
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return &types.AuthSession{
		User: types.User{
			ID:     claims.Subject,
			Name:   claims.Name,
			Email:  claims.Email,
			Avatar: claims.Avatar,
		},
		Expires: expires,
	}, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, ErrInvalidSession
	}
	claims, err := as.parse(tokenString)
	if err != nil {
		return ctx, err
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      claims.Subject,
		Name:        claims.Name,
		Email:       claims.Email,
		Avatar:      claims.Avatar,
	}
	if claims.ExpiresAt != nil {
		rd.ExpiresAt = claims.ExpiresAt.Time
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetSessionTTL() time.Duration {
	return as.sessionTTL
}
