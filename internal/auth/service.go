package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidAvatar is returned for an unknown avatar texture.
	ErrInvalidAvatar = errors.New("invalid avatar")
	// ErrInvalidFlowType is returned for an unknown point flow type.
	ErrInvalidFlowType = errors.New("invalid flow type")
)

// Avatars lists the selectable avatar textures. The first is the default.
var Avatars = []string{"adam", "ash", "lucy", "nancy"}

// MinPasswordLength is the shortest accepted user password.
const MinPasswordLength = 6

// Registration describes a new account.
type Registration struct {
	Username string
	Password string
	Email    string
	Avatar   string
	FlowType string
}

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Validate normalizes r in place and checks its fields.
func (r *Registration) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if len(r.Username) < 3 || len(r.Username) > 32 {
		return ErrInvalidUsername
	}
	if len(r.Password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	if r.Avatar == "" {
		r.Avatar = Avatars[0]
	}
	if !slices.Contains(Avatars, r.Avatar) {
		return fmt.Errorf("%w: %q", ErrInvalidAvatar, r.Avatar)
	}
	flow, ok := points.ParseFlowType(r.FlowType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFlowType, r.FlowType)
	}
	r.FlowType = string(flow)
	return nil
}

// Register validates and creates a new user.
func (s *Service) Register(ctx context.Context, r Registration) (*store.User, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByUsername(ctx, r.Username)
	if err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, store.NewUser{
		Username:     r.Username,
		PasswordHash: hashedPassword,
		Email:        r.Email,
		Avatar:       r.Avatar,
		FlowType:     r.FlowType,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks a username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.IssueToken(user)
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user *store.User) (*Session, error) {
	token, expiresAt, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ResolveToken validates a session token and loads its user.
func (s *Service) ResolveToken(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ValidateToken validates a session token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
