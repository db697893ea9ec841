package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lysyi3m/bruinbrief/app/database"
)

const (
	DefaultTokenTTL   = 7 * 24 * time.Hour
	MinPasswordLength = 6

	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid authentication token")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Claims carried by a bearer token
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Service struct {
	users  database.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users database.UserRepository, secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *Service) Register(ctx context.Context, email, password, name string) (*database.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < MinPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &database.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*database.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLoginAt = &now

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) IssueToken(user *database.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UpdateProfile changes the name and/or password; nil leaves a field as is
func (s *Service) UpdateProfile(ctx context.Context, userID string, name, password *string) (*database.User, error) {
	var hash *string
	if password != nil {
		if len(*password) < MinPasswordLength {
			return nil, ErrWeakPassword
		}
		h, err := hashPassword(*password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.users.UpdateUser(ctx, userID, name, hash); err != nil {
		return nil, err
	}

	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*database.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
