package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
)

// PasswordCost is the bcrypt work factor applied to every stored password.
const PasswordCost = 10

const minPasswordLength = 6

var (
	ErrSecretRequired     = errors.New("auth: jwt secret required")
	ErrStoreRequired      = errors.New("auth: user store required")
	ErrMissingFields      = errors.New("auth: email, password and name are required")
	ErrPasswordTooWeak    = errors.New("auth: password must be at least 6 characters")
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// UserStore persists user records. FindUserByEmail returns (nil, nil) when
// no record matches; InsertUser returns ErrDuplicateEmail on an email clash.
type UserStore interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
	IsNewUser bool
}

type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store UserStore, secret string, ttl time.Duration, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateUser hashes password and inserts a new user, returning its id.
func (s *Service) CreateUser(ctx context.Context, email, password, name string) (string, error) {
	user, err := s.createUser(ctx, email, password, name)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *Service) createUser(ctx context.Context, email, password, name string) (models.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || strings.TrimSpace(password) == "" || name == "" {
		return models.User{}, ErrMissingFields
	}
	if len(password) < minPasswordLength {
		return models.User{}, ErrPasswordTooWeak
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, fmt.Errorf("auth: lookup user: %w", err)
	}
	if existing != nil {
		return models.User{}, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return models.User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("auth: insert user: %w", err)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID))

	return user, nil
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.store.FindUserByEmail(ctx, email)
}

// ValidateUser returns the sanitized user when password matches the stored
// hash and (nil, nil) otherwise. Unknown emails and wrong passwords are not
// distinguished.
func (s *Service) ValidateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}

	sanitized := user.Sanitize()
	return &sanitized, nil
}

// Signup creates the account and issues a session token for it.
func (s *Service) Signup(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.createUser(ctx, input.Email, input.Password, input.Name)
	if err != nil {
		return nil, err
	}

	return s.newResult(user, true)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if NormalizeEmail(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.ValidateUser(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	return s.newResult(*user, false)
}

func (s *Service) VerifyToken(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) newResult(user models.User, isNew bool) (*AuthResult, error) {
	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Sanitize(),
		IsNewUser: isNew,
	}, nil
}

func (s *Service) generateToken(user models.User) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// NormalizeEmail lowercases and trims email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
