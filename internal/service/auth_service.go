package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const usernameAttempts = 5

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	IssueToken(userID uint, username string) (string, error)
}

type AuthService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	cost     int
}

type SignupInput struct {
	Email    string
	Password string
	Username string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, cost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	username, err := s.pickUsername(ctx, strings.TrimSpace(in.Username), email)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:           email,
		Username:        username,
		DisplayName:     username,
		ThemePreference: models.ThemeLight,
		Password:        string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// pickUsername validates a requested username or derives a free one from the email.
func (s *AuthService) pickUsername(ctx context.Context, requested, email string) (string, error) {
	if requested != "" {
		if err := validation.ValidateUsername(requested); err != nil {
			return "", models.NewValidationError(err.Error())
		}
		taken, err := s.userRepo.UsernameTaken(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", models.NewConflictError("Username already taken")
		}
		return requested, nil
	}

	base := validation.UsernameBase(email)
	candidate := base
	for i := 0; i < usernameAttempts; i++ {
		taken, err := s.userRepo.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", models.NewInternalError(err)
		}
		candidate = base + strconv.FormatInt(n.Int64(), 10)
	}
	return "", models.NewConflictError("Could not derive a free username, please choose one")
}
