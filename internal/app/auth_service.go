package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"webinfinitygen/internal/model"
	"webinfinitygen/internal/pkg/jwtutil"
	"webinfinitygen/internal/repository"
)

const (
	minUsernameLen  = 2
	maxUsernameLen  = 64
	minPasswordLen  = 6
	defaultUserPage = 10
)

type AuthService struct {
	accountRepo   *repository.AccountRepository
	validate      *validator.Validate
	jwtSecret     string
	jwtExpiration time.Duration
	hashCost      int
	now           func() time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token   string
	Account *model.Account
}

type ListAccountsInput struct {
	Search   string
	Page     int
	PageSize int
}

type AccountPage struct {
	Items      []model.Account
	Pagination Pagination
}

func NewAuthService(accountRepo *repository.AccountRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		accountRepo:   accountRepo,
		validate:      validator.New(),
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := input.Password

	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return nil, invalidf("username must be %d to %d characters", minUsernameLen, maxUsernameLen)
	}
	if err := s.validate.Var(email, "required,email,max=128"); err != nil {
		return nil, invalidf("email is invalid")
	}
	if len(password) < minPasswordLen {
		return nil, invalidf("password must be at least %d characters", minPasswordLen)
	}

	existingByName, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, storageErr(err)
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageErr(err)
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	account := &model.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, storageErr(err)
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, account.ID, account.Username, account.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: account}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return nil, invalidf("email and password are required")
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageErr(err)
	}
	if account == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredential
	}

	now := s.now()
	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, storageErr(err)
	}
	account.LastLogin = &now

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, account.ID, account.Username, account.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: account}, nil
}

func (s *AuthService) GetAccountByID(ctx context.Context, id uint) (*model.Account, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *AuthService) ListAccounts(ctx context.Context, input ListAccountsInput) (*AccountPage, error) {
	page, pageSize, offset := normalizePage(input.Page, input.PageSize, defaultUserPage)
	accounts, total, err := s.accountRepo.List(ctx, strings.TrimSpace(input.Search), offset, pageSize)
	if err != nil {
		return nil, storageErr(err)
	}
	return &AccountPage{Items: accounts, Pagination: newPagination(page, pageSize, total)}, nil
}
