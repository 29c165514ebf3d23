package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserService registers and authenticates users.
type UserService struct {
	users IdentityStorage
	cost  int
	now   func() time.Time
	newID func() string
}

// NewUserService creates a service hashing passwords with the given bcrypt
// cost. A cost of zero selects bcrypt.DefaultCost.
func NewUserService(users IdentityStorage, cost int) *UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{users: users, cost: cost, now: time.Now, newID: newID}
}

// Register validates and stores a new user. A taken username or email yields
// ErrUserExists.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := validateRegistration(&in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           s.newID(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.InsertUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	u.PasswordHash = ""
	return u, nil
}

// Authenticate checks a username or email and password pair.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.users.FindUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	out := *u
	out.PasswordHash = ""
	return out, nil
}

// Get returns the public profile of a user.
func (s *UserService) Get(ctx context.Context, id string) (User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	out := *u
	out.PasswordHash = ""
	return out, nil
}

// List returns every user ordered by username.
func (s *UserService) List(ctx context.Context) ([]User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}
