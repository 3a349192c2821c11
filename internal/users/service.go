package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for users.
type Service struct {
	Repo Repo
}

// FindOrCreate looks a user up by email and creates one if missing.
// The returned bool reports whether a new user was created.
func (s *Service) FindOrCreate(ctx context.Context, email, name string) (User, bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, false, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, false, ErrInvalidInput
	}

	existing, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	user := User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		// A concurrent create can win the race on the unique email index.
		if again, getErr := s.Repo.GetByEmail(ctx, email); getErr == nil {
			return again, false, nil
		}
		return User{}, false, err
	}
	return user, true, nil
}
