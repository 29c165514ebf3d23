package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"todo-api/domain"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
}

type registrar interface {
	Register(ctx context.Context, in domain.RegisterInput) (domain.User, error)
}

func loadSeedUsers(path string) ([]domain.RegisterInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeedUsers(data)
}

func parseSeedUsers(data []byte) ([]domain.RegisterInput, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]domain.RegisterInput, len(f.Users))
	for i, u := range f.Users {
		out[i] = domain.RegisterInput{
			Username:  u.Username,
			Email:     u.Email,
			Password:  u.Password,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}
	}
	return out, nil
}

// seedUsers registers each user, skipping those whose username or email is
// already taken.
func seedUsers(ctx context.Context, svc registrar, users []domain.RegisterInput) (created, skipped int, err error) {
	for _, in := range users {
		u, err := svc.Register(ctx, in)
		if errors.Is(err, domain.ErrUserExists) {
			log.WithField("username", in.Username).Debug("user exists; skipping")
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, fmt.Errorf("register %s: %w", in.Username, err)
		}
		log.WithFields(log.Fields{"username": u.Username, "id": u.ID}).Info("user seeded")
		created++
	}
	return created, skipped, nil
}
