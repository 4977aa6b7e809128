package db

import (
	"context"
	"fmt"

	"livechat/internal/app/user"
)

// UserCreator is implemented by both stores.
type UserCreator interface {
	CreateUser(ctx context.Context, fullname, email string) (*user.User, error)
}

// DemoUsers are seeded into the in-memory store in development.
var DemoUsers = []struct{ Fullname, Email string }{
	{"Ada Lovelace", "ada@example.com"},
	{"Alan Turing", "alan@example.com"},
	{"Grace Hopper", "grace@example.com"},
}

// SeedUsers creates the demo users and returns them in creation order.
func SeedUsers(ctx context.Context, c UserCreator) ([]user.User, error) {
	users := make([]user.User, 0, len(DemoUsers))
	for _, d := range DemoUsers {
		u, err := c.CreateUser(ctx, d.Fullname, d.Email)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", d.Email, err)
		}
		users = append(users, *u)
	}
	return users, nil
}
