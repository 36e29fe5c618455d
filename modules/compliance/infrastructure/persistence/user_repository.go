package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
)

type UserRepository struct{}

func NewUserRepository() domain.UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	users := []domain.User{}
	err = sqlx.SelectContext(ctx, tx, &users, `SELECT id, email, name FROM users ORDER BY email`)
	return users, wrap(err, "list users")
}

// Upsert creates the user or renames the one holding the same email.
func (r *UserRepository) Upsert(ctx context.Context, u domain.User) (domain.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.User{}, err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	var existing domain.User
	err = sqlx.GetContext(ctx, tx, &existing, tx.Rebind(`SELECT id, email, name FROM users WHERE LOWER(email) = ?`), u.Email)
	switch err = wrap(err, "find user"); {
	case err == nil:
		existing.Name = u.Name
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET name = ? WHERE id = ?`), existing.Name, existing.ID)
		return existing, wrap(err, "update user")
	case isNotFound(err):
	default:
		return domain.User{}, err
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`), u.ID, u.Email, u.Name)
	if err != nil {
		return domain.User{}, wrap(err, "create user")
	}
	return u, nil
}
