package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shenikar/municipal_incidents/internal/models"
	"github.com/shenikar/municipal_incidents/internal/service"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) service.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT id, name, role FROM users WHERE id = ?`, id).Scan(&user.ID, &user.Name, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %d: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	user.Role = models.Role(role)
	return user, nil
}
