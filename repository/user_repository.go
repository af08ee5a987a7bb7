package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"EmberFM/core/fault"
	"EmberFM/model"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateUser is returned when a signup collides with an existing email.
var ErrDuplicateUser = errors.New("user with this email already exists")

// UserRepository defines the interface for credential data operations.
// It belongs to the identity gateway, not the profile store.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

// CreateUser adds a new credential record.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := "INSERT INTO users (id, email, display_name, password_hash) VALUES (?, ?, ?, ?)"
	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to prepare create user statement: %w", err))
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1062 { // duplicate entry
			return ErrDuplicateUser
		}
		return fault.ClassifyMySQL(fmt.Errorf("failed to execute create user statement: %w", err))
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *mysqlUserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := "SELECT id, email, display_name, password_hash, created_at, updated_at FROM users WHERE id = ?"
	row := r.db.QueryRowContext(ctx, query, id)
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to scan user row for ID %s: %w", id, err))
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *mysqlUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := "SELECT id, email, display_name, password_hash, created_at, updated_at FROM users WHERE email = ?"
	row := r.db.QueryRowContext(ctx, query, email)
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to scan user row for email %s: %w", email, err))
	}
	return user, nil
}
