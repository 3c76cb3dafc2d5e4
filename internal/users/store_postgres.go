package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"usersvc/internal/database"
)

const (
	emailConstraint = "users_email_key"

	userColumns = `id, first_name, last_name, age, email, password_hash, created_at, updated_at`

	insertUserQuery = `
		INSERT INTO users (id, first_name, last_name, age, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	selectUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	selectUserByIDQuery    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	listUsersQuery         = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	deleteUserQuery        = `DELETE FROM users WHERE id = $1`
)

// PostgresStore is a Store backed by PostgreSQL
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a PostgresStore over db
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, insertUserQuery,
		uuid.New().String(), u.FirstName, u.LastName, u.Age, u.Email, u.PasswordHash, now, now)

	created, err := scanUser(row)
	if err != nil {
		if database.IsUniqueViolation(err, emailConstraint) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, selectUserByEmailQuery, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, selectUserByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) (*User, error) {
	if upd.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	// Build dynamic update query based on provided fields
	fields := []string{}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(fields, ", "), len(args), userColumns)

	u, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, deleteUserQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Age, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
