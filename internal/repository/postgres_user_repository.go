package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-shop-service/internal/domain"
)

const pgUniqueViolation = "23505"

// userColumns maps patch keys onto table columns; other keys land in attributes.
var userColumns = map[string]string{
	domain.FieldEmail:       "email",
	domain.FieldPassword:    "password",
	domain.FieldFirstName:   "first_name",
	domain.FieldLastName:    "last_name",
	domain.FieldPhoneNumber: "phone_number",
	domain.FieldAddress:     "address",
	domain.FieldIsDisabled:  "is_disabled",
	domain.FieldRole:        "role",
}

type postgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository returns a Postgres-backed implementation.
func NewPostgresUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresUserRepository{pool: pool}
}

func (r *postgresUserRepository) Insert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, password, first_name, last_name, phone_number, address, is_disabled, role, security_questions)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`

	questions, err := json.Marshal(nonNilQuestions(user.SelectedSecurityQuestions))
	if err != nil {
		return fmt.Errorf("encode security questions: %w", err)
	}

	id := domain.NewUserID()
	_, err = r.pool.Exec(ctx, query,
		id,
		user.Email,
		user.Password,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.Address,
		user.IsDisabled,
		string(user.Role),
		string(questions),
	)
	if err != nil {
		return translatePgError("insert user", err)
	}
	user.ID = id
	return nil
}

func (r *postgresUserRepository) List(ctx context.Context) ([]domain.UserSummary, error) {
	const query = `
        SELECT id, first_name, last_name, email, role
        FROM users ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UserSummary, 0)
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (r *postgresUserRepository) FindSummaryByID(ctx context.Context, id string) (*domain.UserSummary, error) {
	const query = `
        SELECT id, first_name, last_name, email, role
        FROM users WHERE id=$1`

	var s domain.UserSummary
	if err := r.pool.QueryRow(ctx, query, strings.ToLower(id)).Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &s, nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, password, first_name, last_name, phone_number, address, is_disabled, role, security_questions
        FROM users WHERE id=$1`

	var (
		user      domain.User
		questions []byte
	)
	if err := r.pool.QueryRow(ctx, query, strings.ToLower(id)).Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.FirstName,
		&user.LastName,
		&user.PhoneNumber,
		&user.Address,
		&user.IsDisabled,
		&user.Role,
		&questions,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &user.SelectedSecurityQuestions); err != nil {
			return nil, fmt.Errorf("decode security questions: %w", err)
		}
	}
	return &user, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) error {
	id = strings.ToLower(id)

	if len(patch) == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return nil
	}

	query, args, err := buildUpdate(id, patch)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return translatePgError("update user", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildUpdate(id string, patch domain.UserPatch) (string, []any, error) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	extra := map[string]any{}

	for _, key := range keys {
		val := patch[key]
		if col, ok := userColumns[key]; ok {
			args = append(args, val)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
			continue
		}
		if key == domain.FieldSelectedSecurityQuestions {
			raw, err := json.Marshal(val)
			if err != nil {
				return "", nil, fmt.Errorf("encode security questions: %w", err)
			}
			args = append(args, string(raw))
			sets = append(sets, fmt.Sprintf("security_questions = $%d::jsonb", len(args)))
			continue
		}
		extra[key] = val
	}

	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return "", nil, fmt.Errorf("encode attributes: %w", err)
		}
		args = append(args, string(raw))
		sets = append(sets, fmt.Sprintf("attributes = attributes || $%d::jsonb", len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id=$%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNilQuestions(q []domain.SecurityQuestion) []domain.SecurityQuestion {
	if q == nil {
		return []domain.SecurityQuestion{}
	}
	return q
}
