package user

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/examhall/internal/apperr"
	"github.com/mind-engage/examhall/internal/db"
	"github.com/mind-engage/examhall/internal/rbac"
)

type Store interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role rbac.Role) (int, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

const userCols = `id, username, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

func (s *SQLStore) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), u.IsActive, u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("username or email already registered")
	}
	return err
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getWhere(ctx, `id=$1`, id)
}

func (s *SQLStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.getWhere(ctx, `username=$1`, username)
}

func (s *SQLStore) getWhere(ctx context.Context, where string, arg any) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg)
	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	return u, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]User, error) {
	q := `SELECT ` + userCols + ` FROM users`
	var (
		conds []string
		args  []any
	)
	if opts.Role != "" {
		args = append(args, string(opts.Role))
		conds = append(conds, `role=`+placeholder(len(args)))
	}
	if opts.Search != "" {
		args = append(args, "%"+strings.ToLower(opts.Search)+"%")
		ph := placeholder(len(args))
		conds = append(conds, `(LOWER(username) LIKE `+ph+` OR LOWER(email) LIKE `+ph+
			` OR LOWER(first_name) LIKE `+ph+` OR LOWER(last_name) LIKE `+ph+`)`)
	}
	for i, c := range conds {
		if i == 0 {
			q += ` WHERE ` + c
		} else {
			q += ` AND ` + c
		}
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username=$1, email=$2, password_hash=$3, first_name=$4,
		 last_name=$5, role=$6, is_active=$7, updated_at=$8 WHERE id=$9`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), u.IsActive, time.Now().Unix(), u.ID)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("username or email already registered")
	}
	if err != nil {
		return err
	}
	return requireRow(res, "user not found")
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "user not found")
}

func (s *SQLStore) CountByRole(ctx context.Context, role rbac.Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role=$1`, string(role)).Scan(&n)
	return n, err
}

func scanUser(scan func(...any) error) (User, error) {
	var (
		u                    User
		role                 string
		createdAt, updatedAt int64
	)
	if err := scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &role, &u.IsActive, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return u, nil
}

func placeholder(n int) string { return "$" + strconv.Itoa(n) }

func requireRow(res sql.Result, notFoundMsg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(notFoundMsg)
	}
	return nil
}
