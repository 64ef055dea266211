package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/store"
	"github.com/jmoiron/sqlx"
)

const userColumns = `u.id, u.username, u.email, u.full_name, u.password_hash, u.enabled, u.created_at, u.updated_at`

type userRow struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	PasswordHash string    `db:"password_hash"`
	Enabled      bool      `db:"enabled"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain(roles []string) domain.User {
	if roles == nil {
		roles = []string{}
	}
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		Enabled:      r.Enabled,
		Roles:        roles,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// usersRepo runs against either the pool or an open transaction.
type usersRepo struct {
	db sqlx.ExtContext
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = ?`, username)
}

func (r *usersRepo) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(query), arg); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	roles, err := r.rolesFor(ctx, row.ID)
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(roles[row.ID]), nil
}

func (r *usersRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, r.db.Rebind(`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`), id)
	return exists, err
}

func (r *usersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, r.db.Rebind(`SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`), username)
	return exists, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO users (username, email, full_name, password_hash, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		u.Username, u.Email, u.FullName, u.PasswordHash, u.Enabled, u.CreatedAt, u.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}

	if err := r.grantRoles(ctx, id, u.Roles); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET email = ?, full_name = ?, enabled = ?, updated_at = ?
		WHERE id = ?`),
		u.Email, u.FullName, u.Enabled, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return mustAffect(res)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		hash, at, id,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *usersRepo) SetUserRoles(ctx context.Context, id int64, roles []string) error {
	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_roles WHERE user_id = ?`), id); err != nil {
		return err
	}
	return r.grantRoles(ctx, id, roles)
}

func (r *usersRepo) grantRoles(ctx context.Context, id int64, roles []string) error {
	for _, name := range roles {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO user_roles (user_id, role_id)
			SELECT ?, r.id FROM roles r WHERE r.name = ?`),
			id, name,
		)
		if err != nil {
			return mapWriteError(err)
		}
		if err := mustAffect(res); err != nil {
			return err
		}
	}
	return nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *usersRepo) ListUsers(ctx context.Context, f store.ListUsersFilter) ([]domain.User, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UsernamePrefix != "" {
		where = append(where, `u.username LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(f.UsernamePrefix)+"%")
	}
	if f.Role != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = u.id AND r.name = ?)`)
		args = append(args, f.Role)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) FROM users u`+clause), args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users u` + clause + ` ORDER BY u.id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, 0, err
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	roles, err := r.rolesFor(ctx, ids...)
	if err != nil {
		return nil, 0, err
	}

	users := make([]domain.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain(roles[row.ID])
	}
	return users, total, nil
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return false, err
	}
	return count == 0, nil
}

// rolesFor loads role names for every id in one query.
func (r *usersRepo) rolesFor(ctx context.Context, ids ...int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT ur.user_id, r.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id IN (?)
		ORDER BY ur.user_id, r.name`, ids)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
