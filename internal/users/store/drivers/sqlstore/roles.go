package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/jmoiron/sqlx"
)

type roleRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

type rolesRepo struct {
	db sqlx.ExtContext
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	var row roleRow
	err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(`SELECT id, name, description FROM roles WHERE name = ?`), name)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return domain.Role(row), nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	var rows []roleRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT id, name, description FROM roles ORDER BY name`); err != nil {
		return nil, err
	}
	roles := make([]domain.Role, len(rows))
	for i, row := range rows {
		roles[i] = domain.Role(row)
	}
	return roles, nil
}
