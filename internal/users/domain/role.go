package domain

// Built-in role names. Migrations seed exactly these.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleDriver     = "driver"
	RoleUser       = "user"
)

type Role struct {
	ID          int64
	Name        string
	Description string
}
