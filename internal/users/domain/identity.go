package domain

// Identity is who a request acts as. It is built either from a stored User
// or straight from the claims of a verified token.
type Identity struct {
	ID       int64
	Username string
	Roles    []string
}

// Credential is a username/password pair presented at login.
type Credential struct {
	Username string
	Password string
}
