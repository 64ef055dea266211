package domain

// LoginResult is the outcome of a login attempt. A failed attempt is not an
// error: Tokens is empty and Identity is nil, and the caller cannot tell a
// wrong password from an unknown user.
type LoginResult struct {
	Tokens   TokenPair
	Identity *Identity
}

// OK reports whether the login succeeded.
func (r LoginResult) OK() bool {
	return r.Identity != nil
}
