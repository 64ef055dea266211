/*
Package usersdk is a Go client for the haulage users service.

SDKClient covers the public endpoints (register, login, refresh, health
and the JWKS). Login returns a Session, which carries the token pair and
refreshes it before the access token expires:

	client := usersdk.NewSDKClient("https://users.haulage.internal")

	session, err := client.Login(ctx, "dispatch01", password)
	if err != nil {
		var apiErr *usersdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == usersdk.ErrorCodeInvalidCredentials {
			// wrong username or password
		}
		return err
	}

	me, err := session.Me(ctx)

Admin sessions can manage accounts:

	page, err := session.ListUsers(ctx, usersdk.ListUsersOptions{Role: "driver", Size: 50})
	err = session.DeleteUser(ctx, 42)

Every failed call returns an *APIError, which matches the predefined
errors with errors.Is:

	if errors.Is(err, usersdk.ErrNotFound) { ... }

The same APIError values are what the server writes, so both sides agree
on status codes and error codes.
*/
package usersdk
