package boxsdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	authLogin   = "/api/auth/login"
	authRefresh = "/api/auth/refresh"
	usersMe     = "/api/users/me"
)

type AuthAPI struct {
	client *req.Client
}

func newAuthAPI(client *req.Client) *AuthAPI {
	return &AuthAPI{client: client}
}

// Login exchanges email+password for a token pair.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (tokens *TokenPair, err error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(&LoginRequest{Email: email, Password: password}).
		SetSuccessResult(&tokens).
		Post(authLogin)

	if err := handleAPIError(resp, err, "auth login"); err != nil {
		return nil, err
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (tokens *TokenPair, err error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(&RefreshRequest{RefreshToken: refreshToken}).
		SetSuccessResult(&tokens).
		Post(authRefresh)

	if err := handleAPIError(resp, err, "auth refresh"); err != nil {
		return nil, err
	}

	return tokens, nil
}

// Me returns the authenticated user.
func (a *AuthAPI) Me(ctx context.Context) (user *User, err error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetSuccessResult(&user).
		Get(usersMe)

	if err := handleAPIError(resp, err, "users me"); err != nil {
		return nil, err
	}

	return user, nil
}
