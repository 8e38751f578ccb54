package boxsdk

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is returned by both login and refresh. The refresh token rotates
// on every refresh and must be persisted by the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type User struct {
	Email             string `json:"email"`
	StorageLimitBytes int64  `json:"storage_limit_bytes,omitempty"`
}
