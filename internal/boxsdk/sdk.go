package boxsdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"

	"github.com/brandstaetter/brandybox/internal/version"
)

var userAgent = fmt.Sprintf("BrandyBox/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// BoxSDK is the client for the BrandyBox backend API.
// One instance is constructed per running sync loop and passed down explicitly.
type BoxSDK struct {
	client  *req.Client
	baseURL string
	Auth    *AuthAPI
	Files   *FilesAPI
}

// New creates a BoxSDK client for the given base URL.
func New(baseURL string) (*BoxSDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(userAgent).
		SetTimeout(60 * time.Second).
		SetCommonRetryCount(2).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetCommonErrorResult(&APIError{})

	return &BoxSDK{
		client:  client,
		baseURL: baseURL,
		Auth:    newAuthAPI(client),
		Files:   newFilesAPI(client),
	}, nil
}

// BaseURL returns the server URL this client talks to.
func (s *BoxSDK) BaseURL() string {
	return s.baseURL
}

// SetBaseURL repoints the client at a different server, e.g. when automatic
// URL resolution switches between the LAN and public endpoints.
func (s *BoxSDK) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
	s.client.SetBaseURL(baseURL)
}

// SetAccessToken sets or clears the bearer token used for API calls.
func (s *BoxSDK) SetAccessToken(token string) {
	s.client.SetCommonBearerAuthToken(token)
}

// Close cleans up idle connections.
func (s *BoxSDK) Close() {
	s.client.CloseIdleConnections()
}
