package portsession

import (
	"context"
	"net/url"
)

// Query parameters the backend appends to the redirect return URL.
const (
	redirectTokenParam = "token"
	redirectErrorParam = "error"
)

// AuthorizationURL returns the backend-hosted Google authorization URL the
// application navigates to for the server-side redirect flow.
func AuthorizationURL(apiBaseURL string) string {
	base, err := url.Parse(apiBaseURL)
	if err != nil {
		return apiBaseURL + "/oauth2/authorization/google"
	}
	base.Path = "/oauth2/authorization/google"
	base.RawQuery = ""
	return base.String()
}

// ConsumeRedirect inspects an application entry URL for the token or error
// the redirect flow appended. When a token is present the user profile is
// fetched with it and the session installed via SetAuthenticated; the
// parameter is stripped from the returned URL so the credential never
// lingers in history. A provider error parameter is stripped likewise and
// surfaced as a Provider-kind error.
//
// consumed is false when the URL carries neither parameter, leaving the URL
// untouched for normal navigation.
func ConsumeRedirect(ctx context.Context, store *SessionStore, rawURL string) (cleanURL string, consumed bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return rawURL, false, nil
	}

	q := u.Query()
	token := q.Get(redirectTokenParam)
	providerErr := q.Get(redirectErrorParam)
	if token == "" && providerErr == "" {
		return rawURL, false, nil
	}

	q.Del(redirectTokenParam)
	q.Del(redirectErrorParam)
	u.RawQuery = q.Encode()
	cleanURL = u.String()

	if providerErr != "" {
		return cleanURL, true, NewAuthError(KindProvider, 0, providerErr)
	}

	user, err := store.api.GetProfile(ctx, token)
	if err != nil {
		return cleanURL, true, err
	}
	if err := store.SetAuthenticated(token, user); err != nil {
		return cleanURL, true, err
	}
	return cleanURL, true, nil
}
