package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Credentials locates the files used to authenticate.
type Credentials struct {
	// CredentialsFile is either a service-account key or an OAuth client
	// secret downloaded from the Google Cloud console.
	CredentialsFile string
	// TokenFile holds a previously authorized user token. Ignored for
	// service accounts.
	TokenFile string
	// Subject is the user a service account impersonates (domain-wide
	// delegation). Optional.
	Subject string
}

// NewSession authenticates and returns a ready Session. No interactive
// consent flow is performed: user credentials need an existing token file.
func NewSession(ctx context.Context, creds Credentials, logger *slog.Logger) (*Session, error) {
	data, err := readJSONFile(creds.CredentialsFile)
	if err != nil {
		return nil, err
	}

	var src oauth2.TokenSource
	if isServiceAccount(data) {
		conf, err := google.JWTConfigFromJSON(data, calendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCredentials, creds.CredentialsFile, err)
		}
		conf.Subject = creds.Subject
		src = conf.TokenSource(ctx)
	} else {
		conf, err := google.ConfigFromJSON(data, calendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCredentials, creds.CredentialsFile, err)
		}
		tok, err := loadToken(creds.TokenFile)
		if err != nil {
			return nil, err
		}
		src = &savingTokenSource{
			base:   conf.TokenSource(ctx, tok),
			path:   creds.TokenFile,
			last:   tok.AccessToken,
			logger: logger.With("component", "calendar"),
		}
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fmt.Errorf("%w: creating service: %w", ErrCalendarAPI, err)
	}
	return NewSessionWithService(service), nil
}

// CheckCredentials verifies that the credential file, and the token file
// when one is needed, exist and contain valid JSON.
func CheckCredentials(creds Credentials) error {
	data, err := readJSONFile(creds.CredentialsFile)
	if err != nil {
		return err
	}
	if isServiceAccount(data) {
		return nil
	}
	_, err = readJSONFile(creds.TokenFile)
	return err
}

func readJSONFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file configured", ErrCredentials)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrCredentials, path)
	}
	return data, nil
}

func isServiceAccount(data []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Type == "service_account"
}

// storedToken accepts both the golang.org/x/oauth2 token layout and the
// google-auth layout ("token" instead of "access_token").
type storedToken struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := readJSONFile(path)
	if err != nil {
		return nil, err
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCredentials, path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if st.Expiry != "" {
		if exp, err := time.Parse(time.RFC3339Nano, st.Expiry); err == nil {
			tok.Expiry = exp
		}
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s holds neither an access nor a refresh token", ErrCredentials, path)
	}
	return tok, nil
}

// savingTokenSource writes refreshed tokens back to disk so the next run
// starts with a valid access token.
type savingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	data, err := json.Marshal(tok)
	if err == nil {
		err = os.WriteFile(s.path, data, 0o600)
	}
	if err != nil {
		s.logger.Warn("failed to save refreshed token", "path", s.path, "error", err)
	}
	return tok, nil
}
