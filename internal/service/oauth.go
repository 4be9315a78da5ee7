package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/util"
)

const githubUserAPIURL = "https://api.github.com/user"

// GitHubConfig configures the GitHub OAuth provider. AuthURL, TokenURL
// and UserAPIURL default to the real GitHub endpoints and exist so tests
// can point the flow at an httptest server.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL    string
	TokenURL   string
	UserAPIURL string
}

// OAuthService drives the GitHub authorization-code flow: a pending
// session carrying the state parameter, the code exchange, and the
// promotion of the pending session to a logged-in one.
type OAuthService struct {
	sessions   *SessionStore
	conf       *oauth2.Config
	userAPIURL string
	httpClient *http.Client
	pendingTTL time.Duration
	sessionTTL time.Duration
}

func NewOAuthService(sessions *SessionStore, cfg GitHubConfig, httpClient *http.Client, pendingTTL, sessionTTL time.Duration) *OAuthService {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userAPIURL := cfg.UserAPIURL
	if userAPIURL == "" {
		userAPIURL = githubUserAPIURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OAuthService{
		sessions: sessions,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		userAPIURL: userAPIURL,
		httpClient: httpClient,
		pendingTTL: pendingTTL,
		sessionTTL: sessionTTL,
	}
}

// BeginLogin creates a short-lived pending session holding a fresh state
// value and returns the provider authorization URL along with the signed
// cookie value for the pending session.
func (s *OAuthService) BeginLogin(ctx context.Context) (authURL, cookieValue string, err error) {
	state, err := util.GenerateToken()
	if err != nil {
		return "", "", apperrors.Internal("failed to generate state").WithCause(err)
	}

	_, cookieValue, err = s.sessions.Create(ctx, &model.SessionData{State: state}, s.pendingTTL)
	if err != nil {
		return "", "", apperrors.Unavailable("session store unavailable").WithCause(err)
	}

	return s.conf.AuthCodeURL(state), cookieValue, nil
}

// CompleteLogin validates the callback against the pending session,
// exchanges the code, fetches the GitHub profile and upgrades the
// session in place. It returns the user and the signed cookie value for
// the now full-TTL session.
func (s *OAuthService) CompleteLogin(ctx context.Context, sess *model.Session, state, code string) (*model.User, string, error) {
	if sess == nil || sess.Data.State == "" || sess.Data.State != state {
		return nil, "", apperrors.StateMismatch()
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperrors.Provider("token exchange failed").WithCause(err)
	}

	user, err := s.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, "", err
	}

	cookieValue, err := s.sessions.Update(ctx, sess.ID, &model.SessionData{
		User:        user,
		AccessToken: token.AccessToken,
		LoggedInAt:  time.Now().UnixMilli(),
	}, s.sessionTTL)
	if err != nil {
		return nil, "", apperrors.Unavailable("session store unavailable").WithCause(err)
	}

	return user, cookieValue, nil
}

// Logout destroys the server-side session. The cookie is cleared by the
// handler.
func (s *OAuthService) Logout(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		return nil
	}
	return s.sessions.Destroy(ctx, sess.ID)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (s *OAuthService) fetchUser(ctx context.Context, accessToken string) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userAPIURL, nil)
	if err != nil {
		return nil, apperrors.Internal("failed to create user request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "todoshare-server")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Provider("user fetch failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Provider("failed to read user response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Provider(fmt.Sprintf("user fetch returned status %d", resp.StatusCode))
	}

	var gh githubUser
	if err := json.Unmarshal(body, &gh); err != nil {
		return nil, apperrors.Provider("failed to parse user response").WithCause(err)
	}
	if gh.Login == "" {
		return nil, apperrors.Provider("user response missing login")
	}

	return &model.User{
		ID:        gh.ID,
		Login:     gh.Login,
		Name:      gh.Name,
		Email:     gh.Email,
		AvatarURL: gh.AvatarURL,
	}, nil
}
