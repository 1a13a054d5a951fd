package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"esign-backend/internal/shared/apperr"
	sharedauth "esign-backend/internal/shared/auth"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/users"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	ErrBadCallback = apperr.New(apperr.KindValidation, "invalid_callback", "Missing state or code")
	ErrBadState    = apperr.New(apperr.KindAuthentication, "invalid_state", "Sign-in state is invalid or expired")
	ErrExchange    = apperr.New(apperr.KindAuthentication, "exchange_failed", "Could not complete Google sign-in")
)

// GoogleService runs the Google OAuth code flow and hands the UI a session
// token on its redirect URL.
type GoogleService struct {
	oauth      *oauth2.Config
	uiRedirect string
	states     *stateStore
	users      *users.Service
	profileURL string
}

// NewGoogleService builds a GoogleService. userSvc may be nil, in which case
// sign-ins are not recorded.
func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, userSvc *users.Service) *GoogleService {
	return &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		uiRedirect: uiRedirect,
		states:     newStateStore(),
		users:      userSvc,
		profileURL: googleUserInfoURL,
	}
}

func (s *GoogleService) configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != "" && s.oauth.RedirectURL != "" && s.uiRedirect != ""
}

func notConfigured(c *gin.Context) {
	respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Google sign-in is not configured", nil)
}

// RegisterRoutes mounts /auth/google/start and /auth/google/callback.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		notConfigured(c)
		return
	}
	state := uuid.NewString()
	s.states.put(state)
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	if !s.configured() {
		notConfigured(c)
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Fail(c, ErrBadCallback)
		return
	}
	if !s.states.consume(state) {
		respond.Fail(c, ErrBadState)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google.exchange_failed", map[string]any{"error": err})
		respond.Fail(c, ErrExchange)
		return
	}
	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadGateway, "profile_unavailable", "Could not read Google profile", nil)
		return
	}

	session, err := s.signIn(ctx, profile)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	target, err := appendToken(s.uiRedirect, session)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// signIn records the user and returns a session JWT whose subject is the
// provider-scoped user id.
func (s *GoogleService) signIn(ctx context.Context, p googleProfile) (string, error) {
	userID := "google:" + p.Subject
	if s.users != nil {
		if _, err := s.users.UpsertFromAuth(ctx, users.User{
			ID:         userID,
			Email:      p.Email,
			Name:       p.Name,
			PictureURL: p.Picture,
			Provider:   users.ProviderGoogle,
		}); err != nil {
			telemetry.Warn("auth.google.upsert_failed", map[string]any{"user_id": userID, "error": err})
		}
	}
	telemetry.Info("auth.google.signed_in", map[string]any{"user_id": userID})
	return issueSession(userID, p.Email, p.Name, p.Picture)
}

func issueSession(userID, email, name, picture string) (string, error) {
	return sharedauth.SignJWT(sharedauth.Claims{
		Email:            strings.ToLower(strings.TrimSpace(email)),
		Name:             name,
		Picture:          picture,
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: userID},
	})
}

type googleProfile struct {
	Subject string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchProfile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	resp, err := s.oauth.Client(ctx, token).Get(s.profileURL)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	// v2 userinfo reports "id"; the OIDC endpoint reports "sub".
	if p.Subject == "" {
		p.Subject = p.ID
	}
	if p.Subject == "" {
		return googleProfile{}, errors.New("userinfo has no subject")
	}
	return p, nil
}

const stateTTL = 5 * time.Minute

// stateStore holds one-shot OAuth state values.
type stateStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time), now: time.Now}
}

func (s *stateStore) put(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.items {
		if now.After(exp) {
			delete(s.items, k)
		}
	}
	s.items[state] = now.Add(stateTTL)
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[state]
	delete(s.items, state)
	return ok && !s.now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
