package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/go-resty/resty/v2"
)

var ErrUnauthorized = errors.New("not signed in")

// APIError is an error body returned by the relay's HTTP API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      domain.Account `json:"user"`
}

// APIClient talks to the relay's REST endpoints.
type APIClient struct {
	base string
	http *resty.Client
}

func NewAPIClient(base, token string) *APIClient {
	base = strings.TrimRight(base, "/")
	c := resty.New().
		SetBaseURL(base).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &APIClient{base: base, http: c}
}

func (a *APIClient) SetToken(token string) {
	a.http.SetAuthToken(token)
}

// SignalURL is the WebSocket endpoint of the relay.
func (a *APIClient) SignalURL() (string, error) {
	u, err := url.Parse(a.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/signal"
	return u.String(), nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, _ := resp.Error().(*APIError)
	if apiErr == nil {
		apiErr = &APIError{}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	apiErr.Status = resp.StatusCode()
	if apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	}
	return apiErr
}

func (a *APIClient) r(ctx context.Context) *resty.Request {
	return a.http.R().SetContext(ctx).SetError(&APIError{})
}

func (a *APIClient) SignUp(ctx context.Context, email, password, username string) (*domain.Account, error) {
	var out domain.Account
	err := check(a.r(ctx).
		SetBody(map[string]string{"email": email, "password": password, "username": username}).
		SetResult(&out).
		Post("/api/auth/signup"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *APIClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := check(a.r(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/api/auth/login"))
	if err != nil {
		return nil, err
	}
	a.SetToken(out.Token)
	return &out, nil
}

func (a *APIClient) Session(ctx context.Context) (*domain.Account, error) {
	var out domain.Account
	if err := check(a.r(ctx).SetResult(&out).Get("/api/auth/session")); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *APIClient) Logout(ctx context.Context) error {
	return check(a.r(ctx).Post("/api/auth/logout"))
}

func (a *APIClient) Channels(ctx context.Context) ([]domain.Channel, error) {
	var out struct {
		Channels []domain.Channel `json:"channels"`
	}
	if err := check(a.r(ctx).SetResult(&out).Get("/api/channels")); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func (a *APIClient) CreateChannel(ctx context.Context, name string) (*domain.Channel, error) {
	var out domain.Channel
	err := check(a.r(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(&out).
		Post("/api/channels"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *APIClient) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	return check(a.r(ctx).SetPathParam("id", string(id)).Delete("/api/channels/{id}"))
}

func (a *APIClient) Members(ctx context.Context, id domain.ChannelID) ([]protocol.User, error) {
	var out struct {
		Users []protocol.User `json:"users"`
	}
	if err := check(a.r(ctx).SetPathParam("id", string(id)).SetResult(&out).Get("/api/channels/{id}/members")); err != nil {
		return nil, err
	}
	return out.Users, nil
}
