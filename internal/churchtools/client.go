// Package churchtools talks to a ChurchTools instance the way its web UI
// does: cookie sessions, the legacy AJAX endpoints and the REST API for
// token handling. Responses are cached so one instance serves many chats.
package churchtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/domain"
)

// expiredLinkMarker is the phrase the instance renders when a login link
// has been superseded. There is no structured signal for this case.
const expiredLinkMarker = "Der verwendete Login-Link ist nicht mehr aktuell und kann deshalb nicht mehr verwendet werden."

// HTTPDoer is the transport; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LoginError is a login failure with a message meant for the chat user.
type LoginError struct {
	// Message is user-facing, in German like the rest of the chat surface.
	Message string

	// ExpiredLink means the stored login is permanently dead and the
	// caller should drop the session.
	ExpiredLink bool
}

func (e *LoginError) Error() string { return e.Message }

// Client is one shared ChurchTools gateway. It is stateless per request;
// per-user session cookies live in the cache.
type Client struct {
	http  HTTPDoer
	cache cache.Cache
	log   *slog.Logger
	now   func() time.Time
}

func NewClient(doer HTTPDoer, c cache.Cache, log *slog.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{http: doer, cache: c, log: log, now: time.Now}
}

// Login returns valid session cookies for the user, reusing cached ones
// when the instance still accepts them. force skips the reuse check and
// builds a fresh session from the stored login key or the login token.
func (c *Client) Login(ctx context.Context, login domain.LoginData, force bool) (map[string]string, error) {
	cookieKey := cache.Key(login, cache.Opts{UsePerson: true}, "login_cookies")
	log := c.log.With("person", login.PersonID, "request", uuid.NewString())

	if !force {
		if cookies, ok := c.cachedCookies(ctx, cookieKey); ok && c.cookiesAlive(ctx, login, cookies) {
			return cookies, nil
		}
	}
	log.Info("session cookie invalid, logging in again")

	tokenKey := cache.Key(login, cache.Opts{UsePerson: true}, "login_token")
	loginKey, haveKey := c.cachedString(ctx, tokenKey)

	cookies, err := c.freshCookies(ctx, login)
	if err != nil {
		return nil, &LoginError{Message: "Could not renew token:\n" + err.Error()}
	}

	if !haveKey {
		log.Info("requesting new login key")
		return c.loginWithToken(ctx, login, cookies, cookieKey, tokenKey)
	}

	// Renew the session with the stored permanent login key.
	path := fmt.Sprintf("whoami?login_token=%s&user_id=%s", url.QueryEscape(loginKey), url.QueryEscape(login.PersonID))
	if _, err := c.apiGet(ctx, login, cookies, path); err != nil {
		log.Warn("login key renewal failed", "err", err)
		return nil, &LoginError{Message: "Login fehlgeschlagen, bitte log dich neu ein."}
	}
	c.storeCookies(ctx, cookieKey, cookies)
	return cookies, nil
}

// loginWithToken exchanges the one-time login token from the QR payload
// for a permanent login key.
func (c *Client) loginWithToken(ctx context.Context, login domain.LoginData, cookies map[string]string, cookieKey, tokenKey string) (map[string]string, error) {
	loginURL := fmt.Sprintf("%s?loginstr=%s&id=%s",
		ensureSlash(login.URL), url.QueryEscape(login.Token), url.QueryEscape(login.PersonID))
	body, _, err := c.get(ctx, loginURL, cookies)
	if err != nil {
		return nil, &LoginError{Message: "Could not renew token:\n" + err.Error()}
	}
	if strings.Contains(string(body), expiredLinkMarker) {
		return nil, &LoginError{
			Message:     "Login fehlgeschlagen, versuchs es mit einem neuen QR-Code.",
			ExpiredLink: true,
		}
	}

	data, err := c.apiGet(ctx, login, cookies, "persons/"+url.PathEscape(login.PersonID)+"/logintoken")
	if err != nil {
		return nil, &LoginError{Message: "Login fehlgeschlagen, bitte log dich neu ein."}
	}
	var tokenResp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(data, &tokenResp); err != nil || tokenResp.Data == "" {
		return nil, &LoginError{Message: "Login fehlgeschlagen, bitte log dich neu ein."}
	}

	if raw, err := json.Marshal(tokenResp.Data); err == nil {
		if err := c.cache.Set(ctx, tokenKey, raw, 0); err != nil {
			c.log.Warn("storing login key failed", "err", err)
		}
	}
	c.storeCookies(ctx, cookieKey, cookies)
	return cookies, nil
}

// cookiesAlive asks the instance whether the session still belongs to a
// real user. A userid of -1 is the anonymous session.
func (c *Client) cookiesAlive(ctx context.Context, login domain.LoginData, cookies map[string]string) bool {
	resp, err := c.ajaxCall(ctx, login, cookies, "resource", "pollForNews", nil)
	if err != nil || resp.Status != "success" {
		return false
	}
	var news struct {
		UserID json.Number `json:"userid"`
	}
	if err := json.Unmarshal(resp.Data, &news); err != nil {
		return false
	}
	return news.UserID.String() != "" && news.UserID.String() != "-1"
}

// freshCookies performs the HEAD request that hands out an anonymous
// session cookie.
func (c *Client) freshCookies(ctx context.Context, login domain.LoginData) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, login.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	cookies := make(map[string]string)
	for _, cookie := range resp.Cookies() {
		cookies[cookie.Name] = cookie.Value
	}
	return cookies, nil
}

func (c *Client) cachedCookies(ctx context.Context, key string) (map[string]string, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var cookies map[string]string
	if err := json.Unmarshal(raw, &cookies); err != nil || len(cookies) == 0 {
		return nil, false
	}
	return cookies, true
}

func (c *Client) cachedString(ctx context.Context, key string) (string, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *Client) storeCookies(ctx context.Context, key string, cookies map[string]string) {
	raw, err := json.Marshal(cookies)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, 0); err != nil {
		c.log.Warn("storing session cookies failed", "err", err)
	}
}

func (c *Client) get(ctx context.Context, rawURL string, cookies map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	addCookies(req, cookies)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func addCookies(req *http.Request, cookies map[string]string) {
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func ensureSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}
