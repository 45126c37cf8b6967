package churchtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/domain"
)

// DefaultAjaxTTL is how long a successful AJAX response is served from
// cache before the instance is asked again.
const DefaultAjaxTTL = 2 * time.Hour

type ajaxEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Ajax fetches one legacy AJAX endpoint through the cache.
//
// The returned soft error is a user-facing string: set alongside data when
// the response is stale, set alone when nothing could be fetched. Data and
// soft error are never both empty.
//
// On an unsuccessful envelope the call is retried exactly once with a
// forced re-login, since the most common cause is an expired session.
func (c *Client) Ajax(ctx context.Context, login domain.LoginData, module, fn string, params map[string]string, ttl time.Duration) (json.RawMessage, string) {
	key := cache.Key(login, cache.Opts{Params: params}, module, fn)
	if ttl > 0 {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var envelope ajaxEnvelope
			if json.Unmarshal(raw, &envelope) == nil && envelope.Data != nil {
				return envelope.Data, ""
			}
		}
	}

	var envelope *ajaxEnvelope
	relogin := false
	for {
		cookies, err := c.Login(ctx, login, relogin)
		if err != nil {
			return nil, err.Error()
		}
		envelope, err = c.ajaxCall(ctx, login, cookies, module, fn, params)
		if err != nil {
			c.log.Warn("ajax call failed", "module", module, "func", fn, "err", err)
			return c.staleFallback(ctx, key)
		}
		if envelope.Status == "success" || relogin {
			break
		}
		relogin = true
	}

	if envelope.Status != "success" || envelope.Data == nil {
		if envelope.Message != "" {
			return nil, "Error: " + envelope.Message
		}
		return nil, fmt.Sprintf("Error: status %q", envelope.Status)
	}

	if raw, err := json.Marshal(envelope); err == nil {
		if err := c.cache.Set(ctx, key, raw, ttl); err != nil {
			c.log.Warn("caching ajax response failed", "key", key, "err", err)
		}
		c.cache.Set(ctx, key+"_latest", raw, 0)
		c.cache.Set(ctx, key+"_latest:time",
			[]byte(strconv.FormatInt(c.now().Unix(), 10)), 0)
	}
	return envelope.Data, ""
}

// staleFallback serves the last known good response when the instance is
// unreachable.
func (c *Client) staleFallback(ctx context.Context, key string) (json.RawMessage, string) {
	raw, err := c.cache.Get(ctx, key+"_latest")
	if err != nil {
		return nil, "Error: Server unavailable!"
	}
	var envelope ajaxEnvelope
	if json.Unmarshal(raw, &envelope) != nil || envelope.Data == nil {
		return nil, "Error: Server unavailable!"
	}
	when := "unbekannt"
	if rawTime, err := c.cache.Get(ctx, key+"_latest:time"); err == nil {
		if unix, err := strconv.ParseInt(string(rawTime), 10, 64); err == nil {
			when = time.Unix(unix, 0).Format("2006-01-02 15:04")
		}
	}
	return envelope.Data, fmt.Sprintf("Server unavailable. Data is from %s", when)
}

// ajaxCall posts one ?q=church<module>/ajax request.
func (c *Client) ajaxCall(ctx context.Context, login domain.LoginData, cookies map[string]string, module, fn string, params map[string]string) (*ajaxEnvelope, error) {
	form := url.Values{"func": {fn}}
	for _, k := range sortedParamKeys(params) {
		form.Set(k, params[k])
	}
	endpoint := ensureSlash(login.URL) + "?q=church" + module + "/ajax"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addCookies(req, cookies)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("church%s/%s: %w", module, fn, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("church%s/%s: read body: %w", module, fn, err)
	}

	var envelope ajaxEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("church%s/%s: decode: %w", module, fn, err)
	}
	return &envelope, nil
}

// apiGet wraps a REST API response in the same envelope shape the AJAX
// endpoints use. Non-200 responses are errors here; the API is only used
// for token handling where a body is useless.
func (c *Client) apiGet(ctx context.Context, login domain.LoginData, cookies map[string]string, path string) (json.RawMessage, error) {
	endpoint := ensureSlash(login.URL) + "api/" + path
	body, status, err := c.get(ctx, endpoint, cookies)
	if err != nil {
		return nil, fmt.Errorf("api %s: %w", path, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("api %s: status %d", path, status)
	}
	return json.RawMessage(body), nil
}

func sortedParamKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
