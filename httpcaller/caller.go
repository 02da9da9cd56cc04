// Package httpcaller implements the HTTP Caller (C2): it materializes an
// ApiConfig plus a bound input value into one or more HTTP requests,
// applies pagination, and decodes the response. Grounded on the teacher's
// plugins/http/plugin.go, which configures a resty.Client the same way
// (timeout/retry count/retry wait from a defaults-tagged Config); this
// Caller applies those same options per request rather than on the
// shared client, since its one Caller is driven concurrently by the
// Step Runner's LOOP worker pool.
package httpcaller

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"

	"apiflow/engine"
)

// Credentials carries the secret material an ApiConfig's Authentication
// mode consumes. Reserved keys: "value" (the secret itself), "headerName"
// (defaults to "Authorization" for AuthHeader), "queryParam" (defaults to
// "api_key" for AuthQueryParam), "token" (bearer token for AuthOAuth2,
// acquired out of band by the caller).
type Credentials = map[string]any

// Caller executes ApiConfig requests over a shared resty.Client.
type Caller struct {
	client *resty.Client
	cache  *ResponseCache
}

func New(cache *ResponseCache) *Caller {
	client := resty.New()
	return &Caller{client: client, cache: cache}
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// substitute replaces {name} placeholders in s using vars, returning a
// BindingError naming the first missing placeholder.
func substitute(s string, vars map[string]any) (string, error) {
	var missing string
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := lookupVar(vars, name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return fmt.Sprintf("%v", v)
	})
	if missing != "" {
		return "", engine.NewError(engine.KindBinding, "", "missing placeholder {%s}", missing)
	}
	return result, nil
}

// lookupVar resolves a dotted path (e.g. "user.id") against vars, falling
// back to a flat key lookup for names with no dots.
func lookupVar(vars map[string]any, name string) (any, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	var cur any = vars
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func bindingVars(input any, credentials Credentials) map[string]any {
	vars := make(map[string]any)
	if m, ok := input.(map[string]any); ok {
		for k, v := range m {
			vars[k] = v
		}
	} else if input != nil {
		vars["value"] = input
	}
	for k, v := range credentials {
		vars[k] = v
	}
	return vars
}

// Call materializes cfg + input into one or more HTTP requests (applying
// pagination when configured) and returns the decoded, concatenated
// payload, per spec.md §4.2.
func (c *Caller) Call(ctx context.Context, cfg engine.ApiConfig, input any, credentials Credentials, tenantID string, cacheMode engine.CacheMode) (engine.CallResult, error) {
	vars := bindingVars(input, credentials)

	host, err := substitute(cfg.URLHost, vars)
	if err != nil {
		return engine.CallResult{}, err
	}
	path, err := substitute(cfg.URLPath, vars)
	if err != nil {
		return engine.CallResult{}, err
	}
	url := host + path

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		sv, err := substitute(v, vars)
		if err != nil {
			return engine.CallResult{}, err
		}
		headers[k] = sv
	}

	query := make(map[string]string, len(cfg.QueryParams))
	for k, v := range cfg.QueryParams {
		sv, err := substitute(fmt.Sprintf("%v", v), vars)
		if err != nil {
			return engine.CallResult{}, err
		}
		query[k] = sv
	}

	body := ""
	if cfg.Body != "" {
		body, err = substitute(cfg.Body, vars)
		if err != nil {
			return engine.CallResult{}, err
		}
	}

	// Fingerprint the request before auth injection so credential values
	// never influence the cache key, per spec.md §9.
	fp := Fingerprint(tenantID, string(cfg.Method), url, headers, query, body)

	if err := applyAuth(cfg, credentials, headers, query); err != nil {
		return engine.CallResult{}, err
	}

	pag := cfg.Pagination
	if pag == nil || pag.Type == engine.PaginationDisabled {
		return c.doSingleCached(ctx, cfg, url, string(cfg.Method), headers, query, body, fp, cacheMode)
	}
	return c.doPaginated(ctx, cfg, url, string(cfg.Method), headers, query, body, fp, cacheMode)
}

func applyAuth(cfg engine.ApiConfig, credentials Credentials, headers map[string]string, query map[string]string) error {
	switch cfg.Authentication {
	case engine.AuthNone, "":
		return nil
	case engine.AuthHeader:
		value, ok := credentials["value"]
		if !ok {
			return engine.NewError(engine.KindAuth, "", "HEADER authentication requires a credentials value")
		}
		name, _ := credentials["headerName"].(string)
		if name == "" {
			name = "Authorization"
		}
		headers[name] = fmt.Sprintf("%v", value)
		return nil
	case engine.AuthQueryParam:
		value, ok := credentials["value"]
		if !ok {
			return engine.NewError(engine.KindAuth, "", "QUERY_PARAM authentication requires a credentials value")
		}
		name, _ := credentials["queryParam"].(string)
		if name == "" {
			name = "api_key"
		}
		query[name] = fmt.Sprintf("%v", value)
		return nil
	case engine.AuthOAuth2:
		token, ok := credentials["token"]
		if !ok {
			return engine.NewError(engine.KindAuth, "", "OAUTH2 authentication requires a pre-acquired token in credentials")
		}
		headers["Authorization"] = "Bearer " + fmt.Sprintf("%v", token)
		return nil
	default:
		return engine.NewError(engine.KindValidation, "", "unknown authentication mode %q", cfg.Authentication)
	}
}

// doSingleCached executes a single (non-paginated) request, consulting the
// response cache under fp — a fingerprint computed by the caller from
// pre-auth headers/query so credential values never influence the cache
// key (spec.md §9).
func (c *Caller) doSingleCached(ctx context.Context, cfg engine.ApiConfig, url, method string, headers map[string]string, query map[string]string, body, fp string, cacheMode engine.CacheMode) (engine.CallResult, error) {
	if c.cache != nil && (cacheMode == engine.CacheEnabled || cacheMode == engine.CacheReadonly) {
		if cached, ok := c.cache.Get(fp); ok {
			return engine.CallResult{Data: cached, PagesFetched: 0, LastStatus: 200}, nil
		}
	}

	data, status, err := c.doRequest(ctx, cfg, url, method, headers, query, body)
	if err != nil {
		return engine.CallResult{}, err
	}

	if c.cache != nil && (cacheMode == engine.CacheEnabled || cacheMode == engine.CacheWriteonly) {
		c.cache.Put(fp, data)
	}

	return engine.CallResult{Data: data, PagesFetched: 1, LastStatus: status}, nil
}

// doRequest executes a single HTTP call, applying retries/timeout from
// cfg, decoding the response by content-type, and descending into
// cfg.DataPath if set.
//
// Timeout and retry are applied per request rather than by mutating the
// shared resty.Client's global Timeout/RetryCount/RetryWaitTime:
// concurrent LOOP iterations (engine's step_runner.go runLoop) drive many
// requests through this one Caller at once via a bounded worker pool, and
// those fields are shared client state with no synchronization. Timeout
// rides the per-request context instead; retry is a small hand-rolled
// backoff loop around a single Execute call rather than
// Client.AddRetryCondition, which would otherwise accumulate one more
// closure on the shared client per call for the lifetime of the process.
func (c *Caller) doRequest(ctx context.Context, cfg engine.ApiConfig, url, method string, headers map[string]string, query map[string]string, body string) (any, int, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryWait := time.Duration(cfg.RetryDelayMS) * time.Millisecond
	if retryWait <= 0 {
		retryWait = 200 * time.Millisecond
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	var resp *resty.Response
	var execErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, engine.WrapError(engine.KindTimeout, "", ctx.Err())
			case <-time.After(retryWait):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req := c.client.R().
			SetContext(reqCtx).
			SetHeaders(headers).
			SetQueryParams(query)
		if body != "" {
			req.SetBody(body)
		}

		resp, execErr = req.Execute(method, url)
		cancel()

		if execErr == nil && resp.StatusCode() < 500 {
			break
		}
	}

	if execErr != nil {
		return nil, 0, engine.WrapError(engine.KindNetwork, "", execErr)
	}

	if resp.StatusCode() >= 400 {
		snippet := string(resp.Body())
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, resp.StatusCode(), engine.NewError(engine.KindHTTP, "", "status %d: %s", resp.StatusCode(), snippet)
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, resp.StatusCode(), err
	}

	if cfg.DataPath != "" {
		decoded, err = descend(decoded, cfg.DataPath)
		if err != nil {
			return nil, resp.StatusCode(), err
		}
	}

	return decoded, resp.StatusCode(), nil
}

func decodeBody(resp *resty.Response) (any, error) {
	contentType := resp.Header().Get("Content-Type")
	raw := resp.Body()
	if len(raw) == 0 {
		return nil, nil
	}
	if strings.Contains(contentType, "json") || json.Valid(raw) {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, engine.WrapError(engine.KindDecode, "", err)
		}
		return parsed, nil
	}
	return string(raw), nil
}

// descend walks a dot-separated path into a decoded JSON payload using
// gabs, the dynamic-JSON-tree library the teacher's go.mod carries but
// never wires past general utility use.
func descend(decoded any, dataPath string) (any, error) {
	raw, err := json.Marshal(decoded)
	if err != nil {
		return nil, engine.WrapError(engine.KindDecode, "", err)
	}
	container, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, engine.WrapError(engine.KindDecode, "", err)
	}
	node := container.Path(dataPath)
	if node == nil {
		return nil, engine.NewError(engine.KindDecode, "", "dataPath %q not found in response", dataPath)
	}
	return node.Data(), nil
}

func toSlice(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	if v == nil {
		return nil
	}
	return []any{v}
}
