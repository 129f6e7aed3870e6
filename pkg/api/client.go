// pkg/api/client.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/lumix-ai/hopfield/internal/core"
)

const defaultClientTimeout = 10 * time.Second

// Client - talks to a remote Server
type Client struct {
	baseURL string
	hc      *fasthttp.Client
}

// RemoteError - non-2xx answer from the server
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %d %s: %s", e.Status, e.Code, e.Message)
}

// RecallResponse - decoded /v1/recall answer
type RecallResponse struct {
	Pattern   core.Pattern
	History   []core.Pattern
	Sweeps    int
	Converged bool
	Energy    float64
}

// PatternInfo - one row of /v1/patterns
type PatternInfo struct {
	ID      int64
	Name    string
	Pattern core.Pattern
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc: &fasthttp.Client{
			Name:         "hopfield-client",
			ReadTimeout:  defaultClientTimeout,
			WriteTimeout: defaultClientTimeout,
		},
	}
}

func (c *Client) Recall(ctx context.Context, probe core.Pattern, maxIterations int) (*RecallResponse, error) {
	body, err := c.do(ctx, fasthttp.MethodPost, "/v1/recall", recallRequest{Pattern: probe, MaxIterations: &maxIterations})
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	out := &RecallResponse{
		Pattern:   toPattern(res.Get("pattern")),
		Sweeps:    int(res.Get("sweeps").Int()),
		Converged: res.Get("converged").Bool(),
		Energy:    res.Get("energy").Float(),
	}
	for _, h := range res.Get("history").Array() {
		out.History = append(out.History, toPattern(h))
	}
	return out, nil
}

func (c *Client) Energy(ctx context.Context, p core.Pattern) (float64, error) {
	body, err := c.do(ctx, fasthttp.MethodPost, "/v1/energy", patternRequest{Pattern: p})
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "energy").Float(), nil
}

func (c *Client) AddPattern(ctx context.Context, name string, p core.Pattern) (PatternInfo, error) {
	body, err := c.do(ctx, fasthttp.MethodPost, "/v1/patterns", patternRequest{Name: name, Pattern: p})
	if err != nil {
		return PatternInfo{}, err
	}
	return toPatternInfo(gjson.ParseBytes(body)), nil
}

func (c *Client) DeletePattern(ctx context.Context, name string) error {
	_, err := c.do(ctx, fasthttp.MethodDelete, "/v1/patterns/"+url.PathEscape(name), nil)
	return err
}

func (c *Client) ListPatterns(ctx context.Context) ([]PatternInfo, error) {
	body, err := c.do(ctx, fasthttp.MethodGet, "/v1/patterns", nil)
	if err != nil {
		return nil, err
	}
	var out []PatternInfo
	for _, item := range gjson.ParseBytes(body).Array() {
		out = append(out, toPatternInfo(item))
	}
	return out, nil
}

// Train forces a rebuild and returns the new generation.
func (c *Client) Train(ctx context.Context) (uint64, error) {
	body, err := c.do(ctx, fasthttp.MethodPost, "/v1/train", nil)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "generation").Uint(), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(data)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultClientTimeout)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.hc.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	body := append([]byte(nil), resp.Body()...)
	if status := resp.StatusCode(); status >= 300 {
		return nil, &RemoteError{
			Status:  status,
			Code:    gjson.GetBytes(body, "code").String(),
			Message: gjson.GetBytes(body, "error").String(),
		}
	}
	return body, nil
}

func toPattern(r gjson.Result) core.Pattern {
	items := r.Array()
	p := make(core.Pattern, len(items))
	for i, v := range items {
		p[i] = int(v.Int())
	}
	return p
}

func toPatternInfo(r gjson.Result) PatternInfo {
	return PatternInfo{
		ID:      r.Get("id").Int(),
		Name:    r.Get("name").String(),
		Pattern: toPattern(r.Get("pattern")),
	}
}
