package hub

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

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIToken string
	// ProxyURL routes every request through an HTTP proxy when set.
	ProxyURL string
	Timeout  time.Duration
	// RetryMax is the number of retries for 5xx, 429 and connection errors.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond caps outgoing requests; 0 disables the limiter.
	RequestsPerSecond float64
}

// Client talks to the hub REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

var _ resolve.Resolver = (*Client)(nil)

// New returns a Client configured from opts.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("hub: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("hub: parse base url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("hub: parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	var rt http.RoundTripper = transport
	if opts.APIToken != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIToken, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: rt, Timeout: timeout}
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = slog.Default()

	c := &Client{baseURL: base, http: rc.StandardClient()}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// BaseURL returns the normalised server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Version returns the server version from GET /api/current-version. Used as a
// connectivity and credential check.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out currentVersion
	if err := c.getJSON(ctx, "/api/current-version", &out); err != nil {
		return "", fmt.Errorf("hub: current version: %w", err)
	}
	return out.Version, nil
}

// ResolveProjectVersion implements resolve.ProjectVersionResolver.
func (c *Client) ResolveProjectVersion(ctx context.Context, link string) (models.ProjectVersionRef, error) {
	var v versionView
	if err := c.getJSON(ctx, link, &v); err != nil {
		return models.ProjectVersionRef{}, err
	}
	return models.ProjectVersionRef{URL: link, Name: v.VersionName}, nil
}

// ResolveComponentVersion implements resolve.ComponentVersionResolver.
func (c *Client) ResolveComponentVersion(ctx context.Context, link string) (models.ComponentVersionRef, error) {
	var v versionView
	if err := c.getJSON(ctx, link, &v); err != nil {
		return models.ComponentVersionRef{}, err
	}
	return models.ComponentVersionRef{URL: link, Name: v.VersionName}, nil
}

// ResolvePolicyRule implements resolve.PolicyRuleResolver.
func (c *Client) ResolvePolicyRule(ctx context.Context, link string) (models.PolicyRuleRef, error) {
	var v ruleView
	if err := c.getJSON(ctx, link, &v); err != nil {
		return models.PolicyRuleRef{}, err
	}
	return models.PolicyRuleRef{URL: link, Name: v.Name}, nil
}

// ResolvePolicyStatus implements resolve.PolicyStatusResolver. The rule URLs
// are the status resource's policy-rule links.
func (c *Client) ResolvePolicyStatus(ctx context.Context, link string) (models.PolicyStatusRef, error) {
	var v policyStatusView
	if err := c.getJSON(ctx, link, &v); err != nil {
		return models.PolicyStatusRef{}, err
	}
	ref := models.PolicyStatusRef{URL: link}
	for _, l := range v.Meta.Links {
		if l.Rel == relPolicyRule && l.Href != "" {
			ref.RuleURLs = append(ref.RuleURLs, l.Href)
		}
	}
	return ref, nil
}

// getJSON issues GET link and decodes the body into out.
// 404 and 410 map to resolve.ErrNotFound; other failures to *resolve.TransportError.
// A done context is returned as ctx.Err().
func (c *Client) getJSON(ctx context.Context, link string, out any) error {
	target := c.absolute(link)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &resolve.TransportError{URL: target, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &resolve.TransportError{URL: target, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req) // #nosec G107 -- hub links come from the configured server
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &resolve.TransportError{URL: target, Err: err}
	}
	defer res.Body.Close() //nolint:errcheck

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		return resolve.NotFound(target)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &resolve.TransportError{
			URL:        target,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(b))),
		}
	}

	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &resolve.TransportError{URL: target, StatusCode: res.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) absolute(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return c.baseURL + link
}
