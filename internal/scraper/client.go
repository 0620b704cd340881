package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// ClientOptions configures the storefront HTTP client
type ClientOptions struct {
	UserAgent        string
	Timeout          time.Duration
	RetryCount       int
	RetryWait        time.Duration
	RetryMaxWait     time.Duration
	BypassCloudflare bool
}

// Client is an HTTP client for storefront requests.
// Every Client made by NewSession shares the same connection pool but has
// its own cookie jar, so cart probes never touch each other's carts.
type Client struct {
	opts      ClientOptions
	transport http.RoundTripper
	http      *resty.Client
}

// Response is the subset of an HTTP response the strategies need
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a client with a fresh connection pool
func NewClient(opts ClientOptions) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 10 * time.Second
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.BypassCloudflare {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}

	c := &Client{opts: opts, transport: rt}
	c.http = c.newResty()
	return c
}

// NewSession returns a client sharing the connection pool with a new, empty cookie jar
func (c *Client) NewSession() *Client {
	s := &Client{opts: c.opts, transport: c.transport}
	s.http = s.newResty()
	return s
}

func (c *Client) newResty() *resty.Client {
	// cookiejar.New only fails on a bad PublicSuffixList, and we pass none
	jar, _ := cookiejar.New(nil)

	client := resty.NewWithClient(&http.Client{
		Transport: c.transport,
		Jar:       jar,
	})
	client.SetTimeout(c.opts.Timeout)
	client.SetHeader("user-agent", c.opts.UserAgent)
	client.SetHeader("accept-language", "en-US,en;q=0.9")
	client.SetRetryCount(c.opts.RetryCount)
	client.SetRetryWaitTime(c.opts.RetryWait)
	client.SetRetryMaxWaitTime(c.opts.RetryMaxWait)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := r.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})
	return client
}

// Get fetches url with optional extra headers
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return &Response{StatusCode: res.StatusCode(), Body: res.Body()}, nil
}

// PostForm posts a urlencoded form to url
func (c *Client) PostForm(ctx context.Context, url string, headers, form map[string]string) (*Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetFormData(form).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", url, err)
	}
	return &Response{StatusCode: res.StatusCode(), Body: res.Body()}, nil
}

// ExtractText returns the visible text of an HTML document with
// whitespace collapsed. Scripts and styles are dropped.
func ExtractText(html string) string {
	// the parser only fails on reader errors, which a strings.Reader never returns
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,noscript,template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
