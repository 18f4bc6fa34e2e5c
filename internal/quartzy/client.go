// Package quartzy is a thin client for the Quartzy inventory service. It
// logs in with a password grant and pages through a group's items and users.
package quartzy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/gallowaylab/plasmiddb/internal/metrics"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:96.0) Gecko/20100101 Firefox/96.0"

// Options configures a Client.
type Options struct {
	// BaseURL is the web app origin serving the login page.
	BaseURL string
	// APIURL is the API origin serving tokens, items and users.
	APIURL       string
	GroupID      string
	Username     string
	Password     string
	PageSize     int
	RequestDelay time.Duration
	Timeout      time.Duration
}

// Client talks to the Quartzy API.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *slog.Logger
}

// NewClient builds a client. Login must succeed before any fetch.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.APIURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Origin", strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("Referer", strings.TrimRight(opts.BaseURL, "/")+"/")

	return &Client{http: client, opts: opts, logger: logger}
}

type frontendEnv struct {
	API struct {
		ClientID string `json:"clientId"`
	} `json:"api"`
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Login reads the public client id from the login page and exchanges the
// configured credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	clientID, err := c.clientID(ctx)
	if err != nil {
		return err
	}

	var tok tokenResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"client_id":  clientID,
			"username":   c.opts.Username,
			"password":   c.opts.Password,
		}).
		SetResult(&tok).
		Post("/oauth/tokens")
	if err != nil {
		return fmt.Errorf("quartzy: login: %w", err)
	}
	metrics.ObserveUpstream("oauth_tokens", res.StatusCode())
	if res.IsError() {
		return fmt.Errorf("quartzy: login: %s", res.Status())
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("quartzy: login: empty access token")
	}

	c.http.SetHeader("Authorization", fmt.Sprintf("%s %s", tok.TokenType, tok.AccessToken))
	c.logger.Debug("quartzy: logged in", slog.String("user", c.opts.Username))
	return nil
}

func (c *Client) clientID(ctx context.Context) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(strings.TrimRight(c.opts.BaseURL, "/") + "/login")
	if err != nil {
		return "", fmt.Errorf("quartzy: login page: %w", err)
	}
	metrics.ObserveUpstream("login_page", res.StatusCode())
	if res.IsError() {
		return "", fmt.Errorf("quartzy: login page: %s", res.Status())
	}
	return parseClientID(res.Body())
}

// parseClientID extracts api.clientId from the URL-escaped JSON held in the
// frontend environment meta tag.
func parseClientID(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("quartzy: parse login page: %w", err)
	}
	content, ok := doc.Find(`meta[name="frontend/config/environment"]`).First().Attr("content")
	if !ok {
		return "", fmt.Errorf("quartzy: couldn't load environment from login page")
	}
	raw, err := url.PathUnescape(content)
	if err != nil {
		return "", fmt.Errorf("quartzy: unescape environment: %w", err)
	}
	var env frontendEnv
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("quartzy: decode environment: %w", err)
	}
	if env.API.ClientID == "" {
		return "", fmt.Errorf("quartzy: environment has no api.clientId")
	}
	return env.API.ClientID, nil
}

// wait sleeps for the configured request delay unless ctx ends first.
func (c *Client) wait(ctx context.Context) error {
	if c.opts.RequestDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.opts.RequestDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
