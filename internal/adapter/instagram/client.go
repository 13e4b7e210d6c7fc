package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hylfro/instasweep/internal/domain"
)

const (
	// DefaultBaseURL is the web API endpoint the private mobile routes live
	// under.
	DefaultBaseURL = "https://www.instagram.com"

	cookieDomain = "instagram.com"
	userAgent    = "Instagram 275.0.0.27.98 Android (33/13; 420dpi; 1080x2219; Google/google; Pixel 7; panther; armv8l; en_US)"
)

// Client creates authenticated sessions from exported browser cookies. It
// implements domain.AccountClient.
type Client struct {
	baseURL string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests point this at a local server).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login injects the matching cookies into a fresh jar and confirms the
// session with a current-user probe. Cookies for other domains are silently
// ignored. Any probe failure is reported as domain.ErrSessionInvalid.
func (c *Client) Login(ctx context.Context, cookies []domain.Cookie) (domain.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}

	var injected []*http.Cookie
	var csrfToken string
	for _, ck := range cookies {
		if ck.Domain != cookieDomain && ck.Domain != "."+cookieDomain {
			continue
		}
		path := ck.Path
		if path == "" {
			path = "/"
		}
		injected = append(injected, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: path})
		if ck.Name == "csrftoken" {
			csrfToken = ck.Value
		}
	}
	jar.SetCookies(base, injected)

	s := &session{
		client:    &http.Client{Jar: jar, Timeout: c.timeout},
		baseURL:   c.baseURL,
		csrfToken: csrfToken,
	}

	var resp currentUserResponse
	if err := s.getJSON(ctx, "/api/v1/accounts/current_user/", nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionInvalid, err)
	}
	if resp.User.Username == "" {
		return nil, fmt.Errorf("%w: no user in response", domain.ErrSessionInvalid)
	}
	s.username = resp.User.Username
	s.userID = resp.User.PK.String()
	return s, nil
}

// session implements domain.Session over the private web API.
type session struct {
	client    *http.Client
	baseURL   string
	csrfToken string
	username  string
	userID    string
}

func (s *session) Username() string { return s.username }

func (s *session) LikedFeed() domain.Feed {
	return &feed{session: s, name: "liked feed", path: "/api/v1/feed/liked/"}
}

func (s *session) TimelineFeed() domain.Feed {
	return &feed{session: s, name: "timeline feed", path: "/api/v1/feed/user/" + s.userID + "/"}
}

// Unlike removes the account's like from the given post.
func (s *session) Unlike(ctx context.Context, post domain.Post) error {
	form := url.Values{
		"media_id":    {post.ID},
		"module_name": {"feed_contextual_post"},
		"radio_type":  {"wifi-none"},
		"_uid":        {s.userID},
		"_csrftoken":  {s.csrfToken},
	}
	return s.postForm(ctx, "/api/v1/media/"+post.ID+"/unlike/", form)
}

// Comments lists the comments on the given post.
func (s *session) Comments(ctx context.Context, mediaID string) ([]domain.Comment, error) {
	var resp commentsResponse
	if err := s.getJSON(ctx, "/api/v1/media/"+mediaID+"/comments/", nil, &resp); err != nil {
		return nil, err
	}
	comments := make([]domain.Comment, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		comments = append(comments, domain.Comment{
			ID:     c.PK.String(),
			Author: c.User.Username,
			Text:   c.Text,
		})
	}
	return comments, nil
}

// DeleteComment removes one comment from a post.
func (s *session) DeleteComment(ctx context.Context, mediaID, commentID string) error {
	form := url.Values{"_csrftoken": {s.csrfToken}}
	return s.postForm(ctx, "/api/v1/media/"+mediaID+"/comment/"+commentID+"/delete/", form)
}

func (s *session) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *session) postForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, nil)
}

func (s *session) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-IG-App-ID", "936619743392459")
	if s.csrfToken != "" {
		req.Header.Set("X-CSRFToken", s.csrfToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}
