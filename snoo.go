package snoo

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

	"github.com/snoologic/snoo/internal"
	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

const (
	// DefaultBaseURL is the default Reddit API base URL
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default Reddit OAuth base URL
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "snoo/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// Config holds the configuration for the Reddit client.
//
// For application-only authentication (script apps), provide ClientID and
// ClientSecret. For user authentication, additionally provide Username and
// Password.
type Config struct {
	// Username and Password for password grant flow.
	// Required only for user authentication. Leave empty for app-only authentication.
	Username string
	Password string

	// ClientID and ClientSecret for OAuth2 authentication.
	// Required for all authentication types.
	ClientID     string
	ClientSecret string

	// UserAgent string to identify your application to Reddit.
	// Should follow format: "platform:app-name:version by /u/username"
	UserAgent string

	// BaseURL for the Reddit API. Defaults to DefaultBaseURL.
	BaseURL string

	// AuthURL for Reddit OAuth authentication. Defaults to DefaultAuthURL.
	AuthURL string

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// RequestsPerMinute caps steady-state request throughput. Defaults to 60.
	RequestsPerMinute float64

	// RateLimitBurst allows short spikes above the steady-state rate. Defaults to 10.
	RateLimitBurst int

	// Logger for structured diagnostics.
	// Optional. If provided, debug information is logged during API calls.
	Logger *slog.Logger
}

// HTTPClient defines the behavior required from the internal transport.
// This interface allows for easy testing and customization of HTTP behavior.
type HTTPClient interface {
	// NewRequest creates a new HTTP request resolved against the base URL.
	NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error)

	// Do executes an HTTP request and unmarshals the response into a Thing.
	Do(req *http.Request, v *types.Thing) (*http.Response, error)

	// DoRaw executes an HTTP request and returns the raw response bytes.
	DoRaw(req *http.Request) ([]byte, error)
}

// Client is the main Reddit API client. All methods require the client to be
// connected; connection happens lazily on first use.
type Client struct {
	client    HTTPClient
	auth      internal.TokenSource
	config    *Config
	parser    *internal.Parser
	validator *internal.Validator
	conn      *internal.ConnectionManager
}

// NewClient creates a new Reddit client with the provided configuration.
// It validates the configuration, applies defaults and sets up the
// authenticator. No network traffic happens until Connect (or the first API
// call, which connects implicitly).
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &ClientError{Err: "config cannot be nil"}
	}

	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, &ClientError{Err: "ClientID and ClientSecret are required"}
	}

	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = DefaultAuthURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	grantType := "client_credentials"
	if config.Username != "" && config.Password != "" {
		grantType = "password"
	}

	auth, err := internal.NewAuthenticator(
		config.HTTPClient,
		config.Username,
		config.Password,
		config.ClientID,
		config.ClientSecret,
		config.UserAgent,
		config.AuthURL,
		grantType,
		config.Logger,
	)
	if err != nil {
		return nil, &ClientError{Err: err.Error()}
	}

	return &Client{
		auth:      auth,
		config:    config,
		parser:    internal.NewParser(),
		validator: internal.NewValidator(),
		conn:      internal.NewConnectionManager(),
	}, nil
}

// Connect authenticates with Reddit and initializes the transport.
// It is safe to call Connect multiple times; initialization only occurs once.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Initialize(ctx, c.initialize)
}

// initialize performs the underlying connection setup work.
func (c *Client) initialize(ctx context.Context) error {
	if _, err := c.auth.Token(ctx); err != nil {
		return &ClientError{Err: "failed to authenticate: " + err.Error()}
	}

	rateCfg := &internal.RateLimitConfig{
		RequestsPerMinute: c.config.RequestsPerMinute,
		Burst:             c.config.RateLimitBurst,
	}

	client, err := internal.NewClient(
		c.config.HTTPClient,
		c.auth,
		c.config.BaseURL,
		c.config.UserAgent,
		rateCfg,
		c.config.Logger,
	)
	if err != nil {
		return &ClientError{Err: "failed to create HTTP client: " + err.Error()}
	}

	c.client = client
	return nil
}

// ensureConnected lazily initializes the client before handling a request.
func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	if !c.IsConnected() {
		return &pkgerrs.StateError{Operation: "request", Message: "client not connected"}
	}

	return nil
}

// IsConnected returns true if the client is authenticated and ready to make requests.
func (c *Client) IsConnected() bool {
	return c.client != nil
}

// Me returns information about the authenticated user.
func (c *Client) Me(ctx context.Context) (*types.AccountData, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var result types.Thing
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, err
	}

	account, err := c.parser.ParseAccount(&result)
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetSubreddit retrieves information about a specific subreddit: subscriber
// counts, description and submission settings.
func (c *Client) GetSubreddit(ctx context.Context, name string) (*types.SubredditData, error) {
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "r/"+name+"/about", nil)
	if err != nil {
		return nil, err
	}

	var result types.Thing
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, err
	}

	subreddit, err := c.parser.ParseSubreddit(&result)
	if err != nil {
		return nil, err
	}

	return subreddit, nil
}

// GetHot retrieves hot posts from a subreddit or the Reddit front page.
// Provide a nil request to fetch the front page with default pagination.
func (c *Client) GetHot(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPosts(ctx, "hot", request)
}

// GetNew retrieves new posts from a subreddit or the Reddit front page,
// sorted by submission time with the most recent first.
func (c *Client) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPosts(ctx, "new", request)
}

func (c *Client) getPosts(ctx context.Context, sort string, request *types.PostsRequest) (*types.PostsResponse, error) {
	subreddit := ""
	pagination := types.Pagination{}
	if request != nil {
		subreddit = request.Subreddit
		pagination = request.Pagination
	}

	if subreddit != "" {
		if err := c.validator.ValidateSubredditName(subreddit); err != nil {
			return nil, err
		}
	}
	if err := c.validator.ValidatePagination(pagination); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	path := sort
	if subreddit != "" {
		path = "r/" + subreddit + "/" + sort
	}

	httpReq, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	applyPagination(httpReq, pagination)

	var result types.Thing
	if _, err := c.client.Do(httpReq, &result); err != nil {
		return nil, err
	}

	posts, err := c.parser.ExtractPosts(&result)
	if err != nil {
		return nil, err
	}

	listing, err := c.parser.ParseListing(&result)
	if err != nil {
		return nil, err
	}

	return &types.PostsResponse{
		Posts:          posts,
		AfterFullname:  listing.AfterFullname,
		BeforeFullname: listing.BeforeFullname,
	}, nil
}

// applyPagination encodes the shared listing query parameters.
func applyPagination(req *http.Request, p types.Pagination) {
	q := req.URL.Query()
	if p.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", p.Limit))
	}
	if p.After != "" {
		q.Set("after", p.After)
	}
	if p.Before != "" {
		q.Set("before", p.Before)
	}
	req.URL.RawQuery = q.Encode()
}

// GetComments retrieves a post together with its comment forest. The
// response carries both the already-materialized top-level comments (inline
// replies attached) and the deferred-expansion stubs Reddit truncated the
// tree with; feed it to NewCommentTree, or call Client.CommentTree directly.
func (c *Client) GetComments(ctx context.Context, request *types.CommentsRequest) (*types.CommentsResponse, error) {
	if request == nil {
		return nil, &ClientError{Err: "comments request cannot be nil"}
	}
	if request.Subreddit == "" || request.PostID == "" {
		return nil, &ClientError{Err: "subreddit and postID are required"}
	}
	if err := c.validator.ValidateSubredditName(request.Subreddit); err != nil {
		return nil, err
	}
	if err := c.validator.ValidatePagination(request.Pagination); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	path := "r/" + request.Subreddit + "/comments/" + request.PostID
	httpReq, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	applyPagination(httpReq, request.Pagination)
	if request.Sort != "" {
		q := httpReq.URL.Query()
		q.Set("sort", request.Sort)
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := c.client.DoRaw(httpReq)
	if err != nil {
		return nil, err
	}

	result, err := c.decodeCommentsPayload(resp, path)
	if err != nil {
		return nil, err
	}

	post, comments, more, err := c.parser.ExtractPostAndComments(result)
	if err != nil {
		return nil, err
	}

	return &types.CommentsResponse{
		Post:     post,
		Comments: comments,
		More:     more,
	}, nil
}

// decodeCommentsPayload normalizes the comments endpoint's two shapes: an
// array [post_listing, comments_listing] or a single Listing object.
func (c *Client) decodeCommentsPayload(resp []byte, path string) ([]*types.Thing, error) {
	if c.config.Logger != nil {
		previewLen := len(resp)
		if previewLen > 500 {
			previewLen = 500
		}
		c.config.Logger.Debug("comments raw response", "path", path, "preview", string(resp[:previewLen]))
	}

	if len(resp) == 0 {
		return nil, &pkgerrs.ParseError{Operation: path, Message: "empty response"}
	}

	switch resp[0] {
	case '[':
		var result []*types.Thing
		if err := json.Unmarshal(resp, &result); err != nil {
			return nil, &pkgerrs.ParseError{Operation: path, Err: err}
		}
		return result, nil
	case '{':
		var single types.Thing
		if err := json.Unmarshal(resp, &single); err != nil {
			return nil, &pkgerrs.ParseError{Operation: path, Err: err}
		}
		if single.Kind != "Listing" {
			return nil, &pkgerrs.ParseError{Operation: path, Message: fmt.Sprintf("unexpected response kind: %s", single.Kind)}
		}
		return []*types.Thing{&single}, nil
	default:
		return nil, &pkgerrs.ParseError{Operation: path, Message: "invalid response from Reddit"}
	}
}

// GetCommentsMultiple loads comments for multiple posts in parallel and
// returns the responses in input order. The first error encountered is
// returned, alongside whatever responses succeeded.
func (c *Client) GetCommentsMultiple(ctx context.Context, requests []*types.CommentsRequest) ([]*types.CommentsResponse, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return []*types.CommentsResponse{}, nil
	}

	type result struct {
		index    int
		response *types.CommentsResponse
		err      error
	}
	resultChan := make(chan result, len(requests))

	for i, req := range requests {
		go func(index int, r *types.CommentsRequest) {
			resp, err := c.GetComments(ctx, r)
			resultChan <- result{index: index, response: resp, err: err}
		}(i, req)
	}

	results := make([]*types.CommentsResponse, len(requests))
	var firstError error
	for range requests {
		res := <-resultChan
		if res.err != nil && firstError == nil {
			firstError = res.err
		}
		results[res.index] = res.response
	}

	return results, firstError
}

// GetMoreComments expands a deferred batch of comments through the
// /api/morechildren endpoint. The returned comments are one flat batch in
// Reddit's order; any further stubs Reddit produced while expanding are
// returned alongside, so the caller can queue them for later expansion.
func (c *Client) GetMoreComments(ctx context.Context, request *types.MoreCommentsRequest) ([]*types.Comment, []*types.MoreData, error) {
	if request == nil {
		return nil, nil, &ClientError{Err: "more comments request cannot be nil"}
	}
	if request.LinkID == "" {
		return nil, nil, &ClientError{Err: "linkID is required"}
	}
	if len(request.CommentIDs) == 0 {
		return []*types.Comment{}, nil, nil
	}
	if err := c.validator.ValidateCommentIDs(request.CommentIDs); err != nil {
		return nil, nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, nil, err
	}

	linkID := request.LinkID
	if !strings.HasPrefix(linkID, "t3_") {
		linkID = "t3_" + linkID
	}

	formData := url.Values{}
	formData.Set("link_id", linkID)
	formData.Set("children", strings.Join(request.CommentIDs, ","))
	formData.Set("api_type", "json")

	if request.Sort != "" {
		formData.Set("sort", request.Sort)
	}
	if request.Depth > 0 {
		formData.Set("depth", fmt.Sprintf("%d", request.Depth))
	}
	if request.Limit > 0 {
		formData.Set("limit_children", fmt.Sprintf("%d", request.Limit))
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, "api/morechildren", strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	respBody, err := c.client.DoRaw(req)
	if err != nil {
		return nil, nil, err
	}

	var response struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				Things []*types.Thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, nil, &pkgerrs.ParseError{Operation: "morechildren", Err: err}
	}

	if len(response.JSON.Errors) > 0 {
		return nil, nil, &pkgerrs.APIError{Message: fmt.Sprintf("%v", response.JSON.Errors[0])}
	}

	var comments []*types.Comment
	var mores []*types.MoreData
	for _, thing := range response.JSON.Data.Things {
		switch thing.Kind {
		case "t1":
			comment, nested, err := c.parser.ParseComment(thing)
			if err != nil {
				return nil, nil, err
			}
			comments = append(comments, comment)
			mores = append(mores, nested...)
		case "more":
			more, err := c.parser.ParseMore(thing)
			if err != nil {
				return nil, nil, err
			}
			mores = append(mores, more)
		}
	}

	return comments, mores, nil
}

// postForm submits a form-encoded action endpoint and checks the api_type=json
// error envelope.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, operation string) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	respBody, err := c.client.DoRaw(req)
	if err != nil {
		return err
	}

	// Action endpoints answer with an empty object or an error envelope.
	var response struct {
		JSON struct {
			Errors [][]string `json:"errors"`
		} `json:"json"`
	}
	if len(respBody) > 0 && respBody[0] == '{' {
		if err := json.Unmarshal(respBody, &response); err == nil && len(response.JSON.Errors) > 0 {
			return &pkgerrs.APIError{Message: fmt.Sprintf("%s: %v", operation, response.JSON.Errors[0])}
		}
	}

	return nil
}

// ClientError represents an error from the Reddit client. It wraps
// validation and state problems detected before or while issuing a request.
type ClientError struct {
	// Err contains the detailed error message describing what went wrong
	Err string
}

// Error implements the error interface for ClientError.
func (e *ClientError) Error() string {
	return "snoo client error: " + e.Err
}
