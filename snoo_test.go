package snoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snoologic/snoo/internal"
	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

// mockTransport implements the HTTPClient interface for testing.
type mockTransport struct {
	doFunc    func(req *http.Request, v *types.Thing) (*http.Response, error)
	doRawFunc func(req *http.Request) ([]byte, error)
	requests  []*http.Request
	bodies    []string
}

func (m *mockTransport) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, "https://oauth.reddit.com/"+path, body)
}

func (m *mockTransport) record(req *http.Request) {
	m.requests = append(m.requests, req)
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	m.bodies = append(m.bodies, body)
}

func (m *mockTransport) Do(req *http.Request, v *types.Thing) (*http.Response, error) {
	m.record(req)
	if m.doFunc != nil {
		return m.doFunc(req, v)
	}
	return &http.Response{StatusCode: http.StatusOK}, nil
}

func (m *mockTransport) DoRaw(req *http.Request) ([]byte, error) {
	m.record(req)
	if m.doRawFunc != nil {
		return m.doRawFunc(req)
	}
	return nil, nil
}

// newTestClient builds a connected client backed by the given transport.
func newTestClient(t *testing.T, transport HTTPClient) *Client {
	t.Helper()

	c := &Client{
		client:    transport,
		config:    &Config{UserAgent: "test/1.0", BaseURL: DefaultBaseURL},
		parser:    internal.NewParser(),
		validator: internal.NewValidator(),
		conn:      internal.NewConnectionManager(),
	}

	// Mark the connection established so ensureConnected keeps the injected
	// transport instead of building a real one.
	err := c.conn.Initialize(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	return c
}

func listingThing(t *testing.T, after string, children ...json.RawMessage) *types.Thing {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"after":    after,
		"children": children,
	})
	require.NoError(t, err)
	return &types.Thing{Kind: "Listing", Data: data}
}

func postJSON(name, title string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"kind": "t3", "data": {"name": %q, "title": %q}}`, name, title))
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "missing client ID", config: &Config{ClientSecret: "secret"}},
		{name: "missing client secret", config: &Config{ClientID: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			var clientErr *ClientError
			require.ErrorAs(t, err, &clientErr)
		})
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	config := &Config{ClientID: "id", ClientSecret: "secret"}
	_, err := NewClient(config)
	require.NoError(t, err)

	require.Equal(t, DefaultUserAgent, config.UserAgent)
	require.Equal(t, DefaultBaseURL, config.BaseURL)
	require.Equal(t, DefaultAuthURL, config.AuthURL)
	require.NotNil(t, config.HTTPClient)
}

func TestGetHotBuildsRequest(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(req *http.Request, v *types.Thing) (*http.Response, error) {
			thing := listingThing(t, "t3_b",
				postJSON("t3_a", "first"), postJSON("t3_b", "second"))
			*v = *thing
			return &http.Response{StatusCode: http.StatusOK}, nil
		},
	}
	client := newTestClient(t, transport)

	resp, err := client.GetHot(context.Background(), &types.PostsRequest{
		Subreddit:  "golang",
		Pagination: types.Pagination{Limit: 2, After: "t3_x"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Posts, 2)
	require.Equal(t, "first", resp.Posts[0].Title)
	require.Equal(t, "t3_b", resp.AfterFullname)

	req := transport.requests[0]
	require.Equal(t, "/r/golang/hot", req.URL.Path)
	require.Equal(t, "2", req.URL.Query().Get("limit"))
	require.Equal(t, "t3_x", req.URL.Query().Get("after"))
}

func TestGetNewFrontPage(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(req *http.Request, v *types.Thing) (*http.Response, error) {
			*v = *listingThing(t, "")
			return &http.Response{StatusCode: http.StatusOK}, nil
		},
	}
	client := newTestClient(t, transport)

	_, err := client.GetNew(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "/new", transport.requests[0].URL.Path)
}

func TestGetPostsRejectsBadSubreddit(t *testing.T) {
	client := newTestClient(t, &mockTransport{})

	_, err := client.GetHot(context.Background(), &types.PostsRequest{Subreddit: "a!"})
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGetCommentsParsesArrayPayload(t *testing.T) {
	payload := `[
		{"kind": "Listing", "data": {"children": [
			{"kind": "t3", "data": {"name": "t3_post", "title": "the post"}}
		]}},
		{"kind": "Listing", "data": {"children": [
			{"kind": "t1", "data": {"name": "t1_A", "parent_id": "t3_post", "body": "top"}},
			{"kind": "more", "data": {"parent_id": "t3_post", "count": 2, "children": ["b", "c"]}}
		]}}
	]`
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			return []byte(payload), nil
		},
	}
	client := newTestClient(t, transport)

	resp, err := client.GetComments(context.Background(), &types.CommentsRequest{
		Subreddit: "golang",
		PostID:    "post",
	})
	require.NoError(t, err)

	require.Equal(t, "the post", resp.Post.Title)
	require.Len(t, resp.Comments, 1)
	require.Equal(t, "t1_A", resp.Comments[0].Name)
	require.Len(t, resp.More, 1)
	require.Equal(t, []string{"b", "c"}, resp.More[0].Children)
}

func TestGetCommentsRejectsInvalidPayload(t *testing.T) {
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			return []byte("<html>oops</html>"), nil
		},
	}
	client := newTestClient(t, transport)

	_, err := client.GetComments(context.Background(), &types.CommentsRequest{
		Subreddit: "golang",
		PostID:    "post",
	})
	var parseErr *pkgerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestGetMoreCommentsSubmitsForm(t *testing.T) {
	payload := `{"json": {"errors": [], "data": {"things": [
		{"kind": "t1", "data": {"name": "t1_B", "parent_id": "t1_A", "body": "reply"}},
		{"kind": "more", "data": {"parent_id": "t1_B", "children": ["d"]}}
	]}}}`
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			return []byte(payload), nil
		},
	}
	client := newTestClient(t, transport)

	comments, more, err := client.GetMoreComments(context.Background(), &types.MoreCommentsRequest{
		LinkID:     "post",
		CommentIDs: []string{"b", "c"},
		Sort:       "new",
	})
	require.NoError(t, err)

	require.Len(t, comments, 1)
	require.Equal(t, "t1_B", comments[0].Name)
	require.Len(t, more, 1)

	require.Equal(t, "/api/morechildren", transport.requests[0].URL.Path)
	form := transport.bodies[0]
	require.Contains(t, form, "link_id=t3_post")
	require.Contains(t, form, "children=b%2Cc")
	require.Contains(t, form, "sort=new")
}

func TestGetMoreCommentsErrorEnvelope(t *testing.T) {
	payload := `{"json": {"errors": [["TOO_MANY_IDS", "too many ids", "children"]]}}`
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			return []byte(payload), nil
		},
	}
	client := newTestClient(t, transport)

	_, _, err := client.GetMoreComments(context.Background(), &types.MoreCommentsRequest{
		LinkID:     "post",
		CommentIDs: []string{"b"},
	})
	var apiErr *pkgerrs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Message, "TOO_MANY_IDS")
}

func TestGetMoreCommentsEmptyIDsShortCircuits(t *testing.T) {
	transport := &mockTransport{}
	client := newTestClient(t, transport)

	comments, more, err := client.GetMoreComments(context.Background(), &types.MoreCommentsRequest{
		LinkID: "post",
	})
	require.NoError(t, err)
	require.Empty(t, comments)
	require.Empty(t, more)
	require.Empty(t, transport.requests)
}

func TestGetCommentsMultiplePreservesOrder(t *testing.T) {
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			// Echo the post ID back as the post title.
			parts := strings.Split(req.URL.Path, "/")
			id := parts[len(parts)-1]
			payload := fmt.Sprintf(`[
				{"kind": "Listing", "data": {"children": [
					{"kind": "t3", "data": {"name": "t3_%s", "title": %q}}
				]}},
				{"kind": "Listing", "data": {"children": []}}
			]`, id, id)
			return []byte(payload), nil
		},
	}
	client := newTestClient(t, transport)

	requests := []*types.CommentsRequest{
		{Subreddit: "golang", PostID: "one"},
		{Subreddit: "golang", PostID: "two"},
		{Subreddit: "golang", PostID: "three"},
	}
	responses, err := client.GetCommentsMultiple(context.Background(), requests)
	require.NoError(t, err)

	require.Len(t, responses, 3)
	for i, want := range []string{"one", "two", "three"} {
		require.Equal(t, want, responses[i].Post.Title)
	}
}

func TestCommentTreeFromClient(t *testing.T) {
	commentsPayload := `[
		{"kind": "Listing", "data": {"children": [
			{"kind": "t3", "data": {"name": "t3_post", "title": "the post"}}
		]}},
		{"kind": "Listing", "data": {"children": [
			{"kind": "t1", "data": {"name": "t1_A", "parent_id": "t3_post"}},
			{"kind": "more", "data": {"parent_id": "t1_A", "children": ["b"]}}
		]}}
	]`
	morePayload := `{"json": {"errors": [], "data": {"things": [
		{"kind": "t1", "data": {"name": "t1_B", "parent_id": "t1_A"}}
	]}}}`
	transport := &mockTransport{
		doRawFunc: func(req *http.Request) ([]byte, error) {
			if strings.Contains(req.URL.Path, "morechildren") {
				return []byte(morePayload), nil
			}
			return []byte(commentsPayload), nil
		},
	}
	client := newTestClient(t, transport)

	post, tree, err := client.CommentTree(context.Background(), &types.CommentsRequest{
		Subreddit: "golang",
		PostID:    "post",
	})
	require.NoError(t, err)
	require.Equal(t, "the post", post.Title)

	names := drainNames(t, tree)
	require.Equal(t, []string{"t1_A", "t1_B"}, names)
}

func TestHotListingPagesThroughClient(t *testing.T) {
	pages := map[string]string{
		"":     `{"after": "t3_b", "children": [` + string(postJSON("t3_a", "a")) + "," + string(postJSON("t3_b", "b")) + `]}`,
		"t3_b": `{"after": "", "children": [` + string(postJSON("t3_c", "c")) + `]}`,
	}
	transport := &mockTransport{}
	transport.doFunc = func(req *http.Request, v *types.Thing) (*http.Response, error) {
		data := pages[req.URL.Query().Get("after")]
		*v = types.Thing{Kind: "Listing", Data: json.RawMessage(data)}
		return &http.Response{StatusCode: http.StatusOK}, nil
	}
	client := newTestClient(t, transport)

	listing := client.NewHotListing(context.Background(), "golang")
	posts, err := listing.Collect(0)
	require.NoError(t, err)

	require.Len(t, posts, 3)
	require.Equal(t, "t3_c", posts[2].Name)
	require.Len(t, transport.requests, 2)
}
