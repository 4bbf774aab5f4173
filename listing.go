package snoo

import (
	"context"
	"errors"

	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

// ErrNoMoreItems signals normal exhaustion of a lazy sequence, in the manner
// of io.EOF: it is returned by Next once every item has been yielded and no
// continuation token remains. It never indicates a failure.
var ErrNoMoreItems = errors.New("no more items available")

// PageFunc fetches one page of a listing. An empty continuation token
// requests the first page.
type PageFunc[T any] func(ctx context.Context, after string) (*types.Page[T], error)

// Listing is a lazy, forward-only sequence over a paginated remote listing.
// Pages are fetched on demand using the continuation token of the previous
// page, and items are yielded strictly in the order the server returned
// them. A Listing whose final page carried no continuation token simply
// ends; exhaustion is not an error.
//
// A fetch failure is returned from Next but does not poison the listing: a
// subsequent call retries the same continuation.
type Listing[T any] struct {
	ctx      context.Context
	endpoint string
	fetch    PageFunc[T]

	buffer    []T
	bufferIdx int
	after     string
	hasMore   bool
}

// NewListing creates a listing that starts at the first page of endpoint.
func NewListing[T any](ctx context.Context, endpoint string, fetch PageFunc[T]) *Listing[T] {
	return &Listing[T]{
		ctx:      ctx,
		endpoint: endpoint,
		fetch:    fetch,
		hasMore:  true,
	}
}

// NewListingFromPage creates a listing seeded with an already-fetched first
// page, continuing from that page's token.
func NewListingFromPage[T any](ctx context.Context, endpoint string, page *types.Page[T], fetch PageFunc[T]) *Listing[T] {
	l := &Listing[T]{
		ctx:      ctx,
		endpoint: endpoint,
		fetch:    fetch,
		buffer:   page.Items,
		after:    page.After,
		hasMore:  page.After != "",
	}
	return l
}

// HasNext returns true if more items may be available, either buffered
// locally or behind a continuation token.
func (l *Listing[T]) HasNext() bool {
	return l.bufferIdx < len(l.buffer) || l.hasMore
}

// Next returns the next item in the listing, fetching the next page if the
// local buffer is exhausted. Once the listing has ended it returns
// ErrNoMoreItems forever.
func (l *Listing[T]) Next() (T, error) {
	var zero T

	for {
		if l.bufferIdx < len(l.buffer) {
			item := l.buffer[l.bufferIdx]
			l.bufferIdx++
			return item, nil
		}

		if !l.hasMore {
			return zero, ErrNoMoreItems
		}

		page, err := l.fetch(l.ctx, l.after)
		if err != nil {
			return zero, err
		}

		l.buffer = page.Items
		l.bufferIdx = 0
		// Only a missing continuation token ends the listing; an empty page
		// that still carries one means more items live behind it. A token
		// that did not advance would refetch the same page forever, so it
		// ends the listing too.
		if page.After == "" || page.After == l.after {
			l.hasMore = false
		}
		l.after = page.After
	}
}

// FetchNextPage performs a direct continuation lookup, bypassing the local
// buffer. Unlike Next, which ends silently, it returns an
// ExhaustedListingError when no continuation token exists.
func (l *Listing[T]) FetchNextPage() (*types.Page[T], error) {
	if l.after == "" {
		return nil, &pkgerrs.ExhaustedListingError{Endpoint: l.endpoint}
	}

	page, err := l.fetch(l.ctx, l.after)
	if err != nil {
		return nil, err
	}

	l.after = page.After
	l.hasMore = page.After != ""
	return page, nil
}

// Collect fetches and returns up to max remaining items (all of them when
// max <= 0). On error the items gathered so far are returned with it.
func (l *Listing[T]) Collect(max int) ([]T, error) {
	var items []T

	for l.HasNext() && (max <= 0 || len(items) < max) {
		item, err := l.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return items, nil
			}
			return items, err
		}
		items = append(items, item)
	}

	return items, nil
}

// Reset rewinds the listing to the beginning. The next call to Next fetches
// the first page again.
func (l *Listing[T]) Reset() {
	l.buffer = nil
	l.bufferIdx = 0
	l.after = ""
	l.hasMore = true
}

// NewHotListing returns a lazy listing over a subreddit's hot posts.
// An empty subreddit targets the front page.
func (c *Client) NewHotListing(ctx context.Context, subreddit string) *Listing[*types.Post] {
	return c.newPostListing(ctx, subreddit, c.GetHot)
}

// NewNewListing returns a lazy listing over a subreddit's newest posts.
// An empty subreddit targets the front page.
func (c *Client) NewNewListing(ctx context.Context, subreddit string) *Listing[*types.Post] {
	return c.newPostListing(ctx, subreddit, c.GetNew)
}

func (c *Client) newPostListing(ctx context.Context, subreddit string, list func(context.Context, *types.PostsRequest) (*types.PostsResponse, error)) *Listing[*types.Post] {
	fetch := func(ctx context.Context, after string) (*types.Page[*types.Post], error) {
		resp, err := list(ctx, &types.PostsRequest{
			Subreddit:  subreddit,
			Pagination: types.Pagination{Limit: 100, After: after},
		})
		if err != nil {
			return nil, err
		}
		return &types.Page[*types.Post]{
			Items:  resp.Posts,
			After:  resp.AfterFullname,
			Before: resp.BeforeFullname,
		}, nil
	}
	return NewListing(ctx, subreddit, fetch)
}
