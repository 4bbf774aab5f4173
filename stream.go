package snoo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/snoologic/snoo/pkg/types"
)

const (
	// StreamPollInterval is how long a stream sleeps before each poll.
	StreamPollInterval = 5 * time.Second

	// seenWindowCapacity bounds how many recently-yielded fullnames a
	// stream remembers for de-duplication.
	seenWindowCapacity = 10

	// commentStreamBatch is how many of a post's newest comments each
	// poll considers.
	commentStreamBatch = 5

	// messageStreamBatch is how many unread messages each poll requests.
	messageStreamBatch = 5

	// markReadRetryInterval spaces out retries of the mark-as-read call
	// that gates the unread message stream.
	markReadRetryInterval = time.Second
)

// seenWindow is a fixed-capacity FIFO of fullnames. Adding beyond capacity
// evicts the oldest entry.
type seenWindow struct {
	ids      []string
	capacity int
}

func newSeenWindow(capacity int) *seenWindow {
	return &seenWindow{capacity: capacity}
}

func (w *seenWindow) Contains(id string) bool {
	for _, seen := range w.ids {
		if seen == id {
			return true
		}
	}
	return false
}

func (w *seenWindow) Add(id string) {
	w.ids = append(w.ids, id)
	if len(w.ids) > w.capacity {
		w.ids = w.ids[1:]
	}
}

// sleepFunc is the stream scheduling primitive. The default implementation
// blocks on a timer; tests substitute instant clocks without touching the
// polling or dedup logic.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PostStream is an infinite stream of newly-submitted posts, polling the
// subreddit's new queue and yielding each post once. The server returns
// newest-first; within each poll the stream yields oldest-first. A window of
// the last 10 yielded fullnames suppresses duplicates between polls; if the
// consumer lags far enough that more than 10 new posts arrive between polls,
// re-yields of older posts are possible.
//
// The stream never ends on its own: it stops when the context is cancelled
// or the consumer stops pulling. Poll errors are returned from Next and do
// not break the stream.
type PostStream struct {
	ctx      context.Context
	fetch    func(ctx context.Context) ([]*types.Post, error)
	seen     *seenWindow
	batch    []*types.Post
	sleep    sleepFunc
	interval time.Duration
}

// NewPostStream returns a stream over a subreddit's incoming posts.
func (c *Client) NewPostStream(ctx context.Context, subreddit string) *PostStream {
	fetch := func(ctx context.Context) ([]*types.Post, error) {
		resp, err := c.GetNew(ctx, &types.PostsRequest{Subreddit: subreddit})
		if err != nil {
			return nil, err
		}
		return resp.Posts, nil
	}
	return &PostStream{
		ctx:      ctx,
		fetch:    fetch,
		seen:     newSeenWindow(seenWindowCapacity),
		sleep:    sleepWithContext,
		interval: StreamPollInterval,
	}
}

// Next blocks until a post not recently yielded arrives, polling as needed.
func (s *PostStream) Next() (*types.Post, error) {
	for {
		for len(s.batch) > 0 {
			post := s.batch[0]
			s.batch = s.batch[1:]
			if s.seen.Contains(post.Name) {
				continue
			}
			s.seen.Add(post.Name)
			return post, nil
		}

		if err := s.sleep(s.ctx, s.interval); err != nil {
			return nil, err
		}

		posts, err := s.fetch(s.ctx)
		if err != nil {
			return nil, err
		}
		reverse(posts)
		s.batch = posts
	}
}

// CommentStream is an infinite stream of new comments on a single post,
// oldest to newest, polling every few seconds. Each poll drains the first
// few comments of the post's newest-sorted tree; the seen window keeps
// comments from being yielded twice across polls.
type CommentStream struct {
	ctx      context.Context
	fetch    func(ctx context.Context) ([]*types.Comment, error)
	seen     *seenWindow
	batch    []*types.Comment
	sleep    sleepFunc
	interval time.Duration
}

// NewCommentStream returns a stream over a post's incoming comments.
func (c *Client) NewCommentStream(ctx context.Context, subreddit, postID string) *CommentStream {
	fetch := func(ctx context.Context) ([]*types.Comment, error) {
		_, tree, err := c.CommentTree(ctx, &types.CommentsRequest{
			Subreddit: subreddit,
			PostID:    postID,
			Sort:      "new",
		})
		if err != nil {
			return nil, err
		}
		return tree.Collect(commentStreamBatch)
	}
	return &CommentStream{
		ctx:      ctx,
		fetch:    fetch,
		seen:     newSeenWindow(seenWindowCapacity),
		sleep:    sleepWithContext,
		interval: StreamPollInterval,
	}
}

// Next blocks until a comment not recently yielded arrives, polling as needed.
func (s *CommentStream) Next() (*types.Comment, error) {
	for {
		for len(s.batch) > 0 {
			comment := s.batch[0]
			s.batch = s.batch[1:]
			if s.seen.Contains(comment.Name) {
				continue
			}
			s.seen.Add(comment.Name)
			return comment, nil
		}

		if err := s.sleep(s.ctx, s.interval); err != nil {
			return nil, err
		}

		comments, err := s.fetch(s.ctx)
		if err != nil {
			return nil, err
		}
		reverse(comments)
		s.batch = comments
	}
}

// MessageStream is an infinite stream of unread private messages, oldest to
// newest. Before a message is yielded it is marked read, retrying until the
// call commits, and the stream then sleeps one interval. The unread queue
// itself is the de-duplication mechanism, so no seen window is kept.
type MessageStream struct {
	ctx           context.Context
	fetch         func(ctx context.Context) ([]*types.MessageData, error)
	markRead      func(ctx context.Context, fullname string) error
	batch         []*types.MessageData
	sleep         sleepFunc
	interval      time.Duration
	retryInterval time.Duration
}

// NewUnreadMessageStream returns a stream over the authenticated user's
// unread messages. Useful for monitoring username mentions, comment replies
// and private messages.
func (c *Client) NewUnreadMessageStream(ctx context.Context) *MessageStream {
	fetch := func(ctx context.Context) ([]*types.MessageData, error) {
		resp, err := c.GetUnread(ctx, &types.MessagesRequest{
			Pagination: types.Pagination{Limit: messageStreamBatch},
		})
		if err != nil {
			return nil, err
		}
		return resp.Messages, nil
	}
	return &MessageStream{
		ctx:           ctx,
		fetch:         fetch,
		markRead:      c.MarkMessageRead,
		sleep:         sleepWithContext,
		interval:      StreamPollInterval,
		retryInterval: markReadRetryInterval,
	}
}

// Next blocks until an unread message is available, marks it read, sleeps
// one interval and yields it. Progress is strictly gated on the mark-read
// side effect committing.
func (s *MessageStream) Next() (*types.MessageData, error) {
	for {
		if len(s.batch) > 0 {
			message := s.batch[0]
			s.batch = s.batch[1:]

			retry := backoff.WithContext(backoff.NewConstantBackOff(s.retryInterval), s.ctx)
			err := backoff.Retry(func() error {
				return s.markRead(s.ctx, message.Name)
			}, retry)
			if err != nil {
				// Only context cancellation ends the retry loop.
				return nil, err
			}

			if err := s.sleep(s.ctx, s.interval); err != nil {
				return nil, err
			}
			return message, nil
		}

		if err := s.sleep(s.ctx, s.interval); err != nil {
			return nil, err
		}

		messages, err := s.fetch(s.ctx)
		if err != nil {
			return nil, err
		}
		reverse(messages)
		s.batch = messages
	}
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
