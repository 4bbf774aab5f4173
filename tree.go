package snoo

import (
	"context"
	"errors"

	"github.com/snoologic/snoo/pkg/types"
)

// MoreFetchFunc resolves one deferred-expansion stub into a flat batch of
// comments plus any further stubs the server produced while expanding.
type MoreFetchFunc func(ctx context.Context, stub *types.MoreData) ([]*types.Comment, []*types.MoreData, error)

// CommentTree reconstructs a threaded comment forest from flat batches and
// exposes it as a lazy, breadth-first draining sequence. The initial batch
// (top-level comments with inline replies, plus "more" stubs) seeds the
// tree; stubs are resolved through the fetch function mid-iteration, and
// the resulting comments are merged by parent fullname.
//
// Merging tolerates children arriving before their parents across expansion
// batches: such comments wait in an orphan registry keyed by the missing
// parent's fullname and are adopted, transitively, when it materializes. A
// parent that never arrives leaves its subtree permanently unyielded; the
// server offers no signal that a parent is missing for good, so this is a
// silent, documented omission rather than an error.
//
// A tree is not safe for concurrent use; like its buffers, it belongs to a
// single consumer.
type CommentTree struct {
	ctx    context.Context
	fetch  MoreFetchFunc
	linkID string
	rootID string

	queue   []*types.Comment
	index   map[string]*types.Comment
	yielded map[string]bool
	orphans map[string][]*types.Comment
	more    []*types.MoreData
}

// NewCommentTree builds a tree rooted at rootID (the fullname whose direct
// children the batch contains, usually the post's "t3_" fullname) from one
// flat batch. The comments' inline reply forests are kept as-is; stubs are
// queued for lazy resolution through fetch.
func NewCommentTree(ctx context.Context, linkID, rootID string, comments []*types.Comment, more []*types.MoreData, fetch MoreFetchFunc) *CommentTree {
	t := &CommentTree{
		ctx:     ctx,
		fetch:   fetch,
		linkID:  linkID,
		rootID:  rootID,
		index:   make(map[string]*types.Comment),
		yielded: make(map[string]bool),
		orphans: make(map[string][]*types.Comment),
	}

	for _, comment := range comments {
		if comment == nil {
			continue
		}
		t.attach(comment, nil)
	}
	for _, stub := range more {
		if stub != nil {
			t.more = append(t.more, stub)
		}
	}

	return t
}

// CommentTree fetches a post's comments and returns the post together with a
// lazily-expanding tree over them. Truncated branches are resolved through
// /api/morechildren as iteration reaches them.
func (c *Client) CommentTree(ctx context.Context, request *types.CommentsRequest) (*types.Post, *CommentTree, error) {
	resp, err := c.GetComments(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	linkID := request.PostID
	if len(linkID) < 3 || linkID[:3] != "t3_" {
		linkID = "t3_" + linkID
	}

	fetch := func(ctx context.Context, stub *types.MoreData) ([]*types.Comment, []*types.MoreData, error) {
		return c.GetMoreComments(ctx, &types.MoreCommentsRequest{
			LinkID:     linkID,
			CommentIDs: stub.Children,
			Sort:       request.Sort,
		})
	}

	tree := NewCommentTree(ctx, linkID, linkID, resp.Comments, resp.More, fetch)
	return resp.Post, tree, nil
}

// HasNext returns true while the tree may still produce comments: either
// queued nodes remain or unexpanded stubs do. A stub can resolve to nothing,
// so HasNext may be optimistically true right before the sequence ends.
func (t *CommentTree) HasNext() bool {
	return len(t.queue) > 0 || len(t.more) > 0
}

// Next returns the next comment in breadth-first order: all comments queued
// at a given moment drain before any of their children, and children
// discovered by resolving a stub are queued strictly after everything queued
// when the resolution was triggered.
//
// When the queue empties, Next resolves one pending stub (a blocking network
// fetch), merges the result and continues. Once queue and stubs are both
// exhausted it returns ErrNoMoreItems.
//
// A fetch failure is returned as-is and re-queues the stub, so a later call
// can retry it; the tree keeps everything that merged successfully.
func (t *CommentTree) Next() (*types.Comment, error) {
	for {
		if len(t.queue) > 0 {
			comment := t.queue[0]
			t.queue = t.queue[1:]
			t.yielded[comment.Name] = true
			t.queue = append(t.queue, comment.Replies...)
			return comment, nil
		}

		if len(t.more) == 0 {
			return nil, ErrNoMoreItems
		}

		stub := t.more[0]
		t.more = t.more[1:]
		if len(stub.Children) == 0 {
			continue
		}

		comments, mores, err := t.fetch(t.ctx, stub)
		if err != nil {
			t.more = append([]*types.MoreData{stub}, t.more...)
			return nil, err
		}

		t.more = append(t.more, mores...)
		t.merge(comments)
	}
}

// Collect drains up to max comments (all of them when max <= 0), resolving
// stubs as needed. On error the comments gathered so far are returned.
func (t *CommentTree) Collect(max int) ([]*types.Comment, error) {
	var comments []*types.Comment

	for t.HasNext() && (max <= 0 || len(comments) < max) {
		comment, err := t.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return comments, nil
			}
			return comments, err
		}
		comments = append(comments, comment)
	}

	return comments, nil
}

// merge reconciles one expansion batch into the tree. Comments attach to the
// root, to any already-materialized comment, or wait in the orphan registry
// until their parent arrives.
func (t *CommentTree) merge(batch []*types.Comment) {
	for _, comment := range batch {
		if comment == nil {
			continue
		}
		t.mergeComment(comment)
	}
}

func (t *CommentTree) mergeComment(comment *types.Comment) {
	if comment.ParentID == t.rootID {
		t.attach(comment, nil)
		return
	}

	if parent, ok := t.index[comment.ParentID]; ok {
		t.attach(comment, parent)
		return
	}

	// Parent not materialized yet. Pull any children already waiting under
	// this comment's own fullname onto it, then park it keyed by the parent
	// it is waiting for.
	if waiting, ok := t.orphans[comment.Name]; ok {
		delete(t.orphans, comment.Name)
		comment.Replies = append(comment.Replies, waiting...)
	}
	t.orphans[comment.ParentID] = append(t.orphans[comment.ParentID], comment)
}

// attach links a comment into the tree. A nil parent attaches at the root.
// The comment becomes drainable immediately if its parent's children were
// already flushed to the queue; otherwise it rides along when the parent is
// yielded. The comment's whole subtree is indexed, and any orphans waiting
// for a node in that subtree are adopted recursively.
func (t *CommentTree) attach(comment *types.Comment, parent *types.Comment) {
	if parent == nil {
		t.queue = append(t.queue, comment)
	} else {
		parent.Replies = append(parent.Replies, comment)
		if t.yielded[parent.Name] {
			t.queue = append(t.queue, comment)
		}
	}
	t.register(comment)
}

func (t *CommentTree) register(comment *types.Comment) {
	t.index[comment.Name] = comment

	for _, reply := range comment.Replies {
		if reply != nil {
			t.register(reply)
		}
	}

	if waiting, ok := t.orphans[comment.Name]; ok {
		delete(t.orphans, comment.Name)
		for _, orphan := range waiting {
			t.attach(orphan, comment)
		}
	}
}

// FlattenComments returns a forest as a flat slice, each comment followed by
// its descendants depth-first.
func FlattenComments(comments []*types.Comment) []*types.Comment {
	var result []*types.Comment
	WalkComments(comments, func(c *types.Comment) {
		result = append(result, c)
	})
	return result
}

// WalkComments applies fn to every comment in the forest, depth-first.
func WalkComments(comments []*types.Comment, fn func(*types.Comment)) {
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		fn(comment)
		WalkComments(comment.Replies, fn)
	}
}

// CommentForestDepth returns the maximum reply nesting depth of a forest;
// an empty forest has depth 0, a forest with no replies depth 1.
func CommentForestDepth(comments []*types.Comment) int {
	max := 0
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		depth := 1 + CommentForestDepth(comment.Replies)
		if depth > max {
			max = depth
		}
	}
	return max
}
