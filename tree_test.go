package snoo

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/snoologic/snoo/pkg/types"
)

const treeRoot = "t3_post"

func mkComment(name, parent string, replies ...*types.Comment) *types.Comment {
	c := &types.Comment{ParentID: parent, Replies: replies}
	c.Name = name
	return c
}

func mkStub(parent string, children ...string) *types.MoreData {
	return &types.MoreData{ParentID: parent, Children: children}
}

type stubBatch struct {
	comments []*types.Comment
	more     []*types.MoreData
}

// stubFetcher resolves stubs from a canned map keyed by the stub's first
// child ID. Fetches can be scripted to fail once.
type stubFetcher struct {
	batches map[string]stubBatch
	calls   []string
	errs    map[string]error
	failed  map[string]bool
}

func newStubFetcher(batches map[string]stubBatch) *stubFetcher {
	return &stubFetcher{
		batches: batches,
		errs:    make(map[string]error),
		failed:  make(map[string]bool),
	}
}

func (f *stubFetcher) failOnce(key string, err error) {
	f.errs[key] = err
}

func (f *stubFetcher) fetch(_ context.Context, stub *types.MoreData) ([]*types.Comment, []*types.MoreData, error) {
	key := stub.Children[0]
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok && !f.failed[key] {
		f.failed[key] = true
		return nil, nil, err
	}
	batch := f.batches[key]
	return batch.comments, batch.more, nil
}

func drainNames(t *testing.T, tree *CommentTree) []string {
	t.Helper()
	comments, err := tree.Collect(0)
	require.NoError(t, err)
	names := make([]string, 0, len(comments))
	for _, c := range comments {
		names = append(names, c.Name)
	}
	return names
}

func TestCommentTreeDrainsBreadthFirst(t *testing.T) {
	// A and E are top-level; B and C reply to A, D replies to B.
	d := mkComment("t1_D", "t1_B")
	b := mkComment("t1_B", "t1_A", d)
	c := mkComment("t1_C", "t1_A")
	a := mkComment("t1_A", treeRoot, b, c)
	e := mkComment("t1_E", treeRoot)

	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a, e}, nil, nil)

	got := drainNames(t, tree)
	want := []string{"t1_A", "t1_E", "t1_B", "t1_C", "t1_D"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("drain order mismatch (-want +got):\n%s", diff)
	}
	require.False(t, tree.HasNext())
}

func TestCommentTreeMergesChildBeforeParent(t *testing.T) {
	// The expansion batch carries C before its parent B; both must end up
	// threaded and drained after A.
	fetcher := newStubFetcher(map[string]stubBatch{
		"b": {comments: []*types.Comment{
			mkComment("t1_C", "t1_B"),
			mkComment("t1_B", "t1_A"),
		}},
	})

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("t1_A", "b", "c")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A", "t1_B", "t1_C"}, got)

	// C was threaded under B, not attached to the root.
	require.Len(t, a.Replies, 1)
	require.Equal(t, "t1_B", a.Replies[0].Name)
	require.Len(t, a.Replies[0].Replies, 1)
	require.Equal(t, "t1_C", a.Replies[0].Replies[0].Name)
}

func TestCommentTreeOrphansSurviveAcrossBatches(t *testing.T) {
	// C arrives in one expansion batch, its parent B only in a later one.
	fetcher := newStubFetcher(map[string]stubBatch{
		"c": {comments: []*types.Comment{mkComment("t1_C", "t1_B")}},
		"b": {comments: []*types.Comment{mkComment("t1_B", "t1_A")}},
	})

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("t1_A", "c"), mkStub("t1_A", "b")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A", "t1_B", "t1_C"}, got)
}

func TestCommentTreeResultIndependentOfBatchOrder(t *testing.T) {
	build := func(stubs []*types.MoreData) (*types.Comment, []string) {
		fetcher := newStubFetcher(map[string]stubBatch{
			"b": {comments: []*types.Comment{mkComment("t1_B", "t1_A")}},
			"c": {comments: []*types.Comment{mkComment("t1_C", "t1_B")}},
			"d": {comments: []*types.Comment{mkComment("t1_D", "t1_C")}},
		})
		a := mkComment("t1_A", treeRoot)
		tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
			[]*types.Comment{a}, stubs, fetcher.fetch)
		names := drainNames(t, tree)
		sort.Strings(names)
		return a, names
	}

	orders := [][]*types.MoreData{
		{mkStub("", "b"), mkStub("", "c"), mkStub("", "d")},
		{mkStub("", "d"), mkStub("", "c"), mkStub("", "b")},
		{mkStub("", "c"), mkStub("", "b"), mkStub("", "d")},
	}

	for _, stubs := range orders {
		root, names := build(stubs)
		require.Equal(t, []string{"t1_A", "t1_B", "t1_C", "t1_D"}, names)

		// The chain A <- B <- C <- D holds regardless of arrival order.
		require.Len(t, root.Replies, 1)
		b := root.Replies[0]
		require.Equal(t, "t1_B", b.Name)
		require.Len(t, b.Replies, 1)
		c := b.Replies[0]
		require.Equal(t, "t1_C", c.Name)
		require.Len(t, c.Replies, 1)
		require.Equal(t, "t1_D", c.Replies[0].Name)
	}
}

func TestCommentTreeDeepOrphanChainInOneBatch(t *testing.T) {
	// D and C arrive together, deepest first, with B still missing; the
	// whole chain must assemble when B finally shows up.
	fetcher := newStubFetcher(map[string]stubBatch{
		"d": {comments: []*types.Comment{
			mkComment("t1_D", "t1_C"),
			mkComment("t1_C", "t1_B"),
		}},
		"b": {comments: []*types.Comment{mkComment("t1_B", "t1_A")}},
	})

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("", "d"), mkStub("", "b")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A", "t1_B", "t1_C", "t1_D"}, got)
}

func TestCommentTreeDropsUnresolvedOrphans(t *testing.T) {
	// X's parent never arrives: the drain completes without X and without
	// an error.
	fetcher := newStubFetcher(map[string]stubBatch{
		"x": {comments: []*types.Comment{mkComment("t1_X", "t1_missing")}},
	})

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("", "x")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A"}, got)
	require.False(t, tree.HasNext())
}

func TestCommentTreeFetchErrorRequeuesStub(t *testing.T) {
	fetcher := newStubFetcher(map[string]stubBatch{
		"b": {comments: []*types.Comment{mkComment("t1_B", "t1_A")}},
	})
	transient := errors.New("connection reset")
	fetcher.failOnce("b", transient)

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("t1_A", "b")},
		fetcher.fetch)

	first, err := tree.Next()
	require.NoError(t, err)
	require.Equal(t, "t1_A", first.Name)

	_, err = tree.Next()
	require.ErrorIs(t, err, transient)
	require.True(t, tree.HasNext())

	// The retry resolves the same stub.
	next, err := tree.Next()
	require.NoError(t, err)
	require.Equal(t, "t1_B", next.Name)
	require.Equal(t, []string{"b", "b"}, fetcher.calls)
}

func TestCommentTreeSkipsEmptyStubs(t *testing.T) {
	fetcher := newStubFetcher(nil)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{mkComment("t1_A", treeRoot)},
		[]*types.MoreData{mkStub("t1_A")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A"}, got)
	require.Empty(t, fetcher.calls)
}

func TestCommentTreeExpansionYieldsNestedStubs(t *testing.T) {
	// Expanding one stub surfaces another; both rounds of comments drain.
	fetcher := newStubFetcher(map[string]stubBatch{
		"b": {
			comments: []*types.Comment{mkComment("t1_B", "t1_A")},
			more:     []*types.MoreData{mkStub("t1_B", "c")},
		},
		"c": {comments: []*types.Comment{mkComment("t1_C", "t1_B")}},
	})

	a := mkComment("t1_A", treeRoot)
	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a},
		[]*types.MoreData{mkStub("t1_A", "b")},
		fetcher.fetch)

	got := drainNames(t, tree)
	require.Equal(t, []string{"t1_A", "t1_B", "t1_C"}, got)
	require.Equal(t, []string{"b", "c"}, fetcher.calls)
}

func TestCommentTreeCollectMax(t *testing.T) {
	b := mkComment("t1_B", "t1_A")
	a := mkComment("t1_A", treeRoot, b)
	e := mkComment("t1_E", treeRoot)

	tree := NewCommentTree(context.Background(), treeRoot, treeRoot,
		[]*types.Comment{a, e}, nil, nil)

	firstTwo, err := tree.Collect(2)
	require.NoError(t, err)
	require.Len(t, firstTwo, 2)

	rest, err := tree.Collect(0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "t1_B", rest[0].Name)
}

func TestFlattenComments(t *testing.T) {
	d := mkComment("t1_D", "t1_B")
	b := mkComment("t1_B", "t1_A", d)
	a := mkComment("t1_A", treeRoot, b)
	e := mkComment("t1_E", treeRoot)

	flat := FlattenComments([]*types.Comment{a, e})
	names := make([]string, 0, len(flat))
	for _, c := range flat {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"t1_A", "t1_B", "t1_D", "t1_E"}, names)
}

func TestCommentForestDepth(t *testing.T) {
	require.Equal(t, 0, CommentForestDepth(nil))

	flatForest := []*types.Comment{mkComment("t1_A", treeRoot)}
	require.Equal(t, 1, CommentForestDepth(flatForest))

	d := mkComment("t1_D", "t1_B")
	b := mkComment("t1_B", "t1_A", d)
	a := mkComment("t1_A", treeRoot, b)
	require.Equal(t, 3, CommentForestDepth([]*types.Comment{a}))
}
