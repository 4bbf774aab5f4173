// Package snoo is a Go client for the Reddit API built around lazy iteration.
//
// # Overview
//
// The package has three layers. Direct API methods (GetHot, GetComments,
// GetUnread, ...) fetch one page or one resource. Lazy listings page through
// arbitrarily long result sets behind an iterator, fetching on demand.
// Streams poll forever, turning the listing endpoints into infinite
// sequences of new posts, comments or messages.
//
// # Quick Start
//
// Basic setup requires Reddit API credentials:
//
//	client, err := snoo.NewClient(&snoo.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "myapp/1.0 by /u/yourusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Authentication happens lazily on the first call, or explicitly via
// Connect. Add Username and Password to the Config for user authentication;
// with only ClientID and ClientSecret the client runs application-only.
//
// # Listings
//
// A Listing yields items one at a time, in server order, fetching the next
// page whenever its buffer runs out:
//
//	hot := client.NewHotListing(ctx, "golang")
//	for hot.HasNext() {
//		post, err := hot.Next()
//		if errors.Is(err, snoo.ErrNoMoreItems) {
//			break
//		}
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(post.Title)
//	}
//
// Running off the end of a listing is not an error; Next reports it with
// ErrNoMoreItems, and a transient fetch failure leaves the listing usable.
//
// # Comment Trees
//
// Reddit truncates deep or wide comment threads, replacing branches with
// "more" stubs. CommentTree hides the stubs: iterating the tree resolves
// them through /api/morechildren as they are reached and splices the results
// back into their threads.
//
//	_, tree, err := client.CommentTree(ctx, &types.CommentsRequest{
//		Subreddit: "golang",
//		PostID:    "abc123",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	comments, err := tree.Collect(0)
//
// # Streams
//
// Streams poll an endpoint on a fixed interval and yield each item once,
// oldest first. They end only when their context is cancelled.
//
//	stream := client.NewPostStream(ctx, "golang")
//	for {
//		post, err := stream.Next()
//		if err != nil {
//			break
//		}
//		fmt.Println("new post:", post.Title)
//	}
//
// # Rate Limiting
//
// The transport enforces a client-side request rate (60 per minute by
// default) and honors the server's rate-limit response headers, delaying
// requests when Reddit asks it to.
package snoo
