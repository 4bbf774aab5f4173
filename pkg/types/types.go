// Package types holds the wire-level data model for the Reddit API: the
// kind-tagged Thing envelope, listing pages and the decoded entity shapes.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ThingData holds the common fields for Reddit objects.
// It can be embedded into specific types like Post and Comment.
type ThingData struct {
	ID   string `json:"id"`   // ID (without prefix)
	Name string `json:"name"` // Full name (e.g., "t3_abc123")
}

// GetID returns the object's ID.
func (td ThingData) GetID() string {
	return td.ID
}

// GetName returns the object's full name.
func (td ThingData) GetName() string {
	return td.Name
}

// Thing is the envelope around every Reddit API object. The Kind tag
// ("Listing", "t1", "t3", "more", ...) selects how Data is decoded.
type Thing struct {
	ThingData
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Votable is an embeddable struct for things that can be voted on.
type Votable struct {
	Ups   int `json:"ups"`
	Downs int `json:"downs"`
	// Likes indicates the user's vote: true for upvote, false for downvote, null for no vote.
	Likes *bool `json:"likes"`
}

// Created is an embeddable struct for things that have a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// Edited represents a field that can be a boolean or a timestamp.
// If IsEdited is true and Timestamp is 0, it was an old edit marked as `true`.
// If IsEdited is true and Timestamp is non-zero, it's a modern edit with a timestamp.
// If IsEdited is false, the item was not edited.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle mixed types for the "edited" field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", string(data))
}

// ListingData contains the data for a Listing, which is used for pagination.
type ListingData struct {
	BeforeFullname string   `json:"before"` // Reddit fullname for pagination (previous page)
	AfterFullname  string   `json:"after"`  // Reddit fullname for pagination (next page)
	Modhash        string   `json:"modhash"`
	Children       []*Thing `json:"children"` // Raw Things with kind+data, parsed by caller
}

// Page is one fetched batch of a flat listing: the decoded items in server
// order plus the opaque continuation token for the next page. An empty After
// means the listing has no more pages.
type Page[T any] struct {
	Items  []T
	After  string
	Before string
}

// Pagination captures the shared pagination behaviour for Reddit listing
// endpoints. Reddit paginates with "fullnames" such as "t3_abc123", where
// "t3" indicates the type and "abc123" is the item ID.
type Pagination struct {
	// Limit specifies the number of items to retrieve per request.
	// Reddit enforces a maximum of 100. If 0, Reddit's default (25) is used.
	Limit int

	// After specifies the Reddit fullname after which to get items.
	// Cannot be used together with Before.
	After string

	// Before specifies the Reddit fullname before which to get items.
	// Cannot be used together with After.
	Before string
}

// PostsRequest describes a request to retrieve posts from a subreddit (or the
// front page, when Subreddit is left blank).
type PostsRequest struct {
	Subreddit string
	Pagination
}

// CommentsRequest describes a request to retrieve comments for a specific post.
type CommentsRequest struct {
	Subreddit string
	PostID    string

	// Sort specifies the comment sort order.
	// Valid values: "confidence" (default), "new", "top", "controversial", "old", "qa".
	Sort string

	Pagination
}

// MoreCommentsRequest describes a request to expand previously truncated
// comment trees via /api/morechildren.
type MoreCommentsRequest struct {
	LinkID     string
	CommentIDs []string

	// Sort specifies the comment sort order (see CommentsRequest.Sort).
	Sort string

	// Depth limits how deep reply chains are expanded. 0 means no limit.
	Depth int

	// Limit caps the number of comments returned. Reddit's default is 100.
	Limit int
}

// MessagesRequest describes a request for a private-message listing.
type MessagesRequest struct {
	// Where selects the message queue: "inbox", "unread" or "sent".
	Where string
	Pagination
}

// SubredditData contains the data for a Subreddit.
type SubredditData struct {
	ThingData
	AccountsActive    int     `json:"accounts_active"`
	Description       string  `json:"description"`
	DisplayName       string  `json:"display_name"`
	HeaderImg         *string `json:"header_img"`
	Over18            bool    `json:"over18"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int64   `json:"subscribers"`
	SubmissionType    string  `json:"submission_type"`
	SubredditType     string  `json:"subreddit_type"`
	Title             string  `json:"title"`
	URL               string  `json:"url"`
	UserIsBanned      *bool   `json:"user_is_banned"`
	UserIsContributor *bool   `json:"user_is_contributor"`
	UserIsModerator   *bool   `json:"user_is_moderator"`
	UserIsSubscriber  *bool   `json:"user_is_subscriber"`
}

// MessageData contains the data for a private Message.
type MessageData struct {
	ThingData
	Created
	Author           string          `json:"author"`
	Body             string          `json:"body"`
	BodyHTML         string          `json:"body_html"`
	Context          string          `json:"context"`
	FirstMessage     *int64          `json:"first_message"`
	FirstMessageName *string         `json:"first_message_name"`
	Likes            *bool           `json:"likes"`
	LinkTitle        string          `json:"link_title"`
	New              bool            `json:"new"`
	ParentID         *string         `json:"parent_id"`
	RepliesData      json.RawMessage `json:"replies"` // Raw replies data, handled separately
	Subject          string          `json:"subject"`
	Subreddit        *string         `json:"subreddit"`
	WasComment       bool            `json:"was_comment"`
}

// AccountData contains the data for a user Account.
type AccountData struct {
	ThingData
	Created
	CommentKarma     int    `json:"comment_karma"`
	HasMail          *bool  `json:"has_mail"`
	HasModMail       *bool  `json:"has_mod_mail"`
	HasVerifiedEmail *bool  `json:"has_verified_email"`
	InboxCount       int    `json:"inbox_count,omitempty"`
	IsFriend         bool   `json:"is_friend"`
	IsGold           bool   `json:"is_gold"`
	IsMod            bool   `json:"is_mod"`
	LinkKarma        int    `json:"link_karma"`
	Modhash          string `json:"modhash,omitempty"`
	Over18           bool   `json:"over_18"`
}

// MoreData is a deferred-expansion stub: a placeholder meaning additional
// children of ParentID exist but must be fetched in a separate batch request.
type MoreData struct {
	ThingData
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

// Post represents a Reddit post (link or self post).
type Post struct {
	ThingData
	Votable
	Created
	Author              string          `json:"author"`
	AuthorFlairCSSClass *string         `json:"author_flair_css_class"`
	AuthorFlairText     *string         `json:"author_flair_text"`
	Domain              string          `json:"domain"`
	Hidden              bool            `json:"hidden"`
	IsSelf              bool            `json:"is_self"`
	LinkFlairCSSClass   *string         `json:"link_flair_css_class"`
	LinkFlairText       *string         `json:"link_flair_text"`
	Locked              bool            `json:"locked"`
	Media               json.RawMessage `json:"media"`
	NumComments         int             `json:"num_comments"`
	Over18              bool            `json:"over_18"`
	Permalink           string          `json:"permalink"`
	Saved               bool            `json:"saved"`
	Score               int             `json:"score"`
	SelfText            string          `json:"selftext"`
	SelfTextHTML        *string         `json:"selftext_html"`
	Subreddit           string          `json:"subreddit"`
	SubredditID         string          `json:"subreddit_id"`
	Thumbnail           string          `json:"thumbnail"`
	Title               string          `json:"title"`
	URL                 string          `json:"url"`
	Edited              Edited          `json:"edited"` // Can be a boolean or a float64 timestamp
	Distinguished       *string         `json:"distinguished"`
	Stickied            bool            `json:"stickied"`
}

// Comment represents a Reddit comment. Replies holds children that were
// embedded inline in the same response (or attached later by the tree merge);
// it is populated by the parser, never directly from JSON.
type Comment struct {
	ThingData
	Votable
	Created
	Author              string     `json:"author"`
	AuthorFlairCSSClass *string    `json:"author_flair_css_class"`
	AuthorFlairText     *string    `json:"author_flair_text"`
	Body                string     `json:"body"`
	BodyHTML            string     `json:"body_html"`
	Edited              Edited     `json:"edited"`
	Gilded              int        `json:"gilded"`
	LinkID              string     `json:"link_id"`
	NumReports          *int       `json:"num_reports"`
	ParentID            string     `json:"parent_id"`
	Replies             []*Comment `json:"-"`
	Saved               bool       `json:"saved"`
	Score               int        `json:"score"`
	ScoreHidden         bool       `json:"score_hidden"`
	Subreddit           string     `json:"subreddit"`
	SubredditID         string     `json:"subreddit_id"`
	Distinguished       *string    `json:"distinguished"`
	Stickied            bool       `json:"stickied"`
}

// PostsResponse represents a page of posts with pagination info.
type PostsResponse struct {
	Posts          []*Post
	AfterFullname  string // Reddit fullname (e.g. "t3_abc123") of last item for next page
	BeforeFullname string // Reddit fullname (e.g. "t3_abc123") of first item for prev page
}

// CommentsResponse represents a post with its comment forest and the
// deferred-expansion stubs that were returned alongside it.
type CommentsResponse struct {
	Post     *Post
	Comments []*Comment
	More     []*MoreData
}

// MessagesResponse represents a page of private messages with pagination info.
type MessagesResponse struct {
	Messages       []*MessageData
	AfterFullname  string
	BeforeFullname string
}
