package internal

import (
	"encoding/json"
	"fmt"

	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

// Parser is the entity decoder: it turns kind-tagged Thing envelopes into
// typed nodes. Comments keep their inline reply forest attached, and every
// "more" stub encountered at any depth is surfaced flat, keyed by the
// fullname of the parent it expands.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// ParseThing determines the type of a Thing and returns the appropriate typed struct.
func (p *Parser) ParseThing(thing *types.Thing) (interface{}, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}

	switch thing.Kind {
	case "Listing":
		return p.ParseListing(thing)
	case "t1":
		comment, _, err := p.ParseComment(thing)
		return comment, err
	case "t2":
		return p.ParseAccount(thing)
	case "t3":
		return p.ParseLink(thing)
	case "t4":
		return p.ParseMessage(thing)
	case "t5":
		return p.ParseSubreddit(thing)
	case "more":
		return p.ParseMore(thing)
	default:
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("unknown kind: %s", thing.Kind)}
	}
}

// ParseListing extracts a ListingData from a Thing of kind "Listing".
func (p *Parser) ParseListing(thing *types.Thing) (*types.ListingData, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "Listing" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected Listing, got %s", thing.Kind)}
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "Listing", Err: err}
	}
	return &listing, nil
}

// ParseLink extracts a Post from a Thing of kind "t3".
func (p *Parser) ParseLink(thing *types.Thing) (*types.Post, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "t3" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected t3 (Link), got %s", thing.Kind)}
	}

	var post types.Post
	if err := json.Unmarshal(thing.Data, &post); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "Link", Err: err}
	}

	return &post, nil
}

// ParseComment extracts a Comment from a Thing of kind "t1". Replies embedded
// inline in the same payload are parsed recursively onto Comment.Replies;
// every "more" stub found in the subtree is returned flat, in encounter
// order, with its parent fullname filled in.
func (p *Parser) ParseComment(thing *types.Thing) (*types.Comment, []*types.MoreData, error) {
	if thing == nil {
		return nil, nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "t1" {
		return nil, nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected t1 (Comment), got %s", thing.Kind)}
	}

	var comment types.Comment
	if err := json.Unmarshal(thing.Data, &comment); err != nil {
		return nil, nil, &pkgerrs.ParseError{Operation: "Comment", Err: err}
	}

	// The replies field is a Listing Thing when replies exist, or "" when
	// there are none.
	var rawData struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawData); err != nil || len(rawData.Replies) == 0 {
		return &comment, nil, nil
	}
	if rawData.Replies[0] != '{' {
		return &comment, nil, nil
	}

	var repliesThing types.Thing
	if err := json.Unmarshal(rawData.Replies, &repliesThing); err != nil {
		return nil, nil, &pkgerrs.ParseError{Operation: "Comment replies", Err: err}
	}

	children, more, err := p.ExtractComments(&repliesThing)
	if err != nil {
		return nil, nil, err
	}
	comment.Replies = children

	// A bare stub under this comment names its children but may omit the
	// parent; it expands this comment.
	for _, m := range more {
		if m.ParentID == "" {
			m.ParentID = comment.Name
		}
	}

	return &comment, more, nil
}

// ParseSubreddit extracts a SubredditData from a Thing of kind "t5".
func (p *Parser) ParseSubreddit(thing *types.Thing) (*types.SubredditData, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "t5" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected t5 (Subreddit), got %s", thing.Kind)}
	}

	var subreddit types.SubredditData
	if err := json.Unmarshal(thing.Data, &subreddit); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "Subreddit", Err: err}
	}
	return &subreddit, nil
}

// ParseAccount extracts an AccountData from a Thing of kind "t2".
func (p *Parser) ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "t2" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected t2 (Account), got %s", thing.Kind)}
	}

	var account types.AccountData
	if err := json.Unmarshal(thing.Data, &account); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "Account", Err: err}
	}
	return &account, nil
}

// ParseMessage extracts a MessageData from a Thing of kind "t4".
func (p *Parser) ParseMessage(thing *types.Thing) (*types.MessageData, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "t4" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected t4 (Message), got %s", thing.Kind)}
	}

	var message types.MessageData
	if err := json.Unmarshal(thing.Data, &message); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "Message", Err: err}
	}
	return &message, nil
}

// ParseMore extracts a MoreData stub from a Thing of kind "more".
func (p *Parser) ParseMore(thing *types.Thing) (*types.MoreData, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != "more" {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected more, got %s", thing.Kind)}
	}

	var more types.MoreData
	if err := json.Unmarshal(thing.Data, &more); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "More", Err: err}
	}
	return &more, nil
}

// ExtractPosts extracts all Post objects from a listing Thing.
func (p *Parser) ExtractPosts(listing *types.Thing) ([]*types.Post, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	posts := make([]*types.Post, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child.Kind != "t3" {
			continue
		}
		post, err := p.ParseLink(child)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// ExtractComments decodes a comment batch: the top-level comments (each with
// its inline reply forest attached) and every deferred-expansion stub from
// any depth, both in server order. The argument may be a Listing or a single
// t1 Thing.
func (p *Parser) ExtractComments(thing *types.Thing) ([]*types.Comment, []*types.MoreData, error) {
	if thing == nil {
		return nil, nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}

	if thing.Kind == "t1" {
		comment, more, err := p.ParseComment(thing)
		if err != nil {
			return nil, nil, err
		}
		return []*types.Comment{comment}, more, nil
	}

	if thing.Kind != "Listing" {
		return nil, nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected Listing or t1, got %s", thing.Kind)}
	}

	listingData, err := p.ParseListing(thing)
	if err != nil {
		return nil, nil, err
	}

	comments := make([]*types.Comment, 0, len(listingData.Children))
	var mores []*types.MoreData

	for _, child := range listingData.Children {
		switch child.Kind {
		case "t1":
			comment, nested, err := p.ParseComment(child)
			if err != nil {
				return nil, nil, err
			}
			comments = append(comments, comment)
			mores = append(mores, nested...)
		case "more":
			more, err := p.ParseMore(child)
			if err != nil {
				return nil, nil, err
			}
			mores = append(mores, more)
		default:
			return nil, nil, &pkgerrs.ParseError{Message: fmt.Sprintf("unexpected kind %s in comment listing", child.Kind)}
		}
	}

	return comments, mores, nil
}

// ExtractPostAndComments parses the typical response from the comments
// endpoint, which contains [post_listing, comments_listing] or occasionally
// a single comments listing.
func (p *Parser) ExtractPostAndComments(response []*types.Thing) (*types.Post, []*types.Comment, []*types.MoreData, error) {
	if len(response) == 0 {
		return nil, nil, nil, &pkgerrs.ParseError{Message: "empty comments response"}
	}

	if len(response) >= 2 {
		var post *types.Post
		if posts, err := p.ExtractPosts(response[0]); err == nil && len(posts) > 0 {
			post = posts[0]
		}

		comments, mores, err := p.ExtractComments(response[1])
		if err != nil {
			return nil, nil, nil, err
		}
		return post, comments, mores, nil
	}

	comments, mores, err := p.ExtractComments(response[0])
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, comments, mores, nil
}

// ExtractMessages extracts private messages from a message listing Thing,
// returning the listing data alongside for pagination tokens.
func (p *Parser) ExtractMessages(listing *types.Thing) ([]*types.MessageData, *types.ListingData, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, nil, err
	}

	messages := make([]*types.MessageData, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child.Kind != "t4" {
			continue
		}
		message, err := p.ParseMessage(child)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, listingData, nil
}
