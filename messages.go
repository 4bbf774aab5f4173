package snoo

import (
	"context"
	"net/http"
	"net/url"

	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

// GetInbox retrieves the authenticated user's inbox: private messages,
// comment replies and username mentions. Provide a nil request for default
// pagination.
func (c *Client) GetInbox(ctx context.Context, request *types.MessagesRequest) (*types.MessagesResponse, error) {
	return c.getMessages(ctx, "inbox", request)
}

// GetUnread retrieves the authenticated user's unread inbox items. Items
// remain in the unread queue until marked read with MarkMessageRead.
func (c *Client) GetUnread(ctx context.Context, request *types.MessagesRequest) (*types.MessagesResponse, error) {
	return c.getMessages(ctx, "unread", request)
}

// GetSent retrieves messages the authenticated user has sent.
func (c *Client) GetSent(ctx context.Context, request *types.MessagesRequest) (*types.MessagesResponse, error) {
	return c.getMessages(ctx, "sent", request)
}

func (c *Client) getMessages(ctx context.Context, where string, request *types.MessagesRequest) (*types.MessagesResponse, error) {
	pagination := types.Pagination{}
	if request != nil {
		pagination = request.Pagination
		if request.Where != "" {
			where = request.Where
		}
	}

	if err := c.validator.ValidatePagination(pagination); err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	httpReq, err := c.client.NewRequest(ctx, http.MethodGet, "message/"+where, nil)
	if err != nil {
		return nil, err
	}
	applyPagination(httpReq, pagination)

	var result types.Thing
	if _, err := c.client.Do(httpReq, &result); err != nil {
		return nil, err
	}

	messages, listing, err := c.parser.ExtractMessages(&result)
	if err != nil {
		return nil, err
	}

	return &types.MessagesResponse{
		Messages:       messages,
		AfterFullname:  listing.AfterFullname,
		BeforeFullname: listing.BeforeFullname,
	}, nil
}

// MarkMessageRead marks one inbox item as read, removing it from the unread
// queue. The fullname may be a message ("t4_"), comment reply or mention.
func (c *Client) MarkMessageRead(ctx context.Context, fullname string) error {
	if fullname == "" {
		return &ClientError{Err: "fullname is required"}
	}

	form := url.Values{}
	form.Set("id", fullname)
	return c.postForm(ctx, "api/read_message", form, "read_message")
}

// MarkMessageUnread returns one inbox item to the unread queue.
func (c *Client) MarkMessageUnread(ctx context.Context, fullname string) error {
	if fullname == "" {
		return &ClientError{Err: "fullname is required"}
	}

	form := url.Values{}
	form.Set("id", fullname)
	return c.postForm(ctx, "api/unread_message", form, "unread_message")
}

// ComposeMessage sends a private message to another user.
func (c *Client) ComposeMessage(ctx context.Context, recipient, subject, text string) error {
	if recipient == "" {
		return &ClientError{Err: "recipient is required"}
	}
	if subject == "" {
		return &ClientError{Err: "subject is required"}
	}

	form := url.Values{}
	form.Set("to", recipient)
	form.Set("subject", subject)
	form.Set("text", text)
	form.Set("api_type", "json")
	return c.postForm(ctx, "api/compose", form, "compose")
}

// MessageReplies is not supported: the message inbox is flat, and Reddit
// exposes no per-message reply listing.
func (c *Client) MessageReplies(ctx context.Context, fullname string) ([]*types.MessageData, error) {
	return nil, &pkgerrs.NotSupportedError{
		Operation: "MessageReplies",
		Message:   "messages have no reply tree",
	}
}

// MessageReplyCount is not supported for the same reason as MessageReplies.
func (c *Client) MessageReplyCount(ctx context.Context, fullname string) (int, error) {
	return 0, &pkgerrs.NotSupportedError{
		Operation: "MessageReplyCount",
		Message:   "messages have no reply tree",
	}
}

// NewInboxListing returns a lazy listing over the full inbox.
func (c *Client) NewInboxListing(ctx context.Context) *Listing[*types.MessageData] {
	return c.newMessageListing(ctx, "inbox")
}

// NewUnreadListing returns a lazy listing over unread inbox items.
func (c *Client) NewUnreadListing(ctx context.Context) *Listing[*types.MessageData] {
	return c.newMessageListing(ctx, "unread")
}

func (c *Client) newMessageListing(ctx context.Context, where string) *Listing[*types.MessageData] {
	fetch := func(ctx context.Context, after string) (*types.Page[*types.MessageData], error) {
		resp, err := c.getMessages(ctx, where, &types.MessagesRequest{
			Pagination: types.Pagination{Limit: 100, After: after},
		})
		if err != nil {
			return nil, err
		}
		return &types.Page[*types.MessageData]{
			Items:  resp.Messages,
			After:  resp.AfterFullname,
			Before: resp.BeforeFullname,
		}, nil
	}
	return NewListing(ctx, "message/"+where, fetch)
}
