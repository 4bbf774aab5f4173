package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/snoologic/snoo/pkg/errors"
	"github.com/snoologic/snoo/pkg/types"
)

const (
	minSubredditLength = 3
	maxSubredditLength = 21

	maxPaginationLimit = 100

	maxCommentIDs      = 100
	maxCommentIDLength = 100
)

// Validator provides validation for Reddit API parameters before a request
// is built.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubredditName checks a subreddit name against Reddit's naming rules.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}
	for i, ch := range name {
		valid := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
		if !valid {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character %q at position %d", ch, i)}
		}
	}
	return nil
}

// ValidatePagination checks limit bounds and that After/Before are not
// combined.
func (v *Validator) ValidatePagination(p types.Pagination) error {
	if p.Limit < 0 {
		return &pkgerrs.ConfigError{Field: "limit", Message: "limit cannot be negative"}
	}
	if p.Limit > maxPaginationLimit {
		return &pkgerrs.ConfigError{Field: "limit", Message: fmt.Sprintf("limit cannot exceed %d", maxPaginationLimit)}
	}
	if p.After != "" && p.Before != "" {
		return &pkgerrs.ConfigError{Field: "pagination", Message: "cannot set both After and Before"}
	}
	return nil
}

// ValidateCommentIDs checks a morechildren ID batch: bounded size, no empty
// or oversized entries. IDs are expected without the "t1_" prefix.
func (v *Validator) ValidateCommentIDs(ids []string) error {
	if len(ids) > maxCommentIDs {
		return &pkgerrs.ConfigError{Field: "commentIDs", Message: fmt.Sprintf("cannot request more than %d comment IDs at once", maxCommentIDs)}
	}
	for i, id := range ids {
		if id == "" {
			return &pkgerrs.ConfigError{Field: "commentIDs", Message: fmt.Sprintf("comment ID at position %d is empty", i)}
		}
		if len(id) > maxCommentIDLength {
			return &pkgerrs.ConfigError{Field: "commentIDs", Message: fmt.Sprintf("comment ID at position %d exceeds %d characters", i, maxCommentIDLength)}
		}
		if strings.ContainsAny(id, ", \t\n") {
			return &pkgerrs.ConfigError{Field: "commentIDs", Message: fmt.Sprintf("comment ID at position %d contains invalid characters", i)}
		}
	}
	return nil
}
