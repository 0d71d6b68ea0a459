package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/brizzai/zeroinbox/internal/models"
)

// UnreadPath is the backend endpoint listing unread messages
const UnreadPath = "/mail/unread"

// FetchUnread returns the number of unread messages the backend reports, up
// to limit. The count is the length of the returned JSON array.
func (c *Client) FetchUnread(ctx context.Context, limit int) (int, error) {
	const op = "fetch unread"

	if limit < 1 {
		return 0, &Error{Kind: models.KindUnreadFetchFailure, Op: op, Err: ErrInvalidLimit}
	}

	q := url.Values{}
	q.Set("max", strconv.Itoa(limit))

	req, err := c.newRequest(ctx, http.MethodGet, UnreadPath+"?"+q.Encode(), nil)
	if err != nil {
		kind := models.KindUnreadFetchFailure
		if errors.Is(err, ErrNoBaseURL) {
			kind = models.KindConfigurationMissing
		}
		return 0, &Error{Kind: kind, Op: op, Err: err}
	}

	resp, err := c.execute(req)
	if err != nil {
		return 0, &Error{Kind: models.KindUnreadFetchFailure, Op: op, Err: err}
	}

	if !resp.OK() {
		return 0, &Error{
			Kind:       models.KindUnreadFetchFailure,
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     detail(resp.Body),
		}
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(resp.Body, &messages); err != nil {
		return 0, &Error{
			Kind: models.KindUnreadFetchFailure,
			Op:   op,
			Err:  fmt.Errorf("expected a JSON array: %w", err),
		}
	}
	// null decodes into a nil slice without error
	if messages == nil {
		return 0, &Error{
			Kind:   models.KindUnreadFetchFailure,
			Op:     op,
			Detail: "expected a JSON array, got null",
		}
	}

	return len(messages), nil
}
