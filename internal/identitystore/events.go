package identitystore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Events reads one page of the attendance event log. The log is a pure read
// projection over events produced by Register and Verify; there is no write
// path here.
func (c *Client) Events(ctx context.Context, query EventQuery) (*EventPage, error) {
	params := url.Values{}
	if query.Date != "" {
		params.Set("date", query.Date)
	}
	if query.Search != "" {
		params.Set("q", query.Search)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}

	endpoint := "events"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	page, err := doGetJSON[EventPage](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("listing attendance events: %w", err)
	}
	return page, nil
}
