package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"

	"eduops.app/relay/internal/domain"
)

// envelope is the list response shape shared by every collection endpoint.
type envelope[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

type pageMeta struct {
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page"`
	NextCursor  string `json:"next_cursor"`
}

// paginate follows next_cursor when the platform returns one and page
// numbers otherwise. A page that fails after retries is yielded as an error;
// if the consumer keeps ranging and the page count is known, iteration moves
// on to the next page. Authentication errors always end the sequence.
func paginate[T any](ctx context.Context, c *accountClient, op, path string, stamp func(*T)) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		page := 1
		lastPage := 0
		cursor := ""
		seen := map[string]struct{}{}

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			items, meta, err := fetchPage[T](ctx, c, op, path, page, cursor)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				if domain.IsAuthentication(err) || ctx.Err() != nil || cursor != "" {
					return
				}
				if lastPage == 0 || page >= lastPage {
					return
				}
				c.logger.WarnContext(ctx, "skipping page after failure",
					"op", op,
					"page", page,
					"last_page", lastPage,
					"error", err)
				page++
				continue
			}

			if stamp != nil {
				for i := range items {
					stamp(&items[i])
				}
			}
			if !yield(items, nil) {
				return
			}

			if meta.LastPage > 0 {
				lastPage = meta.LastPage
			}

			switch {
			case meta.NextCursor != "":
				if _, dup := seen[meta.NextCursor]; dup {
					c.logger.WarnContext(ctx, "platform repeated a cursor, stopping", "op", op, "cursor", meta.NextCursor)
					return
				}
				seen[meta.NextCursor] = struct{}{}
				cursor = meta.NextCursor
			case meta.LastPage > 0 && currentPage(meta, page) < meta.LastPage:
				page = currentPage(meta, page) + 1
				cursor = ""
			case meta.LastPage == 0 && len(items) >= c.pageSize:
				// No meta at all: a full page means there may be more.
				page++
				cursor = ""
			default:
				return
			}
		}
	}
}

func currentPage(meta pageMeta, requested int) int {
	if meta.CurrentPage > 0 {
		return meta.CurrentPage
	}
	return requested
}

func fetchPage[T any](ctx context.Context, c *accountClient, op, path string, page int, cursor string) ([]T, pageMeta, error) {
	query := map[string]string{"limit": strconv.Itoa(c.pageSize)}
	if cursor != "" {
		query["cursor"] = cursor
	} else {
		query["page"] = strconv.Itoa(page)
	}

	body, err := c.get(ctx, op, path, query)
	if err != nil {
		return nil, pageMeta{}, err
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pageMeta{}, &domain.MalformedPayloadError{
			Source: op,
			Reason: fmt.Sprintf("decoding page %d: %v", page, err),
		}
	}
	return env.Data, env.Meta, nil
}

// Collect drains seq and stops at the first error.
func Collect[T any](seq iter.Seq2[[]T, error]) ([]T, error) {
	var out []T
	for items, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, items...)
	}
	return out, nil
}
