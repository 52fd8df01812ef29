package hub

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/CosmoTheDev/hubwatch/models"
)

const (
	notificationsPath = "/api/notifications"
	pageSize          = 100
	// dateLayout is the timestamp format the notifications endpoint accepts.
	dateLayout = "2006-01-02T15:04:05.000Z"
)

// FetchSince returns every notification created strictly after since, oldest
// first. Pages are requested until the server's total count is reached.
// Records with an unreadable createdAt are returned first with Unreadable set.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]models.Notification, error) {
	end := time.Now().UTC()
	var out []models.Notification
	offset := 0

	for {
		params := url.Values{}
		params.Set("startDate", since.UTC().Format(dateLayout))
		params.Set("endDate", end.Format(dateLayout))
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page notificationPage
		if err := c.getJSON(ctx, notificationsPath+"?"+params.Encode(), &page); err != nil {
			return nil, fmt.Errorf("hub: fetch notifications: %w", err)
		}

		for _, item := range page.Items {
			n, err := toNotification(item)
			if err != nil {
				slog.Warn("notification has unreadable timestamp", "href", item.Meta.Href, "error", err)
				out = append(out, models.Notification{
					ID:         item.Meta.Href,
					Type:       models.NotificationType(item.Type),
					Content:    item.Content,
					Unreadable: fmt.Sprintf("unreadable createdAt %q", item.CreatedAt),
				})
				continue
			}
			if !n.CreatedAt.After(since) {
				continue
			}
			out = append(out, n)
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalCount {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	slog.Debug("fetched notifications", "since", since, "count", len(out))
	return out, nil
}

func toNotification(v notificationView) (models.Notification, error) {
	created, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return models.Notification{}, err
	}
	return models.Notification{
		ID:        v.Meta.Href,
		Type:      models.NotificationType(v.Type),
		CreatedAt: created,
		Content:   v.Content,
	}, nil
}
