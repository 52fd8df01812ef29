package transform

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// VersionUpdate transforms VERSION_UPDATE notifications.
type VersionUpdate struct{}

func (VersionUpdate) Type() models.NotificationType { return models.NotificationVersionUpdate }

func (VersionUpdate) Transform(ctx context.Context, n models.Notification, r resolve.Resolver) (Result, error) {
	var c models.VersionUpdateContent
	if err := decode(n, &c); err != nil {
		return Result{}, err
	}
	if c.ProjectVersionLink == "" || c.ComponentVersionLink == "" {
		return Result{}, invalid("version update is missing a project or component version link")
	}

	pv, err := r.ResolveProjectVersion(ctx, c.ProjectVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("project version: %w", err)
	}
	cv, err := r.ResolveComponentVersion(ctx, c.ComponentVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("component version of %q: %w", c.ComponentName, err)
	}

	return Result{Items: []models.ContentItem{models.VersionUpdateContentItem{
		Content: models.Content{
			ProjectName:      c.ProjectName,
			ProjectVersion:   pv.Name,
			ComponentName:    c.ComponentName,
			ComponentVersion: cv.Name,
			Type:             n.Type,
			CreatedAt:        n.CreatedAt,
		},
		PreviousVersion: c.PreviousVersionName,
	}}}, nil
}
