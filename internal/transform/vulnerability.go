package transform

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// Vulnerability transforms VULNERABILITY notifications into one item per
// affected project version.
type Vulnerability struct{}

func (Vulnerability) Type() models.NotificationType { return models.NotificationVulnerability }

func (Vulnerability) Transform(ctx context.Context, n models.Notification, r resolve.Resolver) (Result, error) {
	var c models.VulnerabilityContent
	if err := decode(n, &c); err != nil {
		return Result{}, err
	}
	if c.ComponentVersionLink == "" {
		return Result{}, invalid("vulnerability notification has no component version link")
	}

	ids := vulnerabilityIDs(c)
	if len(ids) == 0 {
		return Result{}, invalid("vulnerability notification lists no vulnerability ids")
	}
	if len(c.AffectedProjectVersions) == 0 {
		return Result{}, invalid("vulnerability notification lists no affected project versions")
	}

	cv, err := r.ResolveComponentVersion(ctx, c.ComponentVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("component version of %q: %w", c.ComponentName, err)
	}

	pvs := make([]models.ProjectVersionRef, len(c.AffectedProjectVersions))
	for i, apv := range c.AffectedProjectVersions {
		if apv.ProjectVersionLink == "" {
			return Result{}, invalid("affected project %q has no project version link", apv.ProjectName)
		}
		pv, err := r.ResolveProjectVersion(ctx, apv.ProjectVersionLink)
		if err != nil {
			return Result{}, fmt.Errorf("project version of %q: %w", apv.ProjectName, err)
		}
		pvs[i] = pv
	}

	severity := models.MapSeverity(c.Severity)
	var res Result
	for i, apv := range c.AffectedProjectVersions {
		res.Items = append(res.Items, models.VulnerabilityContentItem{
			Content: models.Content{
				ProjectName:      apv.ProjectName,
				ProjectVersion:   firstNonEmpty(pvs[i].Name, apv.ProjectVersionName),
				ComponentName:    c.ComponentName,
				ComponentVersion: firstNonEmpty(cv.Name, c.VersionName),
				Type:             n.Type,
				CreatedAt:        n.CreatedAt,
			},
			VulnerabilityIDs: append([]string(nil), ids...),
			Severity:         severity,
		})
	}
	return res, nil
}

func vulnerabilityIDs(c models.VulnerabilityContent) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, list := range [][]models.VulnerabilitySourceQualifiedID{
		c.NewVulnerabilityIDs, c.UpdatedVulnerabilityIDs, c.DeletedVulnerabilityIDs,
	} {
		for _, id := range list {
			if id.VulnerabilityID == "" {
				continue
			}
			if _, ok := seen[id.VulnerabilityID]; ok {
				continue
			}
			seen[id.VulnerabilityID] = struct{}{}
			ids = append(ids, id.VulnerabilityID)
		}
	}
	return ids
}
