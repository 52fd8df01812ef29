package models

import (
	"fmt"
	"strings"
	"time"
)

// IdentityKey groups content items that describe the same component version
// within the same project version for the same notification type.
type IdentityKey struct {
	ProjectName      string
	ProjectVersion   string
	ComponentName    string
	ComponentVersion string
	Type             NotificationType
}

func (k IdentityKey) String() string {
	return strings.Join([]string{
		string(k.Type), k.ProjectName, k.ProjectVersion, k.ComponentName, k.ComponentVersion,
	}, "|")
}

// Content holds the fields every content item carries.
type Content struct {
	ProjectName      string           `json:"project_name"      yaml:"project_name"`
	ProjectVersion   string           `json:"project_version"   yaml:"project_version"`
	ComponentName    string           `json:"component_name"    yaml:"component_name"`
	ComponentVersion string           `json:"component_version" yaml:"component_version"`
	Type             NotificationType `json:"type"              yaml:"type"`
	CreatedAt        time.Time        `json:"created_at"        yaml:"created_at"`
}

// Key returns the identity key used for deduplication.
func (c Content) Key() IdentityKey {
	return IdentityKey{
		ProjectName:      c.ProjectName,
		ProjectVersion:   c.ProjectVersion,
		ComponentName:    c.ComponentName,
		ComponentVersion: c.ComponentVersion,
		Type:             c.Type,
	}
}

// Validate checks that all identity fields are present.
func (c Content) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ProjectName) == "" {
		missing = append(missing, "project name")
	}
	if strings.TrimSpace(c.ProjectVersion) == "" {
		missing = append(missing, "project version")
	}
	if strings.TrimSpace(c.ComponentName) == "" {
		missing = append(missing, "component name")
	}
	if strings.TrimSpace(c.ComponentVersion) == "" {
		missing = append(missing, "component version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("content item missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ContentItem is a normalized, fully resolved record derived from one or
// more notifications. Implementations are values; Merge never mutates its
// receiver or argument.
type ContentItem interface {
	Base() Content
	Key() IdentityKey
	Validate() error
	// Merge folds other into the receiver when both share an identity key.
	// Collections are unioned in order; scalars keep the value of the item
	// with the earliest CreatedAt, even when that value is empty.
	Merge(other ContentItem) ContentItem
}

// PolicyViolationContentItem reports a component version violating policy rules.
type PolicyViolationContentItem struct {
	Content   `yaml:",inline"`
	RuleNames []string `json:"rule_names" yaml:"rule_names"`
}

func (p PolicyViolationContentItem) Base() Content { return p.Content }

func (p PolicyViolationContentItem) Validate() error {
	if err := p.Content.Validate(); err != nil {
		return err
	}
	if len(p.RuleNames) == 0 {
		return fmt.Errorf("policy violation has no rule names")
	}
	return nil
}

func (p PolicyViolationContentItem) Merge(other ContentItem) ContentItem {
	o, ok := other.(PolicyViolationContentItem)
	if !ok || o.Key() != p.Key() {
		return p
	}
	out := p
	out.Content = mergeContent(p.Content, o.Content)
	out.RuleNames = unionStrings(p.RuleNames, o.RuleNames)
	return out
}

// PolicyOverrideContentItem reports a policy violation that a user overrode.
type PolicyOverrideContentItem struct {
	Content   `yaml:",inline"`
	RuleNames []string `json:"rule_names" yaml:"rule_names"`
	FirstName string   `json:"first_name" yaml:"first_name"`
	LastName  string   `json:"last_name"  yaml:"last_name"`
}

func (p PolicyOverrideContentItem) Base() Content { return p.Content }

func (p PolicyOverrideContentItem) Validate() error {
	if err := p.Content.Validate(); err != nil {
		return err
	}
	if len(p.RuleNames) == 0 {
		return fmt.Errorf("policy override has no rule names")
	}
	return nil
}

func (p PolicyOverrideContentItem) Merge(other ContentItem) ContentItem {
	o, ok := other.(PolicyOverrideContentItem)
	if !ok || o.Key() != p.Key() {
		return p
	}
	otherFirst := o.CreatedAt.Before(p.CreatedAt)
	out := p
	out.Content = mergeContent(p.Content, o.Content)
	out.RuleNames = unionStrings(p.RuleNames, o.RuleNames)
	out.FirstName = pickScalar(p.FirstName, o.FirstName, otherFirst)
	out.LastName = pickScalar(p.LastName, o.LastName, otherFirst)
	return out
}

// VulnerabilityContentItem reports vulnerabilities added, updated or removed
// on a component version used by a project version.
type VulnerabilityContentItem struct {
	Content          `yaml:",inline"`
	VulnerabilityIDs []string      `json:"vulnerability_ids" yaml:"vulnerability_ids"`
	Severity         SeverityLevel `json:"severity"          yaml:"severity"`
}

func (v VulnerabilityContentItem) Base() Content { return v.Content }

func (v VulnerabilityContentItem) Validate() error {
	if err := v.Content.Validate(); err != nil {
		return err
	}
	if len(v.VulnerabilityIDs) == 0 {
		return fmt.Errorf("vulnerability item has no vulnerability ids")
	}
	return nil
}

func (v VulnerabilityContentItem) Merge(other ContentItem) ContentItem {
	o, ok := other.(VulnerabilityContentItem)
	if !ok || o.Key() != v.Key() {
		return v
	}
	out := v
	out.Content = mergeContent(v.Content, o.Content)
	out.VulnerabilityIDs = unionStrings(v.VulnerabilityIDs, o.VulnerabilityIDs)
	out.Severity = SeverityLevel(pickScalar(string(v.Severity), string(o.Severity), o.CreatedAt.Before(v.CreatedAt)))
	return out
}

// VersionUpdateContentItem reports a component version replacing another in a BOM.
type VersionUpdateContentItem struct {
	Content         `yaml:",inline"`
	PreviousVersion string `json:"previous_version,omitempty" yaml:"previous_version,omitempty"`
}

func (v VersionUpdateContentItem) Base() Content { return v.Content }

func (v VersionUpdateContentItem) Merge(other ContentItem) ContentItem {
	o, ok := other.(VersionUpdateContentItem)
	if !ok || o.Key() != v.Key() {
		return v
	}
	out := v
	out.Content = mergeContent(v.Content, o.Content)
	out.PreviousVersion = pickScalar(v.PreviousVersion, o.PreviousVersion, o.CreatedAt.Before(v.CreatedAt))
	return out
}

func mergeContent(a, b Content) Content {
	out := a
	if b.CreatedAt.Before(a.CreatedAt) {
		out.CreatedAt = b.CreatedAt
	}
	return out
}

// pickScalar keeps a unless b belongs to a strictly earlier item.
func pickScalar(a, b string, bEarlier bool) string {
	if bEarlier {
		return b
	}
	return a
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
