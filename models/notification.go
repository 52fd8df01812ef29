package models

import (
	"encoding/json"
	"time"
)

// NotificationType is the kind tag the hub attaches to every notification.
type NotificationType string

const (
	NotificationPolicyViolation NotificationType = "RULE_VIOLATION"
	NotificationPolicyOverride  NotificationType = "POLICY_OVERRIDE"
	NotificationVulnerability   NotificationType = "VULNERABILITY"
	NotificationVersionUpdate   NotificationType = "VERSION_UPDATE"
)

func (t NotificationType) String() string {
	return string(t)
}

// Notification is a raw event as fetched from the hub. Content is kept
// undecoded; each transformer decodes the shape for its own type.
type Notification struct {
	ID        string           `json:"id"         yaml:"id"`
	Type      NotificationType `json:"type"       yaml:"type"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Content   json.RawMessage  `json:"content"    yaml:"-"`
	// Unreadable is set when the fetched record could not be decoded. Such
	// events carry no usable CreatedAt and are reported as validation failures.
	Unreadable string `json:"-" yaml:"-"`
}

// RuleViolationContent is the payload of a RULE_VIOLATION notification.
type RuleViolationContent struct {
	ProjectName                  string                   `json:"projectName"`
	ProjectVersionName           string                   `json:"projectVersionName"`
	ProjectVersionLink           string                   `json:"projectVersionLink"`
	ComponentVersionsInViolation int                      `json:"componentVersionsInViolation"`
	ComponentVersionStatuses     []ComponentVersionStatus `json:"componentVersionStatuses"`
}

// ComponentVersionStatus lists the rules one component version violates.
type ComponentVersionStatus struct {
	ComponentName        string   `json:"componentName"`
	ComponentVersionLink string   `json:"componentVersionLink"`
	PolicyStatusLink     string   `json:"bomComponentVersionPolicyStatusLink"`
	PolicyRuleLinks      []string `json:"policies"`
}

// PolicyOverrideContent is the payload of a POLICY_OVERRIDE notification.
type PolicyOverrideContent struct {
	ProjectName          string   `json:"projectName"`
	ProjectVersionName   string   `json:"projectVersionName"`
	ProjectVersionLink   string   `json:"projectVersion"`
	ComponentName        string   `json:"componentName"`
	ComponentVersionName string   `json:"componentVersionName"`
	ComponentVersionLink string   `json:"componentVersion"`
	PolicyStatusLink     string   `json:"bomComponentVersionPolicyStatus"`
	PolicyRuleLinks      []string `json:"policies"`
	FirstName            string   `json:"firstName"`
	LastName             string   `json:"lastName"`
}

// VulnerabilityContent is the payload of a VULNERABILITY notification.
type VulnerabilityContent struct {
	ComponentName           string                           `json:"componentName"`
	VersionName             string                           `json:"versionName"`
	ComponentVersionLink    string                           `json:"componentVersionLink"`
	Severity                string                           `json:"severity"`
	NewVulnerabilityIDs     []VulnerabilitySourceQualifiedID `json:"newVulnerabilityIds"`
	UpdatedVulnerabilityIDs []VulnerabilitySourceQualifiedID `json:"updatedVulnerabilityIds"`
	DeletedVulnerabilityIDs []VulnerabilitySourceQualifiedID `json:"deletedVulnerabilityIds"`
	AffectedProjectVersions []AffectedProjectVersion         `json:"affectedProjectVersions"`
}

// VulnerabilitySourceQualifiedID names a vulnerability within its source (NVD, VULNDB, ...).
type VulnerabilitySourceQualifiedID struct {
	Source          string `json:"source"`
	VulnerabilityID string `json:"vulnerabilityId"`
}

// AffectedProjectVersion is a project version whose BOM contains the vulnerable component.
type AffectedProjectVersion struct {
	ProjectName        string `json:"projectName"`
	ProjectVersionName string `json:"projectVersionName"`
	ProjectVersionLink string `json:"projectVersion"`
}

// VersionUpdateContent is the payload of a VERSION_UPDATE notification: a
// component in a project version's BOM moved to another version.
type VersionUpdateContent struct {
	ProjectName          string `json:"projectName"`
	ProjectVersionLink   string `json:"projectVersion"`
	ComponentName        string `json:"componentName"`
	ComponentVersionLink string `json:"componentVersion"`
	PreviousVersionName  string `json:"previousVersionName"`
}
