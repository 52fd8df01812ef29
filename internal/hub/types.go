// Package hub is a thin REST client for the inventory server. It fetches
// notification batches and implements resolve.Resolver over the server's
// linked resources.
package hub

import "encoding/json"

// meta is the _meta block every hub resource carries.
type meta struct {
	Href  string `json:"href"`
	Links []link `json:"links"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// versionView is the subset of a project or component version resource we read.
type versionView struct {
	VersionName string `json:"versionName"`
	Meta        meta   `json:"_meta"`
}

// ruleView is the subset of a policy rule resource we read.
type ruleView struct {
	Name string `json:"name"`
	Meta meta   `json:"_meta"`
}

// policyStatusView is a BOM component version policy status.
type policyStatusView struct {
	ApprovalStatus string `json:"approvalStatus"`
	Meta           meta   `json:"_meta"`
}

// notificationView is one item of GET /api/notifications.
type notificationView struct {
	Type      string          `json:"type"`
	CreatedAt string          `json:"createdAt"`
	Content   json.RawMessage `json:"content"`
	Meta      meta            `json:"_meta"`
}

type notificationPage struct {
	TotalCount int                `json:"totalCount"`
	Items      []notificationView `json:"items"`
}

type currentVersion struct {
	Version string `json:"version"`
}

const relPolicyRule = "policy-rule"
