package models

// ProjectVersionRef is a resolved project version reference.
type ProjectVersionRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ComponentVersionRef is a resolved component version reference.
type ComponentVersionRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PolicyRuleRef is a resolved policy rule reference.
type PolicyRuleRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PolicyStatusRef holds the rule URLs currently violated or overridden for a
// component version in a project version.
type PolicyStatusRef struct {
	URL      string   `json:"url"`
	RuleURLs []string `json:"rule_urls"`
}
