package workflow

import "strings"

// TaskType is the classification tag assigned to a task description.
type TaskType string

const (
	// TaskTypeDefault is the reserved fallback when no keywords match.
	TaskTypeDefault TaskType = "default"
	// TaskTypeDesignContent covers Figma reads and Amplience placement work.
	TaskTypeDesignContent TaskType = "design_content"
	// TaskTypeProductSearch covers commerce catalog and product lookups.
	TaskTypeProductSearch TaskType = "product_search"
	// TaskTypeReporting covers analytics and report generation.
	TaskTypeReporting TaskType = "reporting"
	// TaskTypeCodeQuality covers Sonar rule checks and static analysis.
	TaskTypeCodeQuality TaskType = "code_quality"
	// TaskTypeTicketManagement covers JIRA and Azure DevOps operations.
	TaskTypeTicketManagement TaskType = "ticket_management"
)

// ClassifierRule associates a task type with its keyword set. Keywords are
// matched as case-insensitive substrings of the task description.
type ClassifierRule struct {
	Type     TaskType `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// OverrideRule short-circuits classification to one task type whenever the
// marker substring appears in the description, regardless of keyword scores.
type OverrideRule struct {
	Marker string   `yaml:"marker"`
	Type   TaskType `yaml:"type"`
}

// Classifier maps task descriptions to task types via deterministic keyword
// scoring. It is a pure component: no side effects, no I/O.
type Classifier struct {
	rules    []ClassifierRule
	override *OverrideRule
}

// NewClassifier creates a classifier from an ordered rule table. Rule order
// is significant: when two types score equally, the earlier rule wins.
func NewClassifier(rules []ClassifierRule, override *OverrideRule) *Classifier {
	copied := make([]ClassifierRule, len(rules))
	copy(copied, rules)
	return &Classifier{rules: copied, override: override}
}

// NewDefaultClassifier creates a classifier with the built-in rule table.
// The figma.com URL marker overrides scoring to the design content type.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(defaultClassifierRules(), &OverrideRule{
		Marker: "figma.com",
		Type:   TaskTypeDesignContent,
	})
}

// Classify maps a description to a task type. The override marker is checked
// first; otherwise each rule scores the count of its distinct keywords found
// in the lowercased description and the highest score wins, ties resolved in
// rule order. A zero score across all rules yields TaskTypeDefault.
func (c *Classifier) Classify(description string) TaskType {
	lowered := strings.ToLower(description)

	if c.override != nil && c.override.Marker != "" && strings.Contains(lowered, strings.ToLower(c.override.Marker)) {
		return c.override.Type
	}

	best := TaskTypeDefault
	bestScore := 0
	for _, rule := range c.rules {
		score := 0
		counted := make(map[string]bool, len(rule.Keywords))
		for _, keyword := range rule.Keywords {
			k := strings.ToLower(keyword)
			if k == "" || counted[k] {
				continue
			}
			if strings.Contains(lowered, k) {
				counted[k] = true
				score++
			}
		}
		if score > bestScore {
			best = rule.Type
			bestScore = score
		}
	}
	return best
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Classifier) Rules() []ClassifierRule {
	out := make([]ClassifierRule, len(c.rules))
	copy(out, c.rules)
	return out
}

func defaultClassifierRules() []ClassifierRule {
	return []ClassifierRule{
		{Type: TaskTypeDesignContent, Keywords: []string{
			"figma", "design", "amplience", "placement", "banner", "content slot", "layout",
		}},
		{Type: TaskTypeProductSearch, Keywords: []string{
			"product", "commerce", "catalog", "search", "sku", "price", "inventory",
		}},
		{Type: TaskTypeReporting, Keywords: []string{
			"report", "analytics", "metrics", "dashboard", "statistics",
		}},
		{Type: TaskTypeCodeQuality, Keywords: []string{
			"sonar", "lint", "code quality", "static analysis", "coverage",
		}},
		{Type: TaskTypeTicketManagement, Keywords: []string{
			"jira", "ticket", "azure devops", "backlog", "sprint", "work item",
		}},
	}
}
