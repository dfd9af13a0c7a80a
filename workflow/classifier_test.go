package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

func TestClassify_Default(t *testing.T) {
	c := workflow.NewDefaultClassifier()

	tests := []struct {
		name        string
		description string
		want        workflow.TaskType
	}{
		{"empty description", "", workflow.TaskTypeDefault},
		{"no keywords", "do the thing please", workflow.TaskTypeDefault},
		{"design keywords", "update the figma design layout", workflow.TaskTypeDesignContent},
		{"product keywords", "search the product catalog by sku", workflow.TaskTypeProductSearch},
		{"reporting keywords", "generate the weekly analytics report", workflow.TaskTypeReporting},
		{"code quality keywords", "run sonar static analysis", workflow.TaskTypeCodeQuality},
		{"ticket keywords", "move the jira ticket to the next sprint", workflow.TaskTypeTicketManagement},
		{"case insensitive", "GENERATE THE ANALYTICS REPORT", workflow.TaskTypeReporting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.description))
		})
	}
}

func TestClassify_OverrideMarker(t *testing.T) {
	c := workflow.NewDefaultClassifier()

	// The marker wins even when another type scores higher on keywords.
	got := c.Classify("generate a product catalog report from figma.com/file/abc123")
	assert.Equal(t, workflow.TaskTypeDesignContent, got)

	// Marker matching is case-insensitive like keyword matching.
	got = c.Classify("see FIGMA.COM for the brief")
	assert.Equal(t, workflow.TaskTypeDesignContent, got)
}

func TestClassify_HighestScoreWins(t *testing.T) {
	c := workflow.NewDefaultClassifier()

	// Two product keywords beat one reporting keyword.
	got := c.Classify("report on product sku availability")
	assert.Equal(t, workflow.TaskTypeProductSearch, got)
}

func TestClassify_TieBrokenByRuleOrder(t *testing.T) {
	c := workflow.NewClassifier([]workflow.ClassifierRule{
		{Type: workflow.TaskTypeReporting, Keywords: []string{"alpha"}},
		{Type: workflow.TaskTypeCodeQuality, Keywords: []string{"alpha"}},
	}, nil)

	// Both rules score 1; the first registered rule wins.
	assert.Equal(t, workflow.TaskTypeReporting, c.Classify("alpha"))
}

func TestClassify_DistinctKeywordsScoreOnce(t *testing.T) {
	c := workflow.NewClassifier([]workflow.ClassifierRule{
		{Type: workflow.TaskTypeReporting, Keywords: []string{"report", "report"}},
		{Type: workflow.TaskTypeCodeQuality, Keywords: []string{"report", "sonar"}},
	}, nil)

	// A keyword repeated within a rule counts once, so two distinct matches
	// beat a duplicated single match.
	assert.Equal(t, workflow.TaskTypeCodeQuality, c.Classify("sonar report"))
}

func TestClassify_EmptyKeywordIgnored(t *testing.T) {
	c := workflow.NewClassifier([]workflow.ClassifierRule{
		{Type: workflow.TaskTypeReporting, Keywords: []string{""}},
	}, nil)

	// An empty keyword must not match every description.
	assert.Equal(t, workflow.TaskTypeDefault, c.Classify("anything at all"))
}

func TestClassifier_RulesReturnsCopy(t *testing.T) {
	c := workflow.NewDefaultClassifier()

	rules := c.Rules()
	require.NotEmpty(t, rules)
	rules[0].Type = workflow.TaskTypeDefault

	assert.NotEqual(t, workflow.TaskTypeDefault, c.Rules()[0].Type)
}
