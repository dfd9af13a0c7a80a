package workflow

// StageSummary is the per-stage line of a workflow summary.
type StageSummary struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// Summary is a read-only projection of a workflow context: terminal stages in
// pipeline order, total duration, deduplicated generated files and
// recommendations gathered from stage outputs, and the errors of failed
// stages. Summarizing the same context twice yields identical output.
type Summary struct {
	WorkflowID      string            `json:"workflow_id"`
	TaskType        TaskType          `json:"task_type"`
	Status          WorkflowStatus    `json:"status"`
	TotalDurationMs int64             `json:"total_duration_ms"`
	Stages          []StageSummary    `json:"stages"`
	GeneratedFiles  []string          `json:"generated_files,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
}

// Output keys that domain agents use to surface artifacts in their results.
const (
	outputKeyGeneratedFiles  = "generated_files"
	outputKeyRecommendations = "recommendations"
)

// Summarize projects a context into a Summary. It is pure: the context is
// not mutated and no I/O happens.
func Summarize(wf *WorkflowContext) *Summary {
	s := &Summary{
		WorkflowID: wf.WorkflowID,
		TaskType:   wf.TaskType,
		Status:     wf.Status,
		Stages:     make([]StageSummary, 0, len(wf.Pipeline)),
	}
	if wf.CompletedAt != nil {
		s.TotalDurationMs = wf.CompletedAt.Sub(wf.StartedAt).Milliseconds()
	}

	seenFiles := make(map[string]bool)
	seenRecs := make(map[string]bool)

	for _, name := range wf.Pipeline {
		record := wf.Stages[name]
		if record == nil || !record.Status.IsTerminal() {
			continue
		}

		line := StageSummary{
			Name:   name,
			Status: record.Status,
			Error:  record.Error,
		}
		if record.StartedAt != nil && record.CompletedAt != nil {
			line.DurationMs = record.CompletedAt.Sub(*record.StartedAt).Milliseconds()
		}
		s.Stages = append(s.Stages, line)

		if record.Status == StageStatusFailed && record.Error != "" {
			if s.Errors == nil {
				s.Errors = make(map[string]string)
			}
			s.Errors[name] = record.Error
		}

		s.GeneratedFiles = appendUnique(s.GeneratedFiles, seenFiles, stringsFromOutput(record.OutputSnapshot, outputKeyGeneratedFiles))
		s.Recommendations = appendUnique(s.Recommendations, seenRecs, stringsFromOutput(record.OutputSnapshot, outputKeyRecommendations))
	}
	return s
}

// stringsFromOutput extracts a string list from a stage output value,
// tolerating []string, []any and a bare string.
func stringsFromOutput(output map[string]any, key string) []string {
	if output == nil {
		return nil
	}
	switch v := output[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func appendUnique(dst []string, seen map[string]bool, values []string) []string {
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
