package workflow

import "github.com/seralin/drover/pkg/models"

// Levels partitions steps into dependency levels: a step lands in the first
// level after all of its dependencies have been placed. Steps within a level
// are independent of each other and keep their declared order. A scan that
// places nothing while steps remain means the graph cannot make progress.
func Levels(steps []models.WorkflowStep) ([][]models.WorkflowStep, error) {
	placed := make(map[string]bool, len(steps))
	remaining := append([]models.WorkflowStep(nil), steps...)
	var levels [][]models.WorkflowStep

	for len(remaining) > 0 {
		var level []models.WorkflowStep
		var next []models.WorkflowStep
		for _, step := range remaining {
			if depsPlaced(step, placed) {
				level = append(level, step)
			} else {
				next = append(next, step)
			}
		}
		if len(level) == 0 {
			ids := make([]string, len(next))
			for i, step := range next {
				ids[i] = step.ID
			}
			debugLog("[levels] no progress: %d step(s) blocked: %v", len(ids), ids)
			return nil, &CircularDependencyError{Remaining: ids}
		}
		for _, step := range level {
			placed[step.ID] = true
		}
		levels = append(levels, level)
		remaining = next
	}
	return levels, nil
}

func depsPlaced(step models.WorkflowStep, placed map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if !placed[dep] {
			return false
		}
	}
	return true
}

// missingDeps lists the step's dependencies absent from completed.
func missingDeps(step models.WorkflowStep, completed map[string]bool) []string {
	var missing []string
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}
	return missing
}
