package delegation

import (
	"strings"

	"github.com/seralin/drover/pkg/models"
)

// Strategy selects how the engine picks a worker for a task.
type Strategy string

const (
	// StrategyCapability matches task requirements against worker capability tags.
	StrategyCapability Strategy = "capability"
	// StrategyLoadBalanced picks the worker with the lowest load ratio.
	StrategyLoadBalanced Strategy = "load_balanced"
	// StrategyPriority routes high-priority tasks to the primary worker.
	StrategyPriority Strategy = "priority"
	// StrategyRoundRobin cycles through available workers in order.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyAdaptive starts from the capability choice and shifts to the
	// least-loaded worker when the capability pick is heavily loaded.
	StrategyAdaptive Strategy = "adaptive"
)

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCapability, StrategyLoadBalanced, StrategyPriority,
		StrategyRoundRobin, StrategyAdaptive:
		return true
	default:
		return false
	}
}

// highPriorityThreshold is the task priority at which the priority strategy
// prefers the primary worker.
const highPriorityThreshold = 3

// loadGapThreshold is the load-ratio gap past which the adaptive strategy
// abandons the capability pick for the least-loaded worker.
const loadGapThreshold = 0.3

// adaptiveConfidence is the confidence reported when the adaptive strategy
// overrides the capability choice.
const adaptiveConfidence = 0.75

// taskTypeTags maps each task type to the capability tags it demands.
var taskTypeTags = map[models.TaskType][]string{
	models.TaskTypeCoding:     {"coding"},
	models.TaskTypeResearch:   {"research"},
	models.TaskTypeAnalysis:   {"analysis"},
	models.TaskTypeMultimodal: {"multimodal"},
	models.TaskTypeReasoning:  {"reasoning"},
}

// keywordTags adds tags inferred from words in the task description.
var keywordTags = []struct {
	words []string
	tags  []string
}{
	{words: []string{"code", "implement", "function"}, tags: []string{"coding"}},
	{words: []string{"research", "find", "analyze"}, tags: []string{"research", "analysis"}},
	{words: []string{"image", "visual"}, tags: []string{"multimodal"}},
	{words: []string{"reason", "logic"}, tags: []string{"reasoning"}},
}

// RequiredTags derives the capability tags a task calls for from its type
// and keywords in its description. General tasks with a neutral description
// require nothing.
func RequiredTags(task *models.Task) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tags []string) {
		for _, tag := range tags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}

	add(taskTypeTags[task.Type])

	desc := strings.ToLower(task.Description)
	for _, kw := range keywordTags {
		for _, word := range kw.words {
			if strings.Contains(desc, word) {
				add(kw.tags)
				break
			}
		}
	}
	return out
}
