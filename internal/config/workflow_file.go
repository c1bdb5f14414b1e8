package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/seralin/drover/pkg/models"
)

// LoadWorkflowFile parses a YAML workflow definition into a models.Workflow.
// A workflow without an id takes the file's base name.
func LoadWorkflowFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}

	wf := &models.Workflow{}
	if err := yaml.Unmarshal(data, wf); err != nil {
		return nil, fmt.Errorf("parsing workflow file %s: %w", path, err)
	}

	if wf.ID == "" {
		wf.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := validateWorkflow(wf); err != nil {
		return nil, err
	}

	return wf, nil
}

// validateWorkflow rejects definitions the executor could only fail on.
func validateWorkflow(wf *models.Workflow) error {
	if len(wf.Steps) == 0 {
		return &ConfigurationError{Field: "steps", Reason: "workflow has no steps"}
	}

	if wf.Mode != "" && !wf.Mode.Valid() {
		return &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", wf.Mode)}
	}

	ids := map[string]bool{}
	for i, step := range wf.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			return &ConfigurationError{Field: field + ".id", Reason: "step id is required"}
		}
		if ids[step.ID] {
			return &ConfigurationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		ids[step.ID] = true
		if step.Description == "" {
			return &ConfigurationError{Field: field + ".description", Reason: "step description is required"}
		}
	}

	for i, step := range wf.Steps {
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return &ConfigurationError{
					Field:  fmt.Sprintf("steps[%d].depends_on", i),
					Reason: fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep),
				}
			}
		}
	}

	return nil
}
