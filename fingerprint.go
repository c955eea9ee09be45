package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a stable content hash of a pipeline definition in the
// form "blake3:<hex>". Step order, dependency order, surrounding whitespace
// in names, positions, IDs and audit fields do not affect the result.
func Fingerprint(p *Pipeline) (string, error) {
	type stepShape struct {
		Name            string       `json:"name"`
		Description     string       `json:"description"`
		ScriptType      ScriptType   `json:"script_type"`
		ScriptContent   string       `json:"script_content"`
		OutputDatasetID *int64       `json:"output_dataset_id"`
		InputDatasetIDs []int64      `json:"input_dataset_ids"`
		DependsOn       []string     `json:"depends_on"`
		LoadStrategy    LoadStrategy `json:"load_strategy"`
		APIConfig       *APIConfig   `json:"api_config"`
		APIConnectionID *int64       `json:"api_connection_id"`
	}
	type fingerprintShape struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		IsActive    bool        `json:"is_active"`
		Steps       []stepShape `json:"steps"`
	}

	shape := fingerprintShape{
		Name:        strings.TrimSpace(p.Name),
		Description: p.Description,
		IsActive:    p.IsActive,
		Steps:       make([]stepShape, 0, len(p.Steps)),
	}
	for _, s := range p.Steps {
		deps := make([]string, 0, len(s.DependsOnStepNames))
		for _, d := range s.DependsOnStepNames {
			deps = append(deps, strings.TrimSpace(d))
		}
		slices.Sort(deps)
		inputs := slices.Clone(s.InputDatasetIDs)
		if inputs == nil {
			inputs = []int64{}
		}
		slices.Sort(inputs)

		shape.Steps = append(shape.Steps, stepShape{
			Name:            strings.TrimSpace(s.Name),
			Description:     s.Description,
			ScriptType:      s.ScriptType,
			ScriptContent:   s.ScriptContent,
			OutputDatasetID: s.OutputDatasetID,
			InputDatasetIDs: inputs,
			DependsOn:       deps,
			LoadStrategy:    s.LoadStrategy,
			APIConfig:       s.APIConfig,
			APIConnectionID: s.APIConnectionID,
		})
	}
	slices.SortFunc(shape.Steps, func(a, b stepShape) int { return strings.Compare(a.Name, b.Name) })

	body, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("pipeline: marshal fingerprint input: %w", err)
	}
	sum := blake3.Sum256(body)
	return "blake3:" + hex.EncodeToString(sum[:]), nil
}
