package pipeline

import (
	"encoding/json"
	"fmt"
)

// EncodeStepData serialises the step payload stores keep in a single JSON
// column. Name and dependencies are left out: stores keep them in their own
// columns and tables.
func EncodeStepData(st Step) ([]byte, error) {
	st.Name = ""
	st.DependsOnStepNames = nil
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode step: %w", err)
	}
	return data, nil
}

// DecodeStepData is the inverse of EncodeStepData. The returned step has
// the given name, no dependencies and non-nil slices.
func DecodeStepData(name string, data []byte) (Step, error) {
	var st Step
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("pipeline: decode step %q: %w", name, err)
	}
	st.Name = name
	st.DependsOnStepNames = []string{}
	if st.InputDatasetIDs == nil {
		st.InputDatasetIDs = []int64{}
	}
	return st, nil
}
