package pipeline

import "time"

// ScriptType identifies how the backend runs a step.
type ScriptType string

const (
	ScriptSQL     ScriptType = "SQL"
	ScriptPython  ScriptType = "PYTHON"
	ScriptAPICall ScriptType = "API_CALL"
)

// Valid reports whether t is one of the known script types.
func (t ScriptType) Valid() bool {
	switch t {
	case ScriptSQL, ScriptPython, ScriptAPICall:
		return true
	}
	return false
}

// LoadStrategy controls how a step's output is written into its output dataset.
// The empty value leaves the choice to the backend.
type LoadStrategy string

const (
	LoadReplace LoadStrategy = "REPLACE"
	LoadAppend  LoadStrategy = "APPEND"
	LoadUpsert  LoadStrategy = "UPSERT"
)

// Valid reports whether s is empty or one of the known strategies.
func (s LoadStrategy) Valid() bool {
	switch s {
	case "", LoadReplace, LoadAppend, LoadUpsert:
		return true
	}
	return false
}

// Pipeline is the persisted representation of a pipeline definition.
// Steps reference each other by name through DependsOnStepNames; the
// name is the only durable step identity.
type Pipeline struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	Steps       []Step    `json:"steps"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Step is one executable unit of a persisted pipeline.
// Position is a display hint only and carries no meaning for execution.
type Step struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	ScriptType         ScriptType   `json:"scriptType"`
	ScriptContent      string       `json:"scriptContent"`
	OutputDatasetID    *int64       `json:"outputDatasetId"`
	InputDatasetIDs    []int64      `json:"inputDatasetIds"`
	DependsOnStepNames []string     `json:"dependsOnStepNames"`
	LoadStrategy       LoadStrategy `json:"loadStrategy,omitempty"`
	APIConfig          *APIConfig   `json:"apiConfig,omitempty"`
	APIConnectionID    *int64       `json:"apiConnectionId,omitempty"`
	Position           *Position    `json:"position,omitempty"`
}

// APIConfig is the inline request definition of an API_CALL step.
type APIConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dataset is a lookup entry used to populate dataset pickers.
// Steps only ever store the ID.
type Dataset struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TableName string `json:"tableName"`
}

// StepStatus is the execution state of one step during a pipeline run.
type StepStatus struct {
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	OutputRows   *int64     `json:"outputRows,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Log          string     `json:"log,omitempty"`
}

// ExecutionOverlay maps step names to their status in a run.
type ExecutionOverlay map[string]StepStatus
