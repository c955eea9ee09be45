package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/meikuraledutech/pipeline/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "pipelines.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newApp(store, log.New(io.Discard), editor.DefaultLayoutConfig())
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func definition() pipeline.Pipeline {
	return pipeline.Pipeline{
		Name: "nightly",
		Steps: []pipeline.Step{
			{Name: "extract", ScriptType: pipeline.ScriptSQL, ScriptContent: "select 1"},
			{Name: "load", ScriptType: pipeline.ScriptSQL, ScriptContent: "select 2", DependsOnStepNames: []string{"extract"}},
		},
	}
}

func TestPipelineLifecycle(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/pipelines", definition())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ID          int64  `json:"id"`
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Positive(t, created.ID)
	assert.NotEmpty(t, created.Fingerprint)

	path := fmt.Sprintf("/pipelines/%d", created.ID)
	resp, body = do(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got pipeline.Pipeline
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "nightly", got.Name)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, []string{"extract"}, got.Steps[1].DependsOnStepNames)

	update := definition()
	update.IsActive = true
	resp, _ = do(t, app, http.MethodPut, path, update)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/pipelines", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []pipeline.Pipeline
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].IsActive)

	resp, _ = do(t, app, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	app := newTestApp(t)

	cyclic := definition()
	cyclic.Steps[0].DependsOnStepNames = []string{"load"}
	resp, _ := do(t, app, http.MethodPost, "/pipelines", cyclic)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	dup := definition()
	dup.Steps[1].Name = " extract "
	dup.Steps[1].DependsOnStepNames = nil
	resp, _ = do(t, app, http.MethodPost, "/pipelines", dup)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPut, "/pipelines/77", definition())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/pipelines/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	raw, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/pipelines/validate", definition())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok struct {
		Valid  bool        `json:"valid"`
		Errors []stepError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &ok))
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad := definition()
	bad.Steps[1].ScriptContent = ""
	resp, body = do(t, app, http.MethodPost, "/pipelines/validate", bad)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res struct {
		Valid  bool        `json:"valid"`
		Errors []stepError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, stepError{Step: "load", Field: "scriptContent", Message: "Script content is required"}, res.Errors[0])
}

func TestValidateReportsDroppedDependencies(t *testing.T) {
	p := definition()
	p.Steps[1].DependsOnStepNames = []string{"ghost"}

	errs := validatePipeline(&p)

	require.Len(t, errs, 1)
	assert.Equal(t, "dependsOn", errs[0].Field)
	assert.Contains(t, errs[0].Message, "ghost")
}

func TestLayoutEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/pipelines/layout", definition())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out pipeline.Pipeline
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Steps, 2)
	assert.Equal(t, &pipeline.Position{X: 0, Y: 0}, out.Steps[0].Position)
	assert.Equal(t, &pipeline.Position{X: 320, Y: 0}, out.Steps[1].Position)
}

func TestSchemaEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, http.MethodDelete, "/schema", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/pipelines", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/schema", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/pipelines", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
