package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/meikuraledutech/pipeline/postgres"
	"github.com/meikuraledutech/pipeline/sqlite"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           log.DebugLevel,
	})
	ctx := log.WithContext(context.Background(), logger)

	// Postgres when DATABASE_URL is set, otherwise a throwaway SQLite file.
	var store pipeline.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := postgres.Connect(ctx, dbURL)
		if err != nil {
			logger.Fatal("connect", "err", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		dir, err := os.MkdirTemp("", "pipeline-example")
		if err != nil {
			logger.Fatal("temp dir", "err", err)
		}
		defer os.RemoveAll(dir)
		s, err := sqlite.Open(ctx, filepath.Join(dir, "pipelines.db"))
		if err != nil {
			logger.Fatal("open sqlite", "err", err)
		}
		defer s.Close()
		store = s
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		logger.Fatal("schema", "err", err)
	}
	fmt.Println("schema created")

	// ── Build a graph through the reducer ─────────────────────────────
	session := editor.NewSession(editor.New(), editor.NewSaver(store))
	session.Dispatch(editor.SetMeta{Name: ptr("sales-nightly"), Description: ptr("Loads yesterday's orders")})

	session.Dispatch(editor.AddStep{})
	extract := session.Graph().SelectedStepID
	session.Dispatch(editor.UpdateStep{StepID: extract, Changes: editor.StepChanges{
		Name:            ptr("extract"),
		ScriptContent:   ptr("SELECT * FROM orders WHERE day = current_date - 1"),
		InputDatasetIDs: []int64{1},
	}})

	session.Dispatch(editor.AddStepAfter{SourceID: extract})
	load := session.Graph().SelectedStepID
	session.Dispatch(editor.UpdateStep{StepID: load, Changes: editor.StepChanges{
		Name:            ptr("load"),
		ScriptContent:   ptr("INSERT INTO daily_orders SELECT * FROM staged"),
		OutputDatasetID: ptr(int64(2)),
		LoadStrategy:    ptr(pipeline.LoadAppend),
	}})

	// Insert a cleaning step on the extract -> load edge.
	session.Dispatch(editor.InsertStepBetween{SourceID: extract, TargetID: load})
	clean := session.Graph().SelectedStepID
	session.Dispatch(editor.UpdateStep{StepID: clean, Changes: editor.StepChanges{
		Name:          ptr("clean"),
		ScriptType:    ptr(pipeline.ScriptPython),
		ScriptContent: ptr("df = df.dropna()"),
	}})

	// load -> extract would close a cycle and is refused.
	before := len(session.Graph().Edges())
	session.Dispatch(editor.AddEdge{SourceID: load, TargetID: extract})
	fmt.Printf("edges before/after cyclic edge: %d/%d\n", before, len(session.Graph().Edges()))

	session.Dispatch(editor.AutoLayout{})
	printPositions(session.Graph())

	// ── Save (create) ─────────────────────────────────────────────────
	if err := session.Save(ctx); err != nil {
		logger.Fatal("save", "err", err)
	}
	g := session.Graph()
	fmt.Printf("\npipeline created: id=%d dirty=%v\n", *g.PersistedID, g.Dirty)

	// ── Edit, fail validation, fix, save (update) ─────────────────────
	session.Dispatch(editor.UpdateStep{StepID: clean, Changes: editor.StepChanges{ScriptContent: ptr("  ")}})
	var vErr *editor.ValidationFailedError
	if err := session.Save(ctx); errors.As(err, &vErr) {
		for _, e := range session.Graph().ValidationErrors {
			fmt.Printf("validation: step=%s field=%s %s\n", e.StepID, e.Field, e.Message)
		}
	}
	session.Dispatch(editor.UpdateStep{StepID: clean, Changes: editor.StepChanges{ScriptContent: ptr("df = df.drop_duplicates()")}})
	session.Dispatch(editor.SetMeta{IsActive: ptr(true)})
	if err := session.Save(ctx); err != nil {
		logger.Fatal("save", "err", err)
	}
	fmt.Println("pipeline updated")

	// ── Retrieve and hydrate a fresh editor ───────────────────────────
	stored, err := store.GetPipeline(ctx, *g.PersistedID)
	if err != nil {
		logger.Fatal("get pipeline", "err", err)
	}
	fmt.Println("\npipeline retrieved:")
	printJSON(stored)

	reopened := editor.Hydrate(stored)
	fmt.Printf("\nreopened: %d steps, %d edges, dirty=%v\n", len(reopened.Steps), len(reopened.Edges()), reopened.Dirty)

	// ── Execution overlay (read-only) ─────────────────────────────────
	viewer := editor.NewSession(reopened, editor.NewSaver(store))
	viewer.SetReadOnly(true)
	fmt.Printf("edit while running accepted: %v\n", viewer.Dispatch(editor.AddStep{}))

	started := time.Now().Add(-time.Minute)
	status := editor.Annotate(reopened, pipeline.ExecutionOverlay{
		"extract": {Status: "SUCCESS", StartedAt: &started, OutputRows: ptr(int64(1200))},
		"clean":   {Status: "RUNNING", StartedAt: &started},
	})
	for _, e := range reopened.Edges() {
		src, _ := reopened.Step(e.Source)
		dst, _ := reopened.Step(e.Target)
		fmt.Printf("edge %s -> %s: %q\n", src.Name, dst.Name, editor.EdgeStatus(status, e))
	}

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeletePipeline(ctx, *g.PersistedID); err != nil {
		logger.Fatal("delete", "err", err)
	}
	fmt.Println("\npipeline deleted")
}

func ptr[T any](v T) *T { return &v }

func printPositions(g editor.Graph) {
	for _, s := range g.Steps {
		fmt.Printf("  %-8s (%4.0f, %4.0f)\n", s.Name, s.Position.X, s.Position.Y)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
