package main

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/editor"
)

// stepError is a validation diagnostic keyed by step name for API clients.
// Step is empty for pipeline-level errors.
type stepError struct {
	Step    string `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newApp(store pipeline.Store, logger *log.Logger, layout editor.LayoutConfig) *fiber.App {
	app := fiber.New()

	app.Use(func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request", "method", c.Method(), "path", c.Path(),
			"status", c.Response().StatusCode(), "elapsed", time.Since(start).Round(time.Microsecond))
		return err
	})

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Editor helpers ────────────────────────────────────────────────
	app.Post("/pipelines/validate", func(c fiber.Ctx) error {
		var p pipeline.Pipeline
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		errs := validatePipeline(&p)
		return c.JSON(fiber.Map{"valid": len(errs) == 0, "errors": errs})
	})

	app.Post("/pipelines/layout", func(c fiber.Ctx) error {
		var p pipeline.Pipeline
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		out, err := layoutPipeline(&p, layout)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(out)
	})

	// ── Pipelines ─────────────────────────────────────────────────────
	app.Get("/pipelines", func(c fiber.Ctx) error {
		list, err := store.ListPipelines(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(list)
	})

	app.Post("/pipelines", func(c fiber.Ctx) error {
		var p pipeline.Pipeline
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id, err := store.CreatePipeline(c.Context(), &p)
		if err != nil {
			return storeError(c, err)
		}
		logger.Info("pipeline created", "id", id, "name", p.Name, "steps", len(p.Steps))
		return c.Status(201).JSON(fiber.Map{"id": id, "fingerprint": p.Fingerprint})
	})

	app.Get("/pipelines/:id", func(c fiber.Ctx) error {
		id, ok := pipelineID(c)
		if !ok {
			return c.Status(400).JSON(fiber.Map{"error": "invalid pipeline id"})
		}
		p, err := store.GetPipeline(c.Context(), id)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if p == nil {
			return c.Status(404).JSON(fiber.Map{"error": "pipeline not found"})
		}
		return c.JSON(p)
	})

	app.Put("/pipelines/:id", func(c fiber.Ctx) error {
		id, ok := pipelineID(c)
		if !ok {
			return c.Status(400).JSON(fiber.Map{"error": "invalid pipeline id"})
		}
		var p pipeline.Pipeline
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := store.UpdatePipeline(c.Context(), id, &p); err != nil {
			return storeError(c, err)
		}
		logger.Info("pipeline updated", "id", id, "steps", len(p.Steps))
		return c.SendStatus(204)
	})

	app.Delete("/pipelines/:id", func(c fiber.Ctx) error {
		id, ok := pipelineID(c)
		if !ok {
			return c.Status(400).JSON(fiber.Map{"error": "invalid pipeline id"})
		}
		if err := store.DeletePipeline(c.Context(), id); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	return app
}

func pipelineID(c fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

// storeError maps store sentinels to HTTP statuses.
func storeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "pipeline not found"})
	case errors.Is(err, pipeline.ErrCycleDetected),
		errors.Is(err, pipeline.ErrUnknownDependency),
		errors.Is(err, pipeline.ErrDuplicateStepName),
		errors.Is(err, pipeline.ErrEmptyStepName),
		errors.Is(err, pipeline.ErrEmptyPipelineName):
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

// validatePipeline runs the editor's pre-save validation on a posted
// definition. Dependencies the editor cannot represent (unknown names,
// self references, cycles) are reported too since hydration drops them.
func validatePipeline(p *pipeline.Pipeline) []stepError {
	g := editor.Hydrate(p)

	names := make(map[editor.ClientID]string, len(g.Steps))
	for _, s := range g.Steps {
		names[s.ClientID] = strings.TrimSpace(s.Name)
	}

	errs := []stepError{}
	for _, e := range editor.Validate(g) {
		errs = append(errs, stepError{Step: names[e.StepID], Field: e.Field, Message: e.Message})
	}
	if len(errs) == 0 {
		if err := pipeline.ValidateDefinition(p); err != nil {
			errs = append(errs, stepError{Field: "dependsOn", Message: err.Error()})
		}
	}
	return errs
}

// layoutPipeline returns p with every step positioned by the layout engine.
func layoutPipeline(p *pipeline.Pipeline, cfg editor.LayoutConfig) (*pipeline.Pipeline, error) {
	g := editor.Reduce(editor.Hydrate(p), editor.AutoLayout{Config: cfg})
	out, err := editor.ToPipeline(g)
	if err != nil {
		return nil, err
	}
	out.ID = p.ID
	return out, nil
}
