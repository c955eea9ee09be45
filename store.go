package pipeline

import (
	"context"
	"errors"
)

var (
	ErrCycleDetected     = errors.New("pipeline: cycle detected, step dependencies are not acyclic")
	ErrPipelineNotFound  = errors.New("pipeline: pipeline not found")
	ErrUnknownDependency = errors.New("pipeline: step depends on unknown step")
	ErrDuplicateStepName = errors.New("pipeline: duplicate step name")
	ErrEmptyStepName     = errors.New("pipeline: step name is empty")
	ErrEmptyPipelineName = errors.New("pipeline: pipeline name is empty")
)

// Store defines the contract for persisting and retrieving pipelines.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Pipelines. Steps are always written as a whole (replace semantics).
	CreatePipeline(ctx context.Context, p *Pipeline) (int64, error)
	GetPipeline(ctx context.Context, id int64) (*Pipeline, error)
	UpdatePipeline(ctx context.Context, id int64, p *Pipeline) error
	DeletePipeline(ctx context.Context, id int64) error
	ListPipelines(ctx context.Context) ([]Pipeline, error)
}
