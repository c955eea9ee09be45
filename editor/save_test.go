package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBackend) UpdatePipeline(ctx context.Context, id int64, p *pipeline.Pipeline) error {
	args := m.Called(ctx, id, p)
	return args.Error(0)
}

func TestSave_Create(t *testing.T) {
	g, ids := buildGraph("x", "y")
	g = Reduce(g, AddEdge{SourceID: ids[0], TargetID: ids[1]})

	backend := new(mockBackend)
	backend.On("CreatePipeline", mock.Anything, mock.MatchedBy(func(p *pipeline.Pipeline) bool {
		return p.Name == "etl" &&
			len(p.Steps) == 2 &&
			len(p.Steps[0].DependsOnStepNames) == 0 &&
			len(p.Steps[1].DependsOnStepNames) == 1 &&
			p.Steps[1].DependsOnStepNames[0] == "x"
	})).Return(int64(42), nil).Once()

	saved, err := NewSaver(backend).Save(context.Background(), g)

	require.NoError(t, err)
	require.NotNil(t, saved.PersistedID)
	assert.Equal(t, int64(42), *saved.PersistedID)
	assert.False(t, saved.Dirty)
	assert.Empty(t, saved.ValidationErrors)
	assert.True(t, g.Dirty, "input graph is not modified")
	backend.AssertExpectations(t)
}

func TestSave_Update(t *testing.T) {
	g, _ := buildGraph("x")
	g = Reduce(g, MarkSaved{PersistedID: ptr(int64(7))})
	g = Reduce(g, SetMeta{IsActive: ptr(true)})
	require.True(t, g.Dirty)

	backend := new(mockBackend)
	backend.On("UpdatePipeline", mock.Anything, int64(7), mock.MatchedBy(func(p *pipeline.Pipeline) bool {
		return p.IsActive && p.ID == 7
	})).Return(nil).Once()

	saved, err := NewSaver(backend).Save(context.Background(), g)

	require.NoError(t, err)
	assert.Equal(t, int64(7), *saved.PersistedID)
	assert.False(t, saved.Dirty)
	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "CreatePipeline", mock.Anything, mock.Anything)
}

func TestSave_BackendFailure(t *testing.T) {
	g, _ := buildGraph("x")
	boom := errors.New("connection refused")

	backend := new(mockBackend)
	backend.On("CreatePipeline", mock.Anything, mock.Anything).Return(int64(0), boom)

	saved, err := NewSaver(backend).Save(context.Background(), g)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, g, saved)
	assert.Nil(t, saved.PersistedID)
	assert.True(t, saved.Dirty)
}

func TestSave_ValidationFailure(t *testing.T) {
	g, ids := buildGraph("x", "x")

	backend := new(mockBackend)
	saved, err := NewSaver(backend).Save(context.Background(), g)

	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Errors, 2)
	assert.Equal(t, vErr.Errors, saved.ValidationErrors)
	assert.Len(t, saved.ErrorsFor(ids[0]), 1)
	assert.True(t, saved.Dirty)
	backend.AssertNotCalled(t, "CreatePipeline", mock.Anything, mock.Anything)
	backend.AssertNotCalled(t, "UpdatePipeline", mock.Anything, mock.Anything, mock.Anything)
}

func TestSave_ClearsPreviousErrors(t *testing.T) {
	g, ids := buildGraph("x")
	g = Reduce(g, SetValidationErrors{Errors: []ValidationError{{StepID: ids[0], Field: "name", Message: "stale"}}})

	backend := new(mockBackend)
	backend.On("CreatePipeline", mock.Anything, mock.Anything).Return(int64(3), nil)

	saved, err := NewSaver(backend).Save(context.Background(), g)

	require.NoError(t, err)
	assert.Empty(t, saved.ValidationErrors)
}

func TestSave_InvalidPersistedID(t *testing.T) {
	g, _ := buildGraph("x")
	g.PersistedID = ptr(int64(-1))

	backend := new(mockBackend)
	_, err := NewSaver(backend).Save(context.Background(), g)

	require.ErrorIs(t, err, ErrInvalidPersistedID)
	backend.AssertNotCalled(t, "UpdatePipeline", mock.Anything, mock.Anything, mock.Anything)
}

func TestSave_BackendReturnsInvalidID(t *testing.T) {
	g, _ := buildGraph("x")

	backend := new(mockBackend)
	backend.On("CreatePipeline", mock.Anything, mock.Anything).Return(int64(0), nil)

	saved, err := NewSaver(backend).Save(context.Background(), g)

	require.ErrorIs(t, err, ErrInvalidPersistedID)
	assert.Nil(t, saved.PersistedID)
}

func TestToPipeline(t *testing.T) {
	g, ids := buildGraph(" extract ", "clean", "load")
	g = Reduce(g, AddEdge{SourceID: ids[1], TargetID: ids[2]})
	g = Reduce(g, AddEdge{SourceID: ids[0], TargetID: ids[2]})
	g = Reduce(g, UpdateNodePosition{StepID: ids[0], Position: Position{X: 5, Y: 6}})

	p, err := ToPipeline(g)

	require.NoError(t, err)
	assert.Zero(t, p.ID)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "extract", p.Steps[0].Name)
	assert.Equal(t, []string{"clean", "extract"}, p.Steps[2].DependsOnStepNames)
	assert.Equal(t, []int64{}, p.Steps[0].InputDatasetIDs)
	assert.Equal(t, &pipeline.Position{X: 5, Y: 6}, p.Steps[0].Position)
	assert.NoError(t, pipeline.ValidateDefinition(p))
}
