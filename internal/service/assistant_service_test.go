package service

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/assistant"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Status(ctx context.Context) assistant.ProviderStatus {
	return m.Called(ctx).Get(0).(assistant.ProviderStatus)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestAssistantService_UsesLatestPostsAsSamples(t *testing.T) {
	repo := noopPostRepo()
	repo.latestFn = func(_ context.Context, author uint, limit int) ([]*models.Post, error) {
		assert.Equal(t, uint(5), author)
		assert.Equal(t, assistant.MaxSamples, limit)
		return []*models.Post{
			{Title: "Tides", Content: "The sea was grey."},
			{Title: "Gulls", Content: "They never stop."},
		}, nil
	}

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.ObjectsAreEqual(p, assistant.BuildPrompt("a lighthouse", []assistant.Sample{
			{Title: "Tides", Content: "The sea was grey."},
			{Title: "Gulls", Content: "They never stop."},
		}))
	})).Return("A draft.", nil)

	svc := NewAssistantService(gen, repo, nil, nil)
	res, err := svc.Generate(context.Background(), GenerateInput{UserID: 5, Plot: "  a lighthouse "})
	require.NoError(t, err)
	assert.Equal(t, "A draft.", res.Content)
	assert.Equal(t, 2, res.SamplesUsed)
	gen.AssertExpectations(t)
}

func TestAssistantService_ExplicitSamplesAreCapped(t *testing.T) {
	repo := noopPostRepo()
	repo.latestFn = func(context.Context, uint, int) ([]*models.Post, error) {
		t.Fatal("stored posts should not be read when samples are supplied")
		return nil, nil
	}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)

	svc := NewAssistantService(gen, repo, nil, nil)
	res, err := svc.Generate(context.Background(), GenerateInput{
		UserID:  1,
		Plot:    "p",
		Samples: []assistant.Sample{{Title: "1"}, {Title: "2"}, {Title: "3"}, {Title: "4"}},
	})
	require.NoError(t, err)
	assert.Equal(t, assistant.MaxSamples, res.SamplesUsed)
}

func TestAssistantService_Gates(t *testing.T) {
	gen := &mockGenerator{}
	svc := NewAssistantService(gen, noopPostRepo(), nil, featureflags.NewManager("ai_assistant=off"))
	_, err := svc.Generate(context.Background(), GenerateInput{UserID: 1, Plot: "p"})
	assertAppErrorCode(t, err, models.CodeForbidden)

	svc = NewAssistantService(gen, noopPostRepo(), nil, nil)
	_, err = svc.Generate(context.Background(), GenerateInput{UserID: 1, Plot: "   "})
	assertValidationError(t, err)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAssistantService_PropagatesUnavailable(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Return("", models.NewUnavailableError("Writing assistant service is not running. Start it and try again.", nil))

	svc := NewAssistantService(gen, noopPostRepo(), nil, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{UserID: 1, Plot: "p"})
	assertAppErrorCode(t, err, models.CodeUnavailable)

	gen.On("Status", mock.Anything).Return(assistant.ProviderStatus{Status: assistant.StatusDisconnected})
	assert.Equal(t, assistant.StatusDisconnected, svc.Status(context.Background()).Status)
}

func TestAssistantService_SavedSamples(t *testing.T) {
	db := setupTestDB(t)
	ann := createUser(t, db, "ann")
	ben := createUser(t, db, "ben")
	svc := NewAssistantService(&mockGenerator{}, noopPostRepo(), repository.NewWritingSampleRepository(db), nil)
	ctx := context.Background()

	sample, err := svc.SaveSample(ctx, SaveSampleInput{UserID: ann.ID, Title: "  Harbour ", Content: " Ropes creaked. "})
	require.NoError(t, err)
	assert.Equal(t, "Harbour", sample.Title)
	assert.Equal(t, "Ropes creaked.", sample.Content)

	_, err = svc.SaveSample(ctx, SaveSampleInput{UserID: ann.ID, Title: " ", Content: "x"})
	assertValidationError(t, err)
	_, err = svc.SaveSample(ctx, SaveSampleInput{UserID: ann.ID, Title: strings.Repeat("t", 256), Content: "x"})
	assertValidationError(t, err)
	_, err = svc.SaveSample(ctx, SaveSampleInput{UserID: ann.ID, Title: "t"})
	assertValidationError(t, err)

	list, err := svc.SavedSamples(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assertAppErrorCode(t, svc.DeleteSample(ctx, ben.ID, sample.ID), models.CodeNotFound)
	require.NoError(t, svc.DeleteSample(ctx, ann.ID, sample.ID))
	list, err = svc.SavedSamples(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAssistantService_SamplesAreLatestPublishedPosts(t *testing.T) {
	repo := noopPostRepo()
	repo.latestFn = func(_ context.Context, author uint, limit int) ([]*models.Post, error) {
		assert.Equal(t, uint(3), author)
		assert.Equal(t, assistant.MaxSamples, limit)
		return nil, nil
	}
	svc := NewAssistantService(&mockGenerator{}, repo, nil, nil)

	posts, err := svc.Samples(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}
