package service

import (
	"context"
	"strings"

	"inkwell/internal/assistant"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

const (
	maxPlotLen        = 5000
	maxSampleTitleLen = 255
	maxSampleLen      = 20000
)

// Generator is the text generation backend.
type Generator interface {
	Status(ctx context.Context) assistant.ProviderStatus
	Generate(ctx context.Context, prompt string) (string, error)
}

type AssistantService struct {
	gen        Generator
	postRepo   repository.PostRepository
	sampleRepo repository.WritingSampleRepository
	flags      *featureflags.Manager
}

type GenerateInput struct {
	UserID  uint
	Plot    string
	Samples []assistant.Sample
}

type GenerateResult struct {
	Content     string `json:"content"`
	SamplesUsed int    `json:"samples_used"`
}

type SaveSampleInput struct {
	UserID  uint
	Title   string
	Content string
}

func NewAssistantService(gen Generator, postRepo repository.PostRepository, sampleRepo repository.WritingSampleRepository, flags *featureflags.Manager) *AssistantService {
	return &AssistantService{gen: gen, postRepo: postRepo, sampleRepo: sampleRepo, flags: flags}
}

func (s *AssistantService) Status(ctx context.Context) assistant.ProviderStatus {
	return s.gen.Status(ctx)
}

// Generate drafts content for a plot in the caller's voice. Samples passed in
// take precedence; otherwise the caller's latest published posts are used.
func (s *AssistantService) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if !s.flags.EnabledOr(featureflags.AIAssistant, in.UserID, true) {
		return nil, models.NewForbiddenError("Writing assistant is not enabled for this account")
	}
	plot := strings.TrimSpace(in.Plot)
	if plot == "" {
		return nil, models.NewValidationError("Plot is required")
	}
	if len([]rune(plot)) > maxPlotLen {
		return nil, models.NewValidationError("Plot too long (max 5000 characters)")
	}

	samples := in.Samples
	if len(samples) == 0 {
		posts, err := s.postRepo.LatestPublishedByUser(ctx, in.UserID, assistant.MaxSamples)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			samples = append(samples, assistant.Sample{Title: p.Title, Content: p.Content})
		}
	}
	if len(samples) > assistant.MaxSamples {
		samples = samples[:assistant.MaxSamples]
	}

	content, err := s.gen.Generate(ctx, assistant.BuildPrompt(plot, samples))
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Content: content, SamplesUsed: len(samples)}, nil
}

// Samples returns the caller's latest published posts, the ones Generate
// falls back to when no samples are supplied.
func (s *AssistantService) Samples(ctx context.Context, userID uint) ([]*models.Post, error) {
	posts, err := s.postRepo.LatestPublishedByUser(ctx, userID, assistant.MaxSamples)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *AssistantService) SaveSample(ctx context.Context, in SaveSampleInput) (*models.WritingSample, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	switch {
	case title == "":
		return nil, models.NewValidationError("Title is required")
	case len([]rune(title)) > maxSampleTitleLen:
		return nil, models.NewValidationError("Title too long (max 255 characters)")
	case content == "":
		return nil, models.NewValidationError("Content is required")
	case len([]rune(content)) > maxSampleLen:
		return nil, models.NewValidationError("Content too long (max 20000 characters)")
	}

	sample := &models.WritingSample{UserID: in.UserID, Title: title, Content: content}
	if err := s.sampleRepo.Create(ctx, sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// SavedSamples lists the caller's saved samples, newest first.
func (s *AssistantService) SavedSamples(ctx context.Context, userID uint) ([]models.WritingSample, error) {
	return s.sampleRepo.ListByUser(ctx, userID)
}

func (s *AssistantService) DeleteSample(ctx context.Context, userID, id uint) error {
	return s.sampleRepo.Delete(ctx, userID, id)
}
