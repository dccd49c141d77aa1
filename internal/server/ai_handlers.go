package server

import (
	"inkwell/internal/assistant"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAssistantStatus handles GET /api/ai/status
// @Summary Writing assistant availability
// @Tags ai
// @Security BearerAuth
// @Produce json
// @Success 200 {object} assistant.ProviderStatus
// @Router /ai/status [get]
func (s *Server) GetAssistantStatus(c *fiber.Ctx) error {
	return c.JSON(s.assistantService.Status(c.UserContext()))
}

// GenerateDraft handles POST /api/ai/generate
// @Summary Draft text in the caller's style
// @Description Without samples the caller's latest published posts are used.
// @Tags ai
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{plot=string,samples=[]assistant.Sample} true "Plot and optional samples"
// @Success 200 {object} service.GenerateResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ai/generate [post]
func (s *Server) GenerateDraft(c *fiber.Ctx) error {
	var req struct {
		Plot    string             `json:"plot"`
		Samples []assistant.Sample `json:"samples"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	res, err := s.assistantService.Generate(c.UserContext(), service.GenerateInput{
		UserID:  currentUserID(c),
		Plot:    req.Plot,
		Samples: req.Samples,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetWritingSamples handles GET /api/ai/samples
// @Summary Latest published posts used as default samples
// @Tags ai
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Post
// @Router /ai/samples [get]
func (s *Server) GetWritingSamples(c *fiber.Ctx) error {
	posts, err := s.assistantService.Samples(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// SaveWritingSample handles POST /api/ai/samples
// @Summary Save a writing sample
// @Tags ai
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{title=string,content=string} true "Sample"
// @Success 201 {object} models.WritingSample
// @Failure 400 {object} models.ErrorResponse
// @Router /ai/samples [post]
func (s *Server) SaveWritingSample(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	sample, err := s.assistantService.SaveSample(c.UserContext(), service.SaveSampleInput{
		UserID:  currentUserID(c),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sample)
}

// ListSavedSamples handles GET /api/ai/samples/all
// @Summary List saved writing samples
// @Tags ai
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.WritingSample
// @Router /ai/samples/all [get]
func (s *Server) ListSavedSamples(c *fiber.Ctx) error {
	samples, err := s.assistantService.SavedSamples(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(samples)
}

// DeleteWritingSample handles DELETE /api/ai/samples/:id
// @Summary Delete a saved writing sample
// @Tags ai
// @Security BearerAuth
// @Param id path int true "Sample ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /ai/samples/{id} [delete]
func (s *Server) DeleteWritingSample(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.assistantService.DeleteSample(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Sample deleted successfully"})
}
