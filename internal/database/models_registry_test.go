package database

import (
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesMessaging(t *testing.T) {
	var hasChat, hasMessage bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.Chat:
			hasChat = true
		case *models.Message:
			hasMessage = true
		}
	}
	require.True(t, hasChat, "PersistentModels should include Chat")
	require.True(t, hasMessage, "PersistentModels should include Message")
	assert.Len(t, PersistentModels(), 8)
}

func TestPersistentModels_IncludesWritingSamples(t *testing.T) {
	var found bool
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.WritingSample); ok {
			found = true
		}
	}
	assert.True(t, found, "PersistentModels should include WritingSample")
	assert.Equal(t, "ai_writing_samples", models.WritingSample{}.TableName())
}
