package handler

import (
	"net/http"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
	"github.com/spouty/spouty/internal/plant"
)

// MetadataHandler serves static reference data.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// ListDifficulties handles GET /api/difficulties.
func (h *MetadataHandler) ListDifficulties(w http.ResponseWriter, r *http.Request) {
	levels := plant.Levels()
	items := make([]models.DifficultyProfile, 0, len(levels))
	for _, level := range levels {
		items = append(items, models.DifficultyProfile{Level: level, Profile: plant.ProfileFor(level)})
	}

	response.JSON(w, r, http.StatusOK, models.DifficultyList{
		Default: plant.DefaultDifficulty,
		Items:   items,
	})
}
