package api

import (
	"log/slog"
	"net/http"
)

// modelHandler serves the model catalog and the fixed starter prompts the UI
// shows on a fresh conversation.
type modelHandler struct {
	catalog CatalogFunc
	logger  *slog.Logger
}

// Profile is one selectable model in the UI.
type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Starter is a canned prompt offered on an empty conversation.
type Starter struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

// starters is the fixed starter set. Labels and messages are part of the UI
// contract and change together with the frontend.
var starters = []Starter{
	{
		Label:   "Morning routine ideation",
		Message: "Can you help me create a personalized morning routine that would help increase my productivity throughout the day? Start by asking me about my current habits and what activities energize me in the morning.",
		Icon:    "/public/bulb.webp",
	},
	{
		Label:   "Spot the errors",
		Message: "How can I avoid common mistakes when proofreading my work?",
		Icon:    "/public/warning.webp",
	},
	{
		Label:   "Get more done",
		Message: "How can I improve my productivity during remote work?",
		Icon:    "/public/rocket.png",
	},
	{
		Label:   "Boost your knowledge",
		Message: "Help me learn about [topic]",
		Icon:    "/public/book.png",
	},
}

// listProfiles returns one profile per catalog entry, keyed by deployment.
func (h *modelHandler) listProfiles(w http.ResponseWriter, _ *http.Request) {
	catalog, err := h.catalog()
	if err != nil {
		h.logger.Error("loading model catalog", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog_unavailable", "failed to load model catalog")
		return
	}

	profiles := make([]Profile, 0, len(catalog))
	for _, d := range catalog {
		profiles = append(profiles, Profile{
			Name:        d.Deployment,
			Description: d.Description,
		})
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *modelHandler) listStarters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, starters)
}
