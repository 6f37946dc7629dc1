package completion

import (
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/session"
)

// temperatureExcluded lists model names that reject a temperature parameter.
var temperatureExcluded = map[string]bool{
	"o3-mini": true,
}

// ToolDefinition describes one function tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// webSearchTool is the single fixed tool the direct pipeline may attach.
func webSearchTool() ToolDefinition {
	return ToolDefinition{
		Name:        "search_web",
		Description: "Search the web using SERP API",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Params is the provider call specification for one streaming completion.
// Empty string fields are unset; a nil Temperature is omitted from the call.
type Params struct {
	Model       string
	Messages    []history.Message
	Stream      bool
	APIKey      string
	APIBase     string
	APIVersion  string
	Temperature *float64
	Tools       []ToolDefinition
}

// BuildParams assembles the call specification from the selected profile, its
// catalog descriptor and the session settings.
//
// The descriptor may be the zero value when the profile has no catalog entry;
// the downstream provider call is left to fail on its own terms. Messages are
// forwarded unvalidated for the same reason.
func BuildParams(profile string, d config.ModelDescriptor, settings session.Settings, messages []history.Message, useTools bool) Params {
	p := Params{
		Model:    profile,
		Messages: messages,
		Stream:   true,
	}

	if d.APIKey != "" {
		p.APIKey = d.APIKey
	}

	if settings.ModelProvider == config.ProviderAzure {
		if d.APIVersion != "" {
			p.APIVersion = d.APIVersion
		}
		if d.APIEndpoint != "" {
			p.APIBase = d.APIEndpoint
		}
		if !temperatureExcluded[settings.ModelName] {
			t := settings.Temperature
			p.Temperature = &t
		}
	} else {
		t := settings.Temperature
		p.Temperature = &t
	}

	if useTools {
		p.Tools = []ToolDefinition{webSearchTool()}
	}

	return p
}
