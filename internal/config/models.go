package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Provider identifiers used in model deployments ("provider/name").
const (
	ProviderAzure   = "azure"
	ProviderFoundry = "foundry"
)

// EnvCatalog is the environment variable holding the model catalog as a JSON
// array. When set and parsable it takes priority over the catalog file.
const EnvCatalog = "LLM_CONFIG"

// ModelDescriptor identifies one selectable backend model.
//
// Deployment is a slash-separated "provider/name" pair; everything else is
// optional and consulted only when present. AgentID is set for deployments
// backed by the stateful agent service.
type ModelDescriptor struct {
	Deployment  string `json:"model_deployment"`
	Description string `json:"description,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`
	APIVersion  string `json:"api_version,omitempty"`
	AgentID     string `json:"model_id,omitempty"`
}

// Provider returns the provider half of the deployment pair.
func (d ModelDescriptor) Provider() string {
	provider, _, _ := strings.Cut(d.Deployment, "/")
	return provider
}

// ModelName returns the model-name half of the deployment pair.
func (d ModelDescriptor) ModelName() string {
	_, name, ok := strings.Cut(d.Deployment, "/")
	if !ok {
		return d.Deployment
	}
	return name
}

// Catalog is the ordered list of selectable models.
type Catalog []ModelDescriptor

// LoadCatalog loads the model catalog.
//
// Priority: LLM_CONFIG environment variable (JSON array) when set and valid,
// else the catalog file at path. The catalog is intentionally re-read on
// every call: lookups always observe the current configuration and nothing
// is cached across calls.
func LoadCatalog(path string) (Catalog, error) {
	if raw := os.Getenv(EnvCatalog); strings.TrimSpace(raw) != "" {
		var catalog Catalog
		if err := json.Unmarshal([]byte(raw), &catalog); err == nil {
			return catalog, nil
		}
		// Unparsable env value falls through to the file.
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own config
	if err != nil {
		return nil, fmt.Errorf("reading model catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing model catalog: %w", err)
	}
	return catalog, nil
}

// ByDeployment returns the descriptor whose deployment matches profile
// exactly. A miss returns a zero descriptor and false, never an error; the
// downstream backend call is left to fail on its own terms.
func (c Catalog) ByDeployment(profile string) (ModelDescriptor, bool) {
	for _, d := range c {
		if d.Deployment == profile {
			return d, true
		}
	}
	return ModelDescriptor{}, false
}

// ByModelSuffix returns the first descriptor whose deployment ends in
// "/"+name. Used when only the model-name half of a profile is known.
func (c Catalog) ByModelSuffix(name string) (ModelDescriptor, bool) {
	for _, d := range c {
		if strings.HasSuffix(d.Deployment, "/"+name) {
			return d, true
		}
	}
	return ModelDescriptor{}, false
}
