package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// AzureOptions configures an Azure-hosted OpenAI deployment. Azure addresses
// models through named deployments, so the option record carries an explicit
// model-to-deployment table.
type AzureOptions struct {
	APIKey         string
	Endpoint       string // e.g. https://myresource.openai.azure.com/
	Deployments    map[string]string
	DefaultModel   string
	TimeoutSeconds int
}

// AzureProvider adapts the Azure-hosted OpenAI service. It shares the request
// and response plumbing with OpenAIProvider; only client configuration and
// model resolution differ.
type AzureProvider struct {
	openaiCore
	deployments map[string]string
}

// NewAzure creates an AzureProvider from its option record. Model names are
// translated to deployment names through the configured table; names without
// an entry fall back to the default deployment, or pass through unchanged so
// callers may address deployments directly.
func NewAzure(opts AzureOptions) *AzureProvider {
	cfg := openai.DefaultAzureConfig(opts.APIKey, opts.Endpoint)
	cfg.AzureModelMapperFunc = func(model string) string {
		if dep, ok := opts.Deployments[model]; ok {
			return dep
		}
		if dep, ok := opts.Deployments[opts.DefaultModel]; ok && model == "" {
			return dep
		}
		return model
	}
	return &AzureProvider{
		openaiCore: openaiCore{
			id:           "azure",
			client:       openai.NewClientWithConfig(cfg),
			defaultModel: opts.DefaultModel,
			timeout:      timeoutOrDefault(opts.TimeoutSeconds),
		},
		deployments: opts.Deployments,
	}
}

// IsModelAvailable consults the deployment table instead of the models
// endpoint; Azure only serves what has been deployed.
func (p *AzureProvider) IsModelAvailable(_ context.Context, model string) bool {
	_, ok := p.deployments[model]
	return ok
}

// ListModels reports the configured deployment table rather than querying the
// service, which enumerates base models and not deployments.
func (p *AzureProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	out := make([]ModelInfo, 0, len(p.deployments))
	for model := range p.deployments {
		out = append(out, ModelInfo{ID: model, Provider: p.id})
	}
	return out, nil
}

var _ Provider = (*AzureProvider)(nil)
