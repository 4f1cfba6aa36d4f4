package llm

import (
	"context"
	"testing"
)

func newTestAzure() *AzureProvider {
	return NewAzure(AzureOptions{
		APIKey:   "test",
		Endpoint: "https://example.openai.azure.com/",
		Deployments: map[string]string{
			"gpt-5.2":      "prod-gpt52",
			"gpt-5.2-mini": "prod-gpt52-mini",
		},
		DefaultModel: "gpt-5.2",
	})
}

func TestAzureIsModelAvailable(t *testing.T) {
	p := newTestAzure()
	ctx := context.Background()

	if !p.IsModelAvailable(ctx, "gpt-5.2") {
		t.Error("deployed model should be available")
	}
	if p.IsModelAvailable(ctx, "gpt-4o-mini") {
		t.Error("undeployed model should not be available")
	}
}

func TestAzureListModels(t *testing.T) {
	p := newTestAzure()
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want the deployment table", len(models))
	}
	for _, m := range models {
		if m.Provider != "azure" {
			t.Errorf("model %q attributed to %q", m.ID, m.Provider)
		}
	}
}

func TestAzureCapabilities(t *testing.T) {
	p := newTestAzure()
	if p.ID() != "azure" {
		t.Errorf("ID = %q", p.ID())
	}
	if caps := p.Capabilities(); !caps.StrictSchema {
		t.Errorf("azure shares the hosted capability set, got %+v", caps)
	}
}
