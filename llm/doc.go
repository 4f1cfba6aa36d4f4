// Package llm presents a provider-agnostic interface to language model
// backends: a local inference server (Ollama), hosted chat services (OpenAI
// and Azure OpenAI), and a universal text adapter built on gollm.
//
// # Providers
//
// Every backend implements the Provider interface: chat, single-shot
// generation, streaming, function calling, model discovery, and a
// non-erroring health probe. Capabilities() describes what each backend can
// actually do so callers gate on flags instead of probing at call time.
//
//	p := llm.NewOpenAI(llm.OpenAIOptions{APIKey: os.Getenv("OPENAI_API_KEY")})
//	resp, err := p.Chat(ctx, "gpt-5.2", []llm.ChatMessage{
//	    llm.SystemMessage("You are terse."),
//	    llm.UserMessage("Summarize this diff."),
//	}, 0.2)
//
// # Registry
//
// A Registry holds named providers, resolves a default, and answers health
// queries. A deterministic stub is always registered so routing can never
// come up empty:
//
//	reg := llm.NewRegistry()
//	reg.Register(llm.NewOpenAI(openaiOpts))
//	p := reg.FirstHealthy(ctx)
//
// # Structured output
//
// The Normalizer turns any provider into a JSON-schema-constrained one,
// degrading from native schema enforcement to JSON mode to plain prompt
// instructions depending on capabilities, then repairing and validating the
// output:
//
//	n := llm.NewNormalizer(p)
//	out, err := n.GenerateStructured(ctx, "", msgs, schema, 0)
//
// # Errors
//
// All failures map onto a small taxonomy (*llm.Error with an ErrorKind) so
// callers can branch with errors.Is against the exported sentinels.
package llm
