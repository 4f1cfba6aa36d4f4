// Package agents routes tasks to registered agents by capability. Each
// agent declares what it can do through Metadata; the Registry picks the
// best match by priority, and LoopAgent runs matched tasks through the
// execution loop against a resolved provider.
package agents
