package agentloop

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// buildSystemPrompt assembles the instruction block for a run: the
// reason/act protocol, the tool catalog, any caller-supplied context, and
// the environment block.
func buildSystemPrompt(tools []Tool, opts Options) string {
	var sb strings.Builder

	sb.WriteString("You are a coding assistant that solves tasks step by step.\n\n")
	sb.WriteString("On every turn, respond with a single JSON object with exactly these fields:\n")
	sb.WriteString(`  "thought": your reasoning about what to do next` + "\n")
	sb.WriteString(`  "action": the id of one tool to invoke, or "finish" when the task is done` + "\n")
	sb.WriteString(`  "action_input": the arguments for the tool as a JSON object` + "\n\n")
	sb.WriteString("When you finish, put your final answer in action_input as {\"answer\": \"...\"}.\n")
	sb.WriteString("Invoke one tool per turn. Do not output anything besides the JSON object.\n")

	if len(tools) > 0 {
		sb.WriteString("\n<tools>\n")
		for _, t := range tools {
			fmt.Fprintf(&sb, "- %s: %s\n", t.ID, t.Description)
			if len(t.InputSchema) > 0 {
				fmt.Fprintf(&sb, "  input schema: %s\n", string(t.InputSchema))
			}
		}
		sb.WriteString("</tools>\n")
	}

	if opts.AdditionalContext != "" {
		sb.WriteString("\n" + opts.AdditionalContext + "\n")
	}

	sb.WriteString("\n" + buildEnvironmentBlock(opts.WorkingDirectory))
	return sb.String()
}

// buildEnvironmentBlock generates the structured environment context block.
func buildEnvironmentBlock(workingDir string) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	if workingDir != "" {
		fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
		isRepo := isGitRepository(workingDir)
		fmt.Fprintf(&sb, "Is git repository: %v\n", isRepo)
		if branch := gitBranch(workingDir); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}

func isGitRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
