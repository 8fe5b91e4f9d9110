package telegram

import (
	"fmt"
	"strings"

	"mathcast/api/internal/tracker"
)

const maxMessage = 3900

func clip(s string) string {
	if r := []rune(s); len(r) > maxMessage {
		return string(r[:maxMessage]) + "…"
	}
	return s
}

// progressBar renders p (0..100) as ten cells.
func progressBar(p int) string {
	p = min(max(p, 0), 100)
	full := p / 10
	return strings.Repeat("▓", full) + strings.Repeat("░", 10-full)
}

func progressText(t tracker.Task) string {
	switch t.Status {
	case tracker.StatusCompleted:
		return "✅ " + progressBar(100) + " 100%\nDone"
	case tracker.StatusFailed:
		return fmt.Sprintf("❌ %s %d%%\nFailed", progressBar(t.Progress), t.Progress)
	case tracker.StatusPending:
		return "🕓 " + progressBar(0) + " 0%\nWaiting for a free worker"
	}
	return fmt.Sprintf("⏳ %s %d%%\n%s", progressBar(t.Progress), t.Progress, t.Message)
}

func formatSolution(res tracker.Result) string {
	var b strings.Builder
	p, sol := res.Problem, res.Solution

	fmt.Fprintf(&b, "📘 %s\n", capitalize(p.Type.Label()))
	if expr := strings.TrimSpace(p.Expression); expr != "" {
		fmt.Fprintf(&b, "Problem: %s\n", expr)
	} else if raw := strings.TrimSpace(p.RawText); raw != "" {
		fmt.Fprintf(&b, "Problem: %s\n", raw)
	}
	b.WriteString("\n")

	for i, st := range sol.Steps {
		fmt.Fprintf(&b, "%d) %s\n", i+1, st.Description)
		switch {
		case st.Before != "" && st.After != "":
			fmt.Fprintf(&b, "   %s → %s\n", st.Before, st.After)
		case st.After != "":
			fmt.Fprintf(&b, "   %s\n", st.After)
		}
		if st.Hint != "" {
			fmt.Fprintf(&b, "   💡 %s\n", st.Hint)
		}
	}

	if sol.FinalAnswer != "" {
		fmt.Fprintf(&b, "\n✅ Answer: %s\n", sol.FinalAnswer)
	}
	check := "not verified"
	if sol.Verified {
		check = "verified"
	}
	fmt.Fprintf(&b, "Solved by the %s, %s.\n", sol.Provider.Label(), check)

	if res.Artifact.URI != "" {
		fmt.Fprintf(&b, "\n🎬 Video: %s\n", res.Artifact.URI)
	}
	return strings.TrimRight(b.String(), "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
