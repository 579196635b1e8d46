package main

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/retrieval"
	"codemap/internal/structural"
)

func formatSearchResults(g *hybrid.Graph, results []hybrid.SearchResult) string {
	lines := []string{
		"# Hybrid Search Results",
		"",
		fmt.Sprintf("**Found:** %d files", len(results)),
		"",
	}

	for _, r := range results {
		relStr := "name match"
		if types := incidentTypes(g, r.Node.ID); len(types) > 0 {
			relStr = strings.Join(types, ", ")
		}
		lines = append(lines,
			fmt.Sprintf("- `%s` (score: %.2f)", r.Node.Name, r.Score),
			fmt.Sprintf("  - Path: `%s`", r.Node.Path),
			fmt.Sprintf("  - Relationships: %s", relStr),
		)
	}
	return strings.Join(lines, "\n")
}

// incidentTypes collects up to three relationship kinds touching a node.
func incidentTypes(g *hybrid.Graph, id string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, rel := range g.RelatedNodes(id, 0) {
		for _, t := range rel.RelationshipTypes {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	if len(types) > 3 {
		types = types[:3]
	}
	return types
}

func formatRelated(id string, related []hybrid.Related) string {
	lines := []string{
		fmt.Sprintf("# Related to %s", path.Base(id)),
		"",
	}
	if len(related) == 0 {
		lines = append(lines, "No related files found. Run `codemap build` first.")
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("**Found:** %d files", len(related)), "")
	for _, r := range related {
		lines = append(lines, fmt.Sprintf("- `%s` (score: %.2f, %s)",
			r.ID, r.Score, strings.Join(r.RelationshipTypes, ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatQueryResult(res structural.QueryResult) string {
	lines := []string{
		fmt.Sprintf("# Graph Query: %s", res.Query),
		"",
	}

	if res.Node != nil {
		lines = append(lines,
			fmt.Sprintf("**Found:** `%s` (%s)", res.Node.QualifiedName, res.Node.Kind),
			fmt.Sprintf("**File:** `%s:%d`", res.Node.File, res.Node.Line),
			"")
	}

	if len(res.Callers) > 0 {
		lines = append(lines, fmt.Sprintf("## Called By (%d)", len(res.Callers)))
		lines = append(lines, refLines(res.Callers, 10)...)
		lines = append(lines, "")
	}
	if len(res.Callees) > 0 {
		lines = append(lines, fmt.Sprintf("## Calls (%d)", len(res.Callees)))
		lines = append(lines, refLines(res.Callees, 10)...)
		lines = append(lines, "")
	}
	if len(res.RelatedFiles) > 0 {
		lines = append(lines, fmt.Sprintf("## Related Files (%d)", len(res.RelatedFiles)))
		files := res.RelatedFiles
		if len(files) > 5 {
			files = files[:5]
		}
		for _, f := range files {
			lines = append(lines, fmt.Sprintf("- `%s`", f))
		}
		lines = append(lines, "")
	}

	if res.Node == nil && len(res.Callers) == 0 && len(res.Callees) == 0 {
		lines = append(lines, "No results found. Try rebuilding the graph: `codemap build`")
	}
	return strings.Join(lines, "\n")
}

func refLines(refs []structural.Ref, limit int) []string {
	var lines []string
	shown := refs
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		lines = append(lines, fmt.Sprintf("- `%s` (%s:%d)", r.Name, r.File, r.Line))
	}
	if len(refs) > limit {
		lines = append(lines, fmt.Sprintf("- ... and %d more", len(refs)-limit))
	}
	return lines
}

func formatCorrelations(file string, correlations []history.Correlation) string {
	lines := []string{
		fmt.Sprintf("# Correlations for %s", path.Base(file)),
		"",
	}
	if len(correlations) == 0 {
		lines = append(lines, "No correlations found. Build patterns with `codemap learn`")
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("**Found:** %d correlated files", len(correlations)), "")
	for _, c := range correlations {
		lines = append(lines, fmt.Sprintf("- `%s` (strength: %d, %s)",
			path.Base(c.Path), c.Strength, c.Reason))
	}
	return strings.Join(lines, "\n")
}

func formatAllPatterns(data *history.CorrelationData) string {
	lines := []string{
		"# Learned Correlation Patterns",
		"",
		fmt.Sprintf("**Commits Analyzed:** %d", data.CommitsAnalyzed),
		fmt.Sprintf("**Last Updated:** %s", data.LastUpdated.Format("2006-01-02 15:04:05")),
		"",
	}

	if len(data.LearnedPatterns) > 0 {
		lines = append(lines, "## Discovered Patterns", "")
		for _, p := range data.LearnedPatterns {
			lines = append(lines, "- "+p)
		}
	} else {
		lines = append(lines, "No patterns learned yet. Run `codemap learn` to analyze git history.")
	}

	lines = append(lines, "", "## Top Co-Modified Files", "")
	for _, p := range data.TopPairs(3, 15) {
		lines = append(lines, fmt.Sprintf("- `%s` <-> `%s` (%dx)",
			path.Base(p.A), path.Base(p.B), p.Count))
	}
	return strings.Join(lines, "\n")
}

func formatContext(out *retrieval.Context) string {
	lines := []string{
		fmt.Sprintf("# Predicted Context: %s", out.Query),
		"",
	}
	if len(out.Entries) == 0 {
		lines = append(lines, "No context predicted. Run `codemap build` first.")
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("**Found:** %d files", len(out.Entries)), "")
	for _, e := range out.Entries {
		reason := "seed"
		if len(e.RelationshipTypes) > 0 {
			reason = strings.Join(e.RelationshipTypes, ", ")
		}
		lines = append(lines, fmt.Sprintf("- `%s` (score: %.2f, hops: %d, %s)",
			e.ID, e.Score, e.Hops, reason))
	}
	return strings.Join(lines, "\n")
}

func formatStats(sg *structural.Graph, hg *hybrid.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nodes: %d\n", hg.Len())
	fmt.Fprintf(&b, "Edges: %d\n", len(hg.Edges()))

	typeCounts := make(map[string]int)
	for _, e := range hg.Edges() {
		for _, t := range e.RelationshipTypes {
			typeCounts[t]++
		}
	}
	if len(typeCounts) > 0 {
		b.WriteString("\nEdge types:\n")
		types := make([]string, 0, len(typeCounts))
		for t := range typeCounts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %s: %d\n", t, typeCounts[t])
		}
	}

	if sg != nil {
		b.WriteString("\nSymbols:\n")
		kinds := sg.CountByKind()
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, string(k))
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, "  %s: %d\n", k, kinds[structural.NodeKind(k)])
		}
	}
	return b.String()
}
