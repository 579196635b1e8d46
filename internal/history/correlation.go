package history

import (
	"fmt"
	"path"
	"sort"
	"time"
)

// CorrelationData is the learned correlation table: which files change
// together and which files are accessed together. It is persisted on its
// own and also feeds the fusion graph's co-modification signal.
type CorrelationData struct {
	Root string `json:"root"`

	// ComodCounts[a][b] counts commits that touched both a and b. Kept
	// symmetric by construction.
	ComodCounts map[string]map[string]int `json:"comod_counts"`

	// AccessCounts[a][b] counts sessions where a and b were opened close
	// together.
	AccessCounts map[string]map[string]int `json:"access_counts"`

	// Recent is the sliding window of lately accessed files, newest last.
	Recent []string `json:"recent_accesses"`

	LearnedPatterns []string  `json:"learned_patterns"`
	LastUpdated     time.Time `json:"last_updated"`
	CommitsAnalyzed int       `json:"commits_analyzed"`

	// LastCommit is the newest commit hash already counted, so repeated
	// mining over an overlapping window stays strictly incremental.
	LastCommit string `json:"last_commit,omitempty"`
}

// NewCorrelationData creates an empty table for a project root.
func NewCorrelationData(root string) *CorrelationData {
	return &CorrelationData{
		Root:         root,
		ComodCounts:  make(map[string]map[string]int),
		AccessCounts: make(map[string]map[string]int),
	}
}

// Normalize ensures the inner maps exist after deserialization.
func (d *CorrelationData) Normalize() {
	if d.ComodCounts == nil {
		d.ComodCounts = make(map[string]map[string]int)
	}
	if d.AccessCounts == nil {
		d.AccessCounts = make(map[string]map[string]int)
	}
}

// RecordComod increments the co-modification count for every unordered
// pair in files, symmetrically.
func (d *CorrelationData) RecordComod(files []string) {
	for i, f1 := range files {
		for _, f2 := range files[i+1:] {
			bump(d.ComodCounts, f1, f2)
			bump(d.ComodCounts, f2, f1)
		}
	}
}

// RecordAccess notes that a file was opened, correlating it with the files
// in the recent-access window.
func (d *CorrelationData) RecordAccess(file string) {
	for _, recent := range d.Recent {
		if recent == file {
			continue
		}
		bump(d.AccessCounts, file, recent)
		bump(d.AccessCounts, recent, file)
	}

	d.Recent = append(d.Recent, file)
	if len(d.Recent) > recentWindow {
		d.Recent = d.Recent[len(d.Recent)-recentWindow:]
	}
}

const recentWindow = 5

// patternThreshold is the co-modification count at which a pair is called
// strongly correlated.
const patternThreshold = 5

const maxPatterns = 20

// ExtractPatterns renders high-confidence pairs as human-readable pattern
// strings. Descriptive output only; the counts are what feed the graph.
func (d *CorrelationData) ExtractPatterns() []string {
	var patterns []string
	seen := make(map[string]bool)
	for _, p := range d.TopPairs(patternThreshold, 0) {
		s := fmt.Sprintf("%s and %s are strongly correlated (%d co-modifications)",
			path.Base(p.A), path.Base(p.B), p.Count)
		if !seen[s] {
			seen[s] = true
			patterns = append(patterns, s)
		}
		if len(patterns) >= maxPatterns {
			break
		}
	}
	return patterns
}

// Pair is an unordered co-modified file pair with its count.
type Pair struct {
	A, B  string
	Count int
}

// TopPairs lists distinct pairs with count >= min, strongest first.
// limit <= 0 means no limit.
func (d *CorrelationData) TopPairs(min, limit int) []Pair {
	seen := make(map[[2]string]bool)
	var pairs []Pair
	for f1, others := range d.ComodCounts {
		for f2, count := range others {
			if count < min {
				continue
			}
			key := [2]string{f1, f2}
			if f2 < f1 {
				key = [2]string{f2, f1}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, Pair{A: key[0], B: key[1], Count: count})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// Correlation is one related-file entry in a per-file report.
type Correlation struct {
	Path     string
	Strength int
	Reason   string
}

// CorrelationsFor merges co-modification and co-access counts for a file.
// Matching is lenient: the query may be a bare file name or a full path.
// Entries present in both tables are boosted and relabeled.
func (d *CorrelationData) CorrelationsFor(file string, limit int) []Correlation {
	name := path.Base(file)
	matches := func(key string) bool {
		return key == file || path.Base(key) == name
	}

	index := make(map[string]int)
	var results []Correlation
	for key, others := range d.ComodCounts {
		if !matches(key) {
			continue
		}
		for related, count := range others {
			if count <= 0 {
				continue
			}
			index[related] = len(results)
			results = append(results, Correlation{Path: related, Strength: count, Reason: "co-modified"})
		}
	}
	for key, others := range d.AccessCounts {
		if !matches(key) {
			continue
		}
		for related, count := range others {
			if count <= 0 {
				continue
			}
			if i, ok := index[related]; ok {
				results[i].Strength += count
				results[i].Reason = "co-modified+accessed"
			} else {
				index[related] = len(results)
				results = append(results, Correlation{Path: related, Strength: count, Reason: "co-accessed"})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Strength != results[j].Strength {
			return results[i].Strength > results[j].Strength
		}
		return results[i].Path < results[j].Path
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func bump(m map[string]map[string]int, a, b string) {
	inner, ok := m[a]
	if !ok {
		inner = make(map[string]int)
		m[a] = inner
	}
	inner[b]++
}
