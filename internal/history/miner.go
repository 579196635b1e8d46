package history

import (
	"context"
	"log/slog"
	"path"
	"time"

	"codemap/internal/gitlog"
)

// DefaultMaxCommits bounds how much history one mining run replays.
const DefaultMaxCommits = 200

// Miner replays version-control history and turns multi-file commits into
// co-modification counts. A commit touching fewer than two source files
// carries no signal and contributes nothing.
type Miner struct {
	runner     gitlog.Runner
	maxCommits int
	sourceExts map[string]bool
	logger     *slog.Logger
}

// NewMiner creates a miner over the given runner. sourceExts lists the
// file extensions (".py", ".go", ...) that count as source files; commits
// are reduced to those before pairing.
func NewMiner(runner gitlog.Runner, maxCommits int, sourceExts []string, logger *slog.Logger) *Miner {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Miner{
		runner:     runner,
		maxCommits: maxCommits,
		sourceExts: make(map[string]bool),
		logger:     logger,
	}
	for _, e := range sourceExts {
		m.sourceExts[e] = true
	}
	return m
}

// Commits returns the recent commit window with file lists reduced to
// source files, newest first.
func (m *Miner) Commits(ctx context.Context, root string) ([]gitlog.Commit, error) {
	commits, err := gitlog.Log(ctx, m.runner, root, m.maxCommits)
	if err != nil {
		return nil, err
	}
	for i := range commits {
		commits[i].Files = m.filterSource(commits[i].Files)
	}
	return commits, nil
}

// Learn mines the recent commit window into the correlation table and
// refreshes its learned patterns. Commits at or before the table's
// LastCommit marker are skipped, so repeated runs over an overlapping
// window do not double count. Returns the number of commits that
// contributed pairs.
func (m *Miner) Learn(ctx context.Context, root string, data *CorrelationData) (int, error) {
	commits, err := m.Commits(ctx, root)
	if err != nil {
		return 0, err
	}

	counted := 0
	for _, c := range commits {
		if c.Hash == data.LastCommit {
			break
		}
		if len(c.Files) < 2 {
			continue
		}
		data.RecordComod(c.Files)
		counted++
	}

	if len(commits) > 0 {
		data.LastCommit = commits[0].Hash
	}
	data.CommitsAnalyzed += counted
	data.LearnedPatterns = data.ExtractPatterns()
	data.LastUpdated = time.Now().UTC()

	m.logger.Info("mined commit history", "root", root, "commits", counted)
	return counted, nil
}

func (m *Miner) filterSource(files []string) []string {
	var out []string
	for _, f := range files {
		if m.sourceExts[path.Ext(f)] {
			out = append(out, f)
		}
	}
	return out
}
