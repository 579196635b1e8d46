package gitlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a version-control command and returns its raw output.
// The rest of the system treats version control as a black box producing
// text, which keeps history mining testable without a repository.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner shells out to the git binary.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Commit is one commit block from the log: a header line followed by the
// files it touched, paths relative to the repository root.
type Commit struct {
	Hash    string
	Author  string
	Subject string
	Files   []string
}

// Log returns the most recent commits with their changed file lists,
// newest first.
func Log(ctx context.Context, r Runner, dir string, maxCommits int) ([]Commit, error) {
	out, err := r.Run(ctx, dir, "log", "--name-only", "--format=%H|%an|%s", fmt.Sprintf("-n%d", maxCommits))
	if err != nil {
		return nil, err
	}
	return ParseLog(out), nil
}

// ParseLog parses `git log --name-only --format=%H|%an|%s` output into
// commit blocks, each a header followed by the changed file paths. Git
// puts a blank line between the header and the file list but none
// between the last file and the next header, so blocks cannot be split
// on blank lines; instead every line that looks like a header (a commit
// hash before the first separator) starts a new commit and everything
// else is a file path. File lines before the first header are dropped.
func ParseLog(out []byte) []Commit {
	var commits []Commit
	var current *Commit

	flush := func() {
		if current != nil {
			commits = append(commits, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c, ok := parseLogHeader(line); ok {
			flush()
			current = &c
			continue
		}
		if current != nil {
			current.Files = append(current.Files, line)
		}
	}
	flush()
	return commits
}

// parseLogHeader recognizes a `%H|%an|%s` header by its leading commit
// hash. No file path in --name-only output looks like 40 hex digits
// followed by a separator, so the hash doubles as the block delimiter.
func parseLogHeader(line string) (Commit, bool) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 2 || !isCommitHash(parts[0]) {
		return Commit{}, false
	}
	c := Commit{Hash: parts[0], Author: parts[1]}
	if len(parts) > 2 {
		c.Subject = parts[2]
	}
	return c, true
}

func isCommitHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// ChangedFile is a file touched by a working-tree diff, with the line
// numbers of the new version that changed.
type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// Diff runs git diff against a base ref and reports changed files with
// their changed line numbers.
func Diff(ctx context.Context, r Runner, dir, baseRef string) ([]ChangedFile, error) {
	out, err := r.Run(ctx, dir, "diff", "-U0", baseRef)
	if err != nil {
		return nil, err
	}
	return ParseDiff(out), nil
}

// ParseDiff extracts changed files and line numbers from unified diff
// output produced with zero context lines.
func ParseDiff(out []byte) []ChangedFile {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var changes []ChangedFile
	var current *ChangedFile

	flush := func() {
		if current != nil {
			changes = append(changes, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			flush()
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				current = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/")}
			}
			continue
		}
		if current == nil || !strings.HasPrefix(line, "@@") {
			continue
		}
		if start, count, ok := parseHunkHeader(line); ok {
			for i := 0; i < count; i++ {
				current.ChangedLines = append(current.ChangedLines, start+i)
			}
		}
	}
	flush()
	return changes
}

// parseHunkHeader reads the new-file side of `@@ -a,b +c,d @@`.
func parseHunkHeader(line string) (start, count int, ok bool) {
	idx := strings.Index(line, "+")
	if idx < 0 {
		return 0, 0, false
	}
	rest := line[idx+1:]
	if end := strings.Index(rest, " "); end >= 0 {
		rest = rest[:end]
	}

	count = 1
	numPart := rest
	if comma := strings.Index(rest, ","); comma >= 0 {
		numPart = rest[:comma]
		c, err := strconv.Atoi(rest[comma+1:])
		if err != nil {
			return 0, 0, false
		}
		count = c
	}
	s, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, 0, false
	}
	return s, count, true
}
