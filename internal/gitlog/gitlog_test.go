package gitlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "3d7f0c1a9b2e4d5f6a7b8c9d0e1f2a3b4c5d6e7f"
	hashB = "1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d"
	hashC = "9f8e7d6c5b4a392817161514131211100f0e0d0c"
)

// Real `git log --name-only --format=%H|%an|%s` output: a blank line
// after each header, none between the last file and the next header.
func TestParseLog(t *testing.T) {
	out := []byte(hashA + `|alice|add feature

src/a.py
src/b.py
` + hashB + `|bob|fix bug

src/a.py
` + hashC + `|carol|docs only

README.md
`)

	commits := ParseLog(out)
	require.Len(t, commits, 3)

	assert.Equal(t, hashA, commits[0].Hash)
	assert.Equal(t, "alice", commits[0].Author)
	assert.Equal(t, "add feature", commits[0].Subject)
	assert.Equal(t, []string{"src/a.py", "src/b.py"}, commits[0].Files)

	assert.Equal(t, []string{"src/a.py"}, commits[1].Files)
	assert.Equal(t, []string{"README.md"}, commits[2].Files)
}

// Blank-line-separated blocks parse the same as the compact form.
func TestParseLog_BlankSeparatedBlocks(t *testing.T) {
	out := []byte(hashA + "|alice|first\n\nsrc/a.py\nsrc/b.py\n\n" + hashB + "|bob|second\n\nsrc/a.py\n")
	commits := ParseLog(out)
	require.Len(t, commits, 2)
	assert.Equal(t, []string{"src/a.py", "src/b.py"}, commits[0].Files)
	assert.Equal(t, []string{"src/a.py"}, commits[1].Files)
}

func TestParseLog_MergeCommitHasNoFiles(t *testing.T) {
	out := []byte(hashA + "|alice|merge branch\n\n" + hashB + "|bob|real work\n\nsrc/a.py\nsrc/b.py\n")
	commits := ParseLog(out)
	require.Len(t, commits, 2)
	assert.Empty(t, commits[0].Files)
	assert.Equal(t, []string{"src/a.py", "src/b.py"}, commits[1].Files)
}

func TestParseLog_Empty(t *testing.T) {
	assert.Empty(t, ParseLog(nil))
	assert.Empty(t, ParseLog([]byte("\n\n")))
}

func TestParseLog_SubjectWithSeparator(t *testing.T) {
	commits := ParseLog([]byte(hashA + "|alice|fix: a|b thing\n\nsrc/a.py\n"))
	require.Len(t, commits, 1)
	assert.Equal(t, "fix: a|b thing", commits[0].Subject)
	assert.Equal(t, []string{"src/a.py"}, commits[0].Files)
}

func TestParseDiff(t *testing.T) {
	out := []byte(`diff --git a/src/a.py b/src/a.py
index 111..222 100644
--- a/src/a.py
+++ b/src/a.py
@@ -10,2 +10,3 @@ def foo():
+    x = 1
+    y = 2
+    return x + y
@@ -30 +31 @@ def bar():
+    pass
diff --git a/src/b.py b/src/b.py
index 333..444 100644
--- a/src/b.py
+++ b/src/b.py
@@ -1,0 +2,2 @@
+import os
+import sys
`)

	changes := ParseDiff(out)
	require.Len(t, changes, 2)

	assert.Equal(t, "src/a.py", changes[0].Path)
	assert.Equal(t, []int{10, 11, 12, 31}, changes[0].ChangedLines)

	assert.Equal(t, "src/b.py", changes[1].Path)
	assert.Equal(t, []int{2, 3}, changes[1].ChangedLines)
}

func TestParseDiff_Empty(t *testing.T) {
	assert.Empty(t, ParseDiff(nil))
}
