package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner serves canned git log output.
type fakeRunner struct {
	out []byte
	err error
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return f.out, f.err
}

func TestCorrelationData_RecordComodSymmetry(t *testing.T) {
	d := NewCorrelationData(".")
	d.RecordComod([]string{"a.py", "b.py", "c.py"})

	for _, pair := range [][2]string{{"a.py", "b.py"}, {"a.py", "c.py"}, {"b.py", "c.py"}} {
		assert.Equal(t, 1, d.ComodCounts[pair[0]][pair[1]], "%v", pair)
		assert.Equal(t, 1, d.ComodCounts[pair[1]][pair[0]], "%v", pair)
	}
	assert.NotContains(t, d.ComodCounts["a.py"], "a.py")
	assert.NotContains(t, d.ComodCounts, "d.py")
}

func TestCorrelationData_RecordAccessWindow(t *testing.T) {
	d := NewCorrelationData(".")
	for i := 0; i < 7; i++ {
		d.RecordAccess(fmt.Sprintf("f%d.py", i))
	}

	assert.Len(t, d.Recent, 5)
	assert.Equal(t, []string{"f2.py", "f3.py", "f4.py", "f5.py", "f6.py"}, d.Recent)

	// f6 correlates with the 5 files in the window when it was recorded.
	assert.Equal(t, 1, d.AccessCounts["f6.py"]["f5.py"])
	assert.Equal(t, 1, d.AccessCounts["f5.py"]["f6.py"])
	assert.Equal(t, 1, d.AccessCounts["f6.py"]["f1.py"])
	assert.NotContains(t, d.AccessCounts["f6.py"], "f0.py")
}

func TestCorrelationData_ExtractPatterns(t *testing.T) {
	d := NewCorrelationData(".")
	for i := 0; i < 5; i++ {
		d.RecordComod([]string{"src/a.py", "src/b.py"})
	}
	d.RecordComod([]string{"src/a.py", "src/c.py"})

	patterns := d.ExtractPatterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, "a.py and b.py are strongly correlated (5 co-modifications)", patterns[0])
}

func TestCorrelationData_CorrelationsFor(t *testing.T) {
	d := NewCorrelationData(".")
	d.RecordComod([]string{"src/a.py", "src/b.py"})
	d.RecordComod([]string{"src/a.py", "src/b.py"})
	d.RecordAccess("src/a.py")
	d.RecordAccess("src/b.py")
	d.RecordAccess("src/c.py")

	got := d.CorrelationsFor("a.py", 10)
	require.NotEmpty(t, got)

	assert.Equal(t, "src/b.py", got[0].Path)
	assert.Equal(t, 3, got[0].Strength) // 2 comod + 1 access
	assert.Equal(t, "co-modified+accessed", got[0].Reason)
}

const (
	hash1 = "aa11bb22cc33dd44ee55ff6600778899aabbccdd"
	hash2 = "bb22cc33dd44ee55ff6600778899aabbccddee11"
	hash3 = "cc33dd44ee55ff6600778899aabbccddee11ff22"
	hash4 = "dd44ee55ff6600778899aabbccddee11ff22aa33"
)

func TestMiner_Learn(t *testing.T) {
	out := []byte(hash3 + `|alice|third

a.py
b.py
` + hash2 + `|bob|second

a.py
b.py
notes.txt
` + hash1 + `|carol|first

a.py
`)
	m := NewMiner(&fakeRunner{out: out}, 200, []string{".py"}, nil)
	d := NewCorrelationData(".")

	counted, err := m.Learn(context.Background(), ".", d)
	require.NoError(t, err)

	t.Run("single-source-file commits contribute no pairs", func(t *testing.T) {
		assert.Equal(t, 2, counted)
		assert.Equal(t, 2, d.ComodCounts["a.py"]["b.py"])
		assert.Equal(t, 2, d.ComodCounts["b.py"]["a.py"])
	})

	t.Run("marker set to newest commit", func(t *testing.T) {
		assert.Equal(t, hash3, d.LastCommit)
		assert.Equal(t, 2, d.CommitsAnalyzed)
	})

	t.Run("re-mining an overlapping window adds nothing", func(t *testing.T) {
		counted, err := m.Learn(context.Background(), ".", d)
		require.NoError(t, err)
		assert.Equal(t, 0, counted)
		assert.Equal(t, 2, d.ComodCounts["a.py"]["b.py"])
		assert.Equal(t, 2, d.CommitsAnalyzed)
	})

	t.Run("new commits on top are counted", func(t *testing.T) {
		newer := append([]byte(hash4+"|dave|fourth\n\na.py\nb.py\n"), out...)
		m2 := NewMiner(&fakeRunner{out: newer}, 200, []string{".py"}, nil)
		counted, err := m2.Learn(context.Background(), ".", d)
		require.NoError(t, err)
		assert.Equal(t, 1, counted)
		assert.Equal(t, 3, d.ComodCounts["a.py"]["b.py"])
		assert.Equal(t, hash4, d.LastCommit)
	})
}

func TestMiner_SourceFilter(t *testing.T) {
	out := []byte(hash1 + "|a|mixed\n\na.py\nREADME.md\nMakefile\n")
	m := NewMiner(&fakeRunner{out: out}, 200, []string{".py"}, nil)
	d := NewCorrelationData(".")

	counted, err := m.Learn(context.Background(), ".", d)
	require.NoError(t, err)

	// Only one source file touched: no pairs even though the commit
	// changed three files.
	assert.Equal(t, 0, counted)
	assert.Empty(t, d.ComodCounts)
}
