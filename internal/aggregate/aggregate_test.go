package aggregate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secreview/internal/model"
)

func finding(tool, title string, sev model.Severity) model.Finding {
	return model.Finding{
		Tool:      tool,
		Title:     title,
		Severity:  sev,
		Category:  "security",
		FilePath:  "app.py",
		LineStart: 10,
		LineEnd:   10,
	}
}

func TestFingerprint(t *testing.T) {
	a := finding("A", "sql-injection", model.SeverityHigh)
	b := a
	b.Tool = "B"
	b.Severity = model.SeverityLow
	b.Description = "something else entirely"
	b.LineEnd = 99
	b.CWE = "CWE-89"
	b.FilePath = "./app.py"

	assert.Equal(t, Fingerprint(a), Fingerprint(b), "only path, line_start, category and title participate")
	assert.Len(t, Fingerprint(a), 32)

	for _, mutate := range []func(*model.Finding){
		func(f *model.Finding) { f.FilePath = "other.py" },
		func(f *model.Finding) { f.LineStart = 11 },
		func(f *model.Finding) { f.Category = "quality" },
		func(f *model.Finding) { f.Title = "xss" },
	} {
		c := a
		mutate(&c)
		assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "app.py", NormalizePath("./app.py"))
	assert.Equal(t, "src/app.py", NormalizePath("././src/app.py"))
	assert.Equal(t, "../app.py", NormalizePath("../app.py"))
	assert.Equal(t, ".env", NormalizePath(".env"))
}

func TestDeduplicator_CrossToolMerge(t *testing.T) {
	d := New()
	assert.True(t, d.Add(finding("A", "sql-injection", model.SeverityHigh)))
	assert.False(t, d.Add(finding("B", "sql-injection", model.SeverityCritical)))

	unique := d.Unique()
	require.Len(t, unique, 1)
	assert.Equal(t, model.SeverityCritical, unique[0].Severity)
	assert.Equal(t, "A, B", unique[0].Tool)
	assert.Equal(t, []string{"A", "B"}, unique[0].Metadata[model.MetaTools])
}

// Distinct issues that share file, line, category and title are merged.
// This lossiness is accepted in exchange for cross-tool noise reduction.
func TestDeduplicator_AcceptedFalseMerge(t *testing.T) {
	a := finding("semgrep", "hardcoded-secret", model.SeverityMedium)
	a.Description = "AWS key"
	b := finding("semgrep", "hardcoded-secret", model.SeverityMedium)
	b.Description = "GitHub token in the same line"

	d := New()
	d.Add(a)
	d.Add(b)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, "GitHub token in the same line", d.Unique()[0].Description)
}

func TestMerge_Policy(t *testing.T) {
	a := model.Finding{
		Tool: "semgrep", Title: "t", Severity: model.SeverityMedium, Category: "security",
		FilePath: "x.py", LineStart: 4, LineEnd: 6,
		CodeSnippet: "short", Description: "a much longer description", CWE: "",
		Metadata: map[string]any{"check_id": "x", "tools": []any{"semgrep"}},
	}
	b := model.Finding{
		Tool: "bandit", Title: "t", Severity: model.SeverityHigh, Category: "security",
		FilePath: "x.py", LineStart: 4, LineEnd: 9,
		CodeSnippet: "longer snippet", Description: "short", CWE: "CWE-78",
		Metadata: map[string]any{"test_id": "B602"},
	}

	m := Merge(a, b)
	assert.Equal(t, "bandit, semgrep", m.Tool)
	assert.Equal(t, model.SeverityHigh, m.Severity)
	assert.Equal(t, 4, m.LineStart)
	assert.Equal(t, 9, m.LineEnd)
	assert.Equal(t, "longer snippet", m.CodeSnippet)
	assert.Equal(t, "a much longer description", m.Description)
	assert.Equal(t, "CWE-78", m.CWE)
	assert.Equal(t, "x", m.Metadata["check_id"])
	assert.Equal(t, "B602", m.Metadata["test_id"])
	assert.Equal(t, []string{"bandit", "semgrep"}, m.Metadata[model.MetaTools])

	// Inputs are untouched.
	assert.NotContains(t, b.Metadata, model.MetaTools)
}

func TestMerge_LineRangeWidens(t *testing.T) {
	a := finding("A", "t", model.SeverityLow)
	a.LineEnd = 12
	b := finding("B", "t", model.SeverityLow)
	b.LineStart = 10
	b.LineEnd = 15

	m := Merge(a, b)
	assert.Equal(t, 10, m.LineStart)
	assert.Equal(t, 15, m.LineEnd)
}

func TestMerge_Commutative(t *testing.T) {
	pairs := [][2]model.Finding{
		{finding("A", "t", model.SeverityHigh), finding("B", "t", model.SeverityCritical)},
		{
			{Tool: "x", Title: "t", Severity: model.SeverityLow, CWE: "CWE-1", Description: "abc", Metadata: map[string]any{"k": "1"}},
			{Tool: "y", Title: "t", Severity: model.SeverityLow, CWE: "CWE-2", Description: "xyz", Metadata: map[string]any{"k": "2"}},
		},
		{
			{Tool: "x", Title: "t", FilePath: "./a.go", Severity: model.SeverityMedium, CodeSnippet: "aa"},
			{Tool: "x", Title: "t", FilePath: "a.go", Severity: model.SeverityMedium, CodeSnippet: "bb"},
		},
	}
	for i, p := range pairs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			ab := Merge(p[0], p[1])
			ba := Merge(p[1], p[0])
			if diff := cmp.Diff(ab, ba); diff != "" {
				t.Errorf("merge is not commutative (-ab +ba):\n%s", diff)
			}
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	a := finding("semgrep", "t", model.SeverityHigh)
	a.Description = "desc"
	a.CWE = "CWE-22"
	a.Metadata = map[string]any{"check_id": "c"}

	m := Merge(a, a)
	assert.Equal(t, []string{"semgrep"}, m.Metadata[model.MetaTools])

	delete(m.Metadata, model.MetaTools)
	if diff := cmp.Diff(a, m); diff != "" {
		t.Errorf("merge(a, a) differs from a (-want +got):\n%s", diff)
	}
}

// permutations returns every ordering of in.
func permutations(in []model.Finding) [][]model.Finding {
	if len(in) <= 1 {
		return [][]model.Finding{append([]model.Finding(nil), in...)}
	}
	var out [][]model.Finding
	for i := range in {
		rest := make([]model.Finding, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]model.Finding{in[i]}, p...))
		}
	}
	return out
}

func TestDeduplicator_OrderIndependent(t *testing.T) {
	inputs := []model.Finding{
		finding("semgrep", "sqli", model.SeverityMedium),
		finding("bandit", "sqli", model.SeverityCritical),
		finding("gosec", "sqli", model.SeverityLow),
		finding("semgrep", "xss", model.SeverityHigh),
	}
	want := AggregateFindings(inputs)
	require.Len(t, want, 2)
	assert.Equal(t, "bandit, gosec, semgrep", want[0].Tool)
	assert.Equal(t, model.SeverityCritical, want[0].Severity)

	for _, order := range permutations(inputs) {
		if diff := cmp.Diff(want, AggregateFindings(order)); diff != "" {
			t.Fatalf("result depends on arrival order (-want +got):\n%s", diff)
		}
	}
}

func TestDeduplicator_OrderIndependent_SameToolDuplicates(t *testing.T) {
	a1 := finding("A", "sqli", model.SeverityHigh)
	a1.FilePath = "./app.py"
	a1.Metadata = map[string]any{"k": "a1"}

	a2 := finding("A", "sqli", model.SeverityHigh)
	a2.Metadata = map[string]any{"k": "a2"}
	a2.Description = "same length"

	b1 := finding("B", "sqli", model.SeverityMedium)
	b1.Description = "other words"
	b1.CodeSnippet = "db.execute(q)"

	inputs := []model.Finding{a1, a2, b1}
	want := AggregateFindings(inputs)
	require.Len(t, want, 1)
	assert.Equal(t, "A, B", want[0].Tool)

	for _, order := range permutations(inputs) {
		d := New()
		for _, f := range order {
			d.Add(f)
		}
		if diff := cmp.Diff(want, d.Unique()); diff != "" {
			t.Fatalf("result depends on arrival order (-want +got):\n%s", diff)
		}
	}
}

func TestDeduplicator_ConcurrentArrivalMatchesSequential(t *testing.T) {
	var inputs []model.Finding
	for i := 0; i < 6; i++ {
		f := finding(fmt.Sprintf("tool%d", i%2), "sqli", model.Severities[i%len(model.Severities)])
		f.Metadata = map[string]any{"run": i}
		inputs = append(inputs, f)
	}
	want := AggregateFindings(inputs)

	d := New()
	var wg sync.WaitGroup
	for i := len(inputs) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(f model.Finding) {
			defer wg.Done()
			d.Add(f)
		}(inputs[i])
	}
	wg.Wait()

	if diff := cmp.Diff(want, d.Unique()); diff != "" {
		t.Errorf("concurrent result differs (-sequential +concurrent):\n%s", diff)
	}
}

func TestDeduplicator_CountEqualsDistinctFingerprints(t *testing.T) {
	d := New()
	keys := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		f := finding(fmt.Sprintf("tool%d", i%3), fmt.Sprintf("rule-%d", i%7), model.SeverityLow)
		f.LineStart = i % 5
		keys[Fingerprint(f)] = struct{}{}
		d.Add(f)
	}
	assert.Equal(t, len(keys), d.Len())
	assert.Len(t, d.Unique(), len(keys))
}

func TestDeduplicator_ConcurrentAdd(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Add(finding(fmt.Sprintf("tool%d", w), fmt.Sprintf("rule-%d", i%10), model.SeverityMedium))
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 10, d.Len())
	for _, f := range d.Unique() {
		assert.Len(t, f.Tools(), 8)
	}
}

func TestUniqueOrdering(t *testing.T) {
	low := finding("A", "a", model.SeverityLow)
	crit := finding("A", "b", model.SeverityCritical)
	high := finding("A", "c", model.SeverityHigh)
	high2 := finding("A", "c", model.SeverityHigh)
	high2.FilePath = "aaa.py"

	result := AggregateFindings([]model.Finding{low, high, crit, high2})
	require.Len(t, result, 4)
	assert.Equal(t, model.SeverityCritical, result[0].Severity)
	assert.Equal(t, "aaa.py", result[1].FilePath)
	assert.Equal(t, "app.py", result[2].FilePath)
	assert.Equal(t, model.SeverityLow, result[3].Severity)
}

func TestStatistics(t *testing.T) {
	d := New()
	d.Add(finding("A", "one", model.SeverityCritical))
	d.Add(finding("B", "one", model.SeverityLow))
	dep := model.Finding{Tool: "npm_audit", Title: "lodash", Severity: model.SeverityHigh, Category: "dependency-vulnerability", FilePath: "package.json"}
	d.Add(dep)
	d.Add(finding("A", "two", model.SeverityMedium))

	stats := d.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[model.Severity]int{
		model.SeverityCritical: 1,
		model.SeverityHigh:     1,
		model.SeverityMedium:   1,
		model.SeverityLow:      0,
	}, stats.BySeverity)

	sum := 0
	for _, n := range stats.BySeverity {
		sum += n
	}
	assert.Equal(t, stats.Total, sum)

	assert.Equal(t, map[string]int{"security": 2, "dependency-vulnerability": 1}, stats.ByCategory)
	assert.Equal(t, map[string]int{"app.py": 2, "package.json": 1}, stats.ByFile)
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "npm_audit": 1}, stats.ByTool)
	assert.Equal(t, []string{"app.py"}, stats.TopFiles(1))
}

func TestStatistics_Empty(t *testing.T) {
	stats := New().Statistics()
	assert.Equal(t, 0, stats.Total)
	assert.Len(t, stats.BySeverity, 4)
}
