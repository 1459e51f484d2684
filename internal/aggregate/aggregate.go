// Package aggregate folds findings from several tools into one deduplicated
// set and summarizes it.
package aggregate

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/json-iterator/go"

	"secreview/internal/model"
)

// NormalizePath strips any leading "./" segments so that "./app.py" and
// "app.py" fingerprint alike.
func NormalizePath(p string) string {
	for strings.HasPrefix(p, "./") {
		p = strings.TrimLeft(strings.TrimPrefix(p, "./"), "/")
	}
	return p
}

// Fingerprint identifies the underlying issue a finding describes:
// normalized path, first line, category and title. Tool identity and
// description are deliberately not part of it, so equal-looking reports
// from different tools collapse into one entry.
func Fingerprint(f model.Finding) string {
	key := fmt.Sprintf("%s:%d:%s:%s", NormalizePath(f.FilePath), f.LineStart, f.Category, f.Title)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Merge combines two findings that share a fingerprint. The result does not
// depend on argument order: whenever the policy says "keep the first", the
// first is whichever finding sorts first under a fixed content ordering.
func Merge(a, b model.Finding) model.Finding {
	if precedes(b, a) {
		a, b = b, a
	}
	return mergeInto(a, b)
}

// mergeInto applies the merge policy with a as the "first" finding.
func mergeInto(a, b model.Finding) model.Finding {
	out := model.Finding{
		Tool:        model.JoinTools(append(a.Tools(), b.Tools()...)),
		Title:       a.Title,
		Severity:    a.Severity.Max(b.Severity),
		Category:    a.Category,
		FilePath:    a.FilePath,
		LineStart:   min(a.LineStart, b.LineStart),
		LineEnd:     max(a.LineEnd, b.LineEnd),
		CodeSnippet: longer(a.CodeSnippet, b.CodeSnippet),
		Description: longer(a.Description, b.Description),
		CWE:         a.CWE,
		Metadata:    mergeMetadata(a, b),
	}
	if out.CWE == "" {
		out.CWE = b.CWE
	}
	return out
}

// fold merges the reports of one fingerprint. Reports are sorted under the
// content ordering first, so the result depends only on the set of reports
// and never on the order they arrived in.
func fold(reports []model.Finding) model.Finding {
	sorted := append([]model.Finding(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool { return precedes(sorted[i], sorted[j]) })

	out := sorted[0]
	for _, f := range sorted[1:] {
		out = mergeInto(out, f)
	}
	return out
}

// longer returns the longer string, or x when lengths tie.
func longer(x, y string) string {
	if len(y) > len(x) {
		return y
	}
	return x
}

// mergeMetadata unions both maps; a's values win on key conflicts. The
// MetaTools entry accumulates every contributing tool.
func mergeMetadata(a, b model.Finding) map[string]any {
	out := make(map[string]any, len(a.Metadata)+len(b.Metadata)+1)
	for k, v := range b.Metadata {
		out[k] = v
	}
	for k, v := range a.Metadata {
		out[k] = v
	}

	var tools []string
	tools = append(tools, metaTools(a.Metadata)...)
	tools = append(tools, metaTools(b.Metadata)...)
	tools = append(tools, a.Tools()...)
	tools = append(tools, b.Tools()...)
	out[model.MetaTools] = strings.Split(model.JoinTools(tools), ", ")
	return out
}

func metaTools(md map[string]any) []string {
	switch v := md[model.MetaTools].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// precedes is a total order over finding content used to pick the
// "first" operand of Merge.
func precedes(x, y model.Finding) bool {
	if x.Tool != y.Tool {
		return x.Tool < y.Tool
	}
	if x.Severity != y.Severity {
		return x.Severity.Rank() > y.Severity.Rank()
	}
	if x.FilePath != y.FilePath {
		return x.FilePath < y.FilePath
	}
	if x.LineStart != y.LineStart {
		return x.LineStart < y.LineStart
	}
	if x.LineEnd != y.LineEnd {
		return x.LineEnd < y.LineEnd
	}
	if x.CWE != y.CWE {
		return x.CWE < y.CWE
	}
	if x.Description != y.Description {
		return x.Description < y.Description
	}
	if x.CodeSnippet != y.CodeSnippet {
		return x.CodeSnippet < y.CodeSnippet
	}
	return metaKey(x.Metadata) < metaKey(y.Metadata)
}

func metaKey(md map[string]any) string {
	b, err := json.ConfigCompatibleWithStandardLibrary.Marshal(md)
	if err != nil {
		return fmt.Sprint(md)
	}
	return string(b)
}

// Deduplicator accumulates findings keyed by fingerprint. It keeps every
// report of a fingerprint and merges them when the unique set is read. It
// is safe for concurrent use.
type Deduplicator struct {
	mu    sync.Mutex
	byKey map[string][]model.Finding
}

// New returns an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{byKey: make(map[string][]model.Finding)}
}

// Add stores f under its fingerprint. It reports true when f opened a new
// entry.
func (d *Deduplicator) Add(f model.Finding) bool {
	key := Fingerprint(f)

	d.mu.Lock()
	defer d.mu.Unlock()

	_, seen := d.byKey[key]
	d.byKey[key] = append(d.byKey[key], f)
	return !seen
}

// AddAll adds every finding and returns how many were new.
func (d *Deduplicator) AddAll(findings []model.Finding) int {
	added := 0
	for _, f := range findings {
		if d.Add(f) {
			added++
		}
	}
	return added
}

// Len returns the number of distinct fingerprints seen.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byKey)
}

// Unique returns the merged findings in report order.
func (d *Deduplicator) Unique() []model.Finding {
	d.mu.Lock()
	result := make([]model.Finding, 0, len(d.byKey))
	for _, reports := range d.byKey {
		result = append(result, fold(reports))
	}
	d.mu.Unlock()

	SortFindings(result)
	return result
}

// Statistics summarizes the current unique set.
func (d *Deduplicator) Statistics() Statistics {
	return ComputeStatistics(d.Unique())
}

// AggregateFindings deduplicates and sorts a batch of findings.
func AggregateFindings(findings []model.Finding) []model.Finding {
	d := New()
	d.AddAll(findings)
	return d.Unique()
}

// SortFindings orders findings by severity (most severe first), then
// location and title.
func SortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		fi, fj := findings[i], findings[j]

		// Severity DESC (Critical > High ...)
		if ri, rj := fi.Severity.Rank(), fj.Severity.Rank(); ri != rj {
			return ri > rj
		}
		if pi, pj := NormalizePath(fi.FilePath), NormalizePath(fj.FilePath); pi != pj {
			return pi < pj
		}
		if fi.LineStart != fj.LineStart {
			return fi.LineStart < fj.LineStart
		}
		if fi.Title != fj.Title {
			return fi.Title < fj.Title
		}
		return fi.Category < fj.Category
	})
}

// Statistics is the summary handed to report generators.
type Statistics struct {
	Total      int                    `json:"total"`
	BySeverity map[model.Severity]int `json:"by_severity"`
	ByCategory map[string]int         `json:"by_category"`
	ByFile     map[string]int         `json:"by_file"`
	ByTool     map[string]int         `json:"by_tool"`
}

// ComputeStatistics counts findings per severity, category, file and
// contributing tool. All four severity buckets are always present.
func ComputeStatistics(findings []model.Finding) Statistics {
	stats := Statistics{
		Total:      len(findings),
		BySeverity: make(map[model.Severity]int, len(model.Severities)),
		ByCategory: make(map[string]int),
		ByFile:     make(map[string]int),
		ByTool:     make(map[string]int),
	}
	for _, s := range model.Severities {
		stats.BySeverity[s] = 0
	}

	for _, f := range findings {
		stats.BySeverity[f.Severity]++
		stats.ByCategory[f.Category]++
		if p := NormalizePath(f.FilePath); p != "" {
			stats.ByFile[p]++
		}
		for _, t := range f.Tools() {
			stats.ByTool[t]++
		}
	}
	return stats
}

// TopFiles returns up to n file paths with the most findings.
func (s Statistics) TopFiles(n int) []string {
	files := make([]string, 0, len(s.ByFile))
	for f := range s.ByFile {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if s.ByFile[files[i]] != s.ByFile[files[j]] {
			return s.ByFile[files[i]] > s.ByFile[files[j]]
		}
		return files[i] < files[j]
	})
	if n >= 0 && len(files) > n {
		files = files[:n]
	}
	return files
}
