// Package detect inspects a project tree to find out which languages,
// frameworks and dependency manifests it contains.
package detect

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

// DefaultMaxDepth bounds how many directory levels below the root are walked.
const DefaultMaxDepth = 3

// UnknownLanguage is reported as primary language for trees with no source files.
const UnknownLanguage = "unknown"

// Ignored directories (exact match on folder name)
var ignoredDirs = map[string]struct{}{
	".git":         {},
	".github":      {},
	".idea":        {},
	".vscode":      {},
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
	"env":          {},
	".env":         {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"bin":          {},
	"obj":          {},
}

var extensions = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".go":    "go",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".rs":    "rust",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "bash",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".vue":   "vue",
}

// manifestPatterns are matched against file names at the target root.
var manifestPatterns = []string{
	"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"bun.lock", "bun.lockb",
	"requirements*.txt", "Pipfile", "Pipfile.lock", "pyproject.toml", "poetry.lock",
	"Gemfile", "Gemfile.lock",
	"pom.xml", "build.gradle", "build.gradle.kts",
	"go.mod", "go.sum",
	"Cargo.toml", "Cargo.lock",
	"composer.json", "composer.lock",
	"*.sln", "*.csproj",
	"Dockerfile",
}

// Summary is a snapshot of one detection pass.
type Summary struct {
	Languages       map[string]int `json:"languages"`
	PrimaryLanguage string         `json:"primary_language"`
	Frameworks      []string       `json:"frameworks"`
	Manifests       []string       `json:"manifests"`
}

// HasLanguage reports whether at least one file of lang was seen.
func (s Summary) HasLanguage(lang string) bool {
	return s.Languages[lang] > 0
}

// HasFramework reports whether name was detected.
func (s Summary) HasFramework(name string) bool {
	for _, f := range s.Frameworks {
		if f == name {
			return true
		}
	}
	return false
}

// HasManifest reports whether a root-level manifest matches pattern
// (a file name or a path.Match glob such as "*.csproj").
func (s Summary) HasManifest(pattern string) bool {
	for _, m := range s.Manifests {
		if ok, _ := path.Match(pattern, m); ok {
			return true
		}
	}
	return false
}

// Detector scans one project root.
type Detector struct {
	fs       afero.Fs
	root     string
	maxDepth int
}

// New creates a Detector over fs. A non-positive maxDepth selects DefaultMaxDepth.
func New(fs afero.Fs, root string, maxDepth int) *Detector {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Detector{fs: fs, root: filepath.Clean(root), maxDepth: maxDepth}
}

// NewOS creates a Detector over the host filesystem.
func NewOS(root string, maxDepth int) *Detector {
	return New(afero.NewOsFs(), root, maxDepth)
}

// Languages counts source files per language, skipping ignored directories
// and anything deeper than the configured depth.
func (d *Detector) Languages() (map[string]int, error) {
	counts := make(map[string]int)

	if _, err := d.fs.Stat(d.root); err != nil {
		return nil, err
	}

	err := afero.Walk(d.fs, d.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than failing detection.
			if p == d.root {
				return err
			}
			return nil
		}

		if info.IsDir() {
			if p == d.root {
				return nil
			}
			if _, ok := ignoredDirs[info.Name()]; ok {
				return filepath.SkipDir
			}
			if d.depth(p) > d.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(info.Name()))
		if lang, ok := extensions[ext]; ok {
			counts[lang]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (d *Detector) depth(p string) int {
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

// Manifests lists root-level dependency and build manifests, sorted.
func (d *Detector) Manifests() []string {
	entries, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, p := range manifestPatterns {
			if ok, _ := path.Match(p, e.Name()); ok {
				out = append(out, e.Name())
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Frameworks returns the frameworks whose markers appear in root manifests.
// Matching is plain substring containment and may over- or under-detect.
func (d *Detector) Frameworks() []string {
	found := make(map[string]struct{})
	add := func(names ...string) {
		for _, n := range names {
			found[n] = struct{}{}
		}
	}

	add(d.packageJSONFrameworks()...)
	for _, name := range []string{"requirements.txt", "Pipfile", "pyproject.toml"} {
		add(d.contains(name, map[string]string{"django": "django", "flask": "flask", "fastapi": "fastapi"})...)
	}
	add(d.contains("Gemfile", map[string]string{"rails": "rails"})...)
	for _, name := range []string{"pom.xml", "build.gradle", "build.gradle.kts"} {
		add(d.contains(name, map[string]string{"spring": "spring"})...)
	}

	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (d *Detector) contains(file string, markers map[string]string) []string {
	data, err := afero.ReadFile(d.fs, filepath.Join(d.root, file))
	if err != nil {
		return nil
	}
	content := strings.ToLower(string(data))
	var out []string
	for marker, framework := range markers {
		if strings.Contains(content, marker) {
			out = append(out, framework)
		}
	}
	return out
}

func (d *Detector) packageJSONFrameworks() []string {
	data, err := afero.ReadFile(d.fs, filepath.Join(d.root, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Dependencies    map[string]any `json:"dependencies"`
		DevDependencies map[string]any `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}

	has := func(dep string) bool {
		if _, ok := pkg.Dependencies[dep]; ok {
			return true
		}
		_, ok := pkg.DevDependencies[dep]
		return ok
	}

	var out []string
	for dep, framework := range map[string]string{
		"react":         "react",
		"vue":           "vue",
		"express":       "express",
		"@angular/core": "angular",
	} {
		if has(dep) {
			out = append(out, framework)
		}
	}
	return out
}

// Summary runs every detection pass once.
func (d *Detector) Summary() (Summary, error) {
	langs, err := d.Languages()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Languages:       langs,
		PrimaryLanguage: PrimaryLanguage(langs),
		Frameworks:      d.Frameworks(),
		Manifests:       d.Manifests(),
	}, nil
}

// PrimaryLanguage picks the language with the most files. Ties go to the
// lexicographically smallest name so the result does not depend on map order.
func PrimaryLanguage(counts map[string]int) string {
	best, bestN := UnknownLanguage, 0
	for lang, n := range counts {
		if n > bestN || (n == bestN && n > 0 && lang < best) {
			best, bestN = lang, n
		}
	}
	return best
}
