package orchestrator

import (
	"secreview/internal/config"
	"secreview/internal/detect"
	"secreview/internal/scanners"
	"secreview/internal/scanners/bandit"
	"secreview/internal/scanners/bun"
	"secreview/internal/scanners/dotnet"
	"secreview/internal/scanners/gosec"
	"secreview/internal/scanners/npm"
	"secreview/internal/scanners/semgrep"
	"secreview/internal/scanners/trivy"
)

// DefaultEntries returns every known adapter with its selection rule, in
// the order they run.
func DefaultEntries(tools config.ToolsConfig, env detect.Summary) []scanners.Entry {
	return []scanners.Entry{
		{Scanner: semgrep.New(tools.SemgrepConfig), Rule: scanners.Always()},
		{Scanner: bandit.New(), Rule: scanners.WhenLanguage("python")},
		{Scanner: gosec.New(), Rule: scanners.WhenLanguage("go")},
		{Scanner: npm.New(), Rule: scanners.WhenManifest("package.json")},
		{Scanner: bun.New(), Rule: scanners.WhenManifest("bun.lock", "bun.lockb")},
		{Scanner: trivy.New(), Rule: scanners.WhenManifest(trivy.Manifests...)},
		{Scanner: dotnet.New(dotnet.ProjectFile(env.Manifests)), Rule: scanners.WhenManifest(dotnet.Manifests...)},
	}
}
