package bandit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secreview/internal/model"
)

func TestParseBanditOutput(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "bandit_output.json"))
	require.NoError(t, err)

	findings, err := ParseBanditOutput(data)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	sqli := findings[0]
	assert.Equal(t, "bandit", sqli.Tool)
	assert.Equal(t, "hardcoded_sql_expressions", sqli.Title)
	assert.Equal(t, model.SeverityHigh, sqli.Severity, "bandit MEDIUM maps to High")
	assert.Equal(t, "security", sqli.Category)
	assert.Equal(t, "app.py", sqli.FilePath)
	assert.Equal(t, 10, sqli.LineStart)
	assert.Equal(t, 10, sqli.LineEnd)
	assert.Equal(t, "89", sqli.CWE)
	assert.Equal(t, "B608", sqli.Metadata["test_id"])
	assert.Equal(t, "MEDIUM", sqli.Metadata["confidence"])
	assert.Contains(t, sqli.Metadata, "more_info")

	imp := findings[1]
	assert.Equal(t, "B404", imp.Title, "title falls back to test_id")
	assert.Equal(t, model.SeverityMedium, imp.Severity)
	assert.Empty(t, imp.CWE)
	assert.NotContains(t, imp.Metadata, "more_info")
}

func TestParseBanditOutput_LineRange(t *testing.T) {
	findings, err := ParseBanditOutput([]byte(`{"results": [
		{"filename": "a.py", "test_id": "B608", "issue_severity": "LOW", "line_number": 4, "line_range": [4, 5, 6]},
		{"filename": "a.py", "test_id": "B101", "issue_severity": "LOW", "line_number": 9, "line_range": [2]},
		{"filename": "a.py", "test_id": "B102", "issue_severity": "LOW", "line_number": 11}
	]}`))
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, 4, findings[0].LineStart)
	assert.Equal(t, 6, findings[0].LineEnd)
	assert.Equal(t, 9, findings[1].LineEnd)
	assert.Equal(t, 11, findings[2].LineEnd)
}

func TestParseBanditOutput_Malformed(t *testing.T) {
	findings, err := ParseBanditOutput([]byte("Traceback (most recent call last):"))
	assert.Error(t, err)
	assert.Empty(t, findings)
}

func TestBuildCommand(t *testing.T) {
	cmd := New().BuildCommand("/src", "/tmp/bandit.json")
	assert.Equal(t, "bandit", cmd.Name)
	assert.Equal(t, []string{"-r", "/src", "-f", "json", "-o", "/tmp/bandit.json", "--quiet"}, cmd.Args)
}
