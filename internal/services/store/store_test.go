package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// writeFixtureCSVs writes a small but complete database export
func writeFixtureCSVs(t *testing.T, dir string) {
	t.Helper()

	files := map[string]string{
		"vulnerabilities.csv": `cve_id,package_id,vulnerability_type_id,severity_id,cvss_score,affected_versions,fixed_version,description,published_date
CVE-2024-0001,1,1,1,9.8,<2.0,2.0.1,Remote code execution in foo,2024-01-15
CVE-2024-0002,2,2,2,6.5,<1.5,1.5.2,Cross-site scripting in bar,2024-02-20
CVE-2024-0003,1,2,2,5.4,<2.1,2.1.0,Stored XSS in foo admin panel,2024-03-05
`,
		"packages.csv": `package_id,name,ecosystem
1,foo,npm
2,bar,pip
`,
		"severity_levels.csv": `severity_id,severity_name,min_cvss,max_cvss
1,Critical,9.0,10.0
2,Medium,4.0,6.9
`,
		"vulnerability_types.csv": `type_id,type_name,description
1,Remote Code Execution,Arbitrary code execution on the host
2,Cross-Site Scripting,Script injection into rendered pages
`,
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	writeFixtureCSVs(t, dir)

	store, err := NewStore(dir, createTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func callToolJSON(t *testing.T, store *Store, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	result, err := store.CallTool(context.Background(), name, args)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result), &parsed))
	return parsed
}

func TestNewStore_MissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureCSVs(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "packages.csv")))

	_, err := NewStore(dir, createTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packages.csv")
}

func TestNewStore_MissingDirectory(t *testing.T) {
	_, err := NewStore("/nonexistent/csv", createTestLogger())
	require.Error(t, err)
}

func TestGetVulnerability(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "get_vulnerability", map[string]interface{}{"cve_id": "CVE-2024-0001"})
	assert.Equal(t, "CVE-2024-0001", result["cve_id"])
	assert.Equal(t, "foo", result["package_name"])
	assert.Equal(t, "npm", result["ecosystem"])
	assert.Equal(t, "Critical", result["severity_name"])
	assert.Equal(t, "Remote Code Execution", result["type_name"])
	assert.Equal(t, "2.0.1", result["fixed_version"])
}

func TestGetVulnerability_NotFound(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "get_vulnerability", map[string]interface{}{"cve_id": "CVE-1999-9999"})
	assert.Contains(t, result["error"], "CVE not found")
}

func TestGetVulnerability_MissingArgument(t *testing.T) {
	store := newTestStore(t)

	// A missing argument is an answerable result, not a failure; the
	// model sees the error text and can correct the call.
	result := callToolJSON(t, store, "get_vulnerability", map[string]interface{}{})
	assert.Equal(t, "cve_id is required", result["error"])
}

func TestSearchVulnerabilities_NoFilters(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "search_vulnerabilities", map[string]interface{}{})
	assert.Equal(t, float64(3), result["count"])

	vulnerabilities := result["vulnerabilities"].([]interface{})
	require.Len(t, vulnerabilities, 3)

	// Ordered by CVSS score descending
	first := vulnerabilities[0].(map[string]interface{})
	assert.Equal(t, "CVE-2024-0001", first["cve_id"])
	last := vulnerabilities[2].(map[string]interface{})
	assert.Equal(t, "CVE-2024-0003", last["cve_id"])
}

func TestSearchVulnerabilities_Filters(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name     string
		args     map[string]interface{}
		expected []string
	}{
		{
			name:     "by ecosystem",
			args:     map[string]interface{}{"ecosystem": "pip"},
			expected: []string{"CVE-2024-0002"},
		},
		{
			name:     "by severity",
			args:     map[string]interface{}{"severity": "Medium"},
			expected: []string{"CVE-2024-0002", "CVE-2024-0003"},
		},
		{
			name:     "by type",
			args:     map[string]interface{}{"type": "Cross-Site Scripting"},
			expected: []string{"CVE-2024-0002", "CVE-2024-0003"},
		},
		{
			name:     "by cvss range",
			args:     map[string]interface{}{"min_cvss": 6.0, "max_cvss": 9.0},
			expected: []string{"CVE-2024-0002"},
		},
		{
			name:     "combined filters",
			args:     map[string]interface{}{"ecosystem": "npm", "severity": "Medium"},
			expected: []string{"CVE-2024-0003"},
		},
		{
			name:     "no matches",
			args:     map[string]interface{}{"ecosystem": "maven"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callToolJSON(t, store, "search_vulnerabilities", tt.args)
			assert.Equal(t, float64(len(tt.expected)), result["count"])

			vulnerabilities := result["vulnerabilities"].([]interface{})
			cveIDs := make([]string, 0, len(vulnerabilities))
			for _, v := range vulnerabilities {
				cveIDs = append(cveIDs, v.(map[string]interface{})["cve_id"].(string))
			}
			assert.Equal(t, tt.expected, cveIDs)
		})
	}
}

func TestListPackages(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "list_packages", map[string]interface{}{})
	assert.Equal(t, float64(2), result["count"])

	packages := result["packages"].([]interface{})
	require.Len(t, packages, 2)
	// Ordered by ecosystem then name
	assert.Equal(t, "foo", packages[0].(map[string]interface{})["name"])
	assert.Equal(t, "bar", packages[1].(map[string]interface{})["name"])
}

func TestListPackages_FilteredByEcosystem(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "list_packages", map[string]interface{}{"ecosystem": "pip"})
	assert.Equal(t, float64(1), result["count"])

	packages := result["packages"].([]interface{})
	require.Len(t, packages, 1)
	assert.Equal(t, "bar", packages[0].(map[string]interface{})["name"])
}

func TestGetStatistics_Grouped(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "get_statistics", map[string]interface{}{"group_by": "ecosystem"})
	assert.Equal(t, "ecosystem", result["group_by"])

	statistics := result["statistics"].([]interface{})
	require.Len(t, statistics, 2)
	// Ordered by count descending: npm has two CVEs, pip has one
	first := statistics[0].(map[string]interface{})
	assert.Equal(t, "npm", first["ecosystem"])
	assert.Equal(t, float64(2), first["count"])
}

func TestGetStatistics_Overall(t *testing.T) {
	store := newTestStore(t)

	result := callToolJSON(t, store, "get_statistics", map[string]interface{}{})
	assert.Equal(t, float64(3), result["total_vulnerabilities"])
	// CSV values are loaded as text, so MIN/MAX come back as strings
	assert.Equal(t, "9.8", result["max_cvss"])
	assert.Equal(t, "5.4", result["min_cvss"])
}

func TestCallTool_UnknownTool(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CallTool(context.Background(), "drop_tables", map[string]interface{}{})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "drop_tables", toolErr.Tool)
}

func TestTools_SchemasMatchDispatch(t *testing.T) {
	store := newTestStore(t)

	tools := store.Tools()
	require.Len(t, tools, 4)

	// Every advertised tool is callable
	for _, tool := range tools {
		args := map[string]interface{}{}
		if tool.Name == "get_vulnerability" {
			args["cve_id"] = "CVE-2024-0001"
		}
		_, err := store.CallTool(context.Background(), tool.Name, args)
		assert.NoError(t, err, "tool %s", tool.Name)
	}
}

func TestSchemaDescription(t *testing.T) {
	store := newTestStore(t)

	description := store.SchemaDescription()
	assert.Contains(t, description, "vulnerabilities")
	assert.Contains(t, description, "packages")
	assert.Contains(t, description, "severity_levels")
	assert.Contains(t, description, "vulnerability_types")
	assert.Contains(t, description, "Available operations:")
}
