package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/vulnaq/internal/models"
)

// ToolError reports a failed tool invocation. Its text is meant to be
// fed back to the model so it can correct the call, not shown raw to
// the end user.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool '%s' failed: %s", e.Tool, e.Message)
}

// Tools returns the schemas of the four database tools
func (s *Store) Tools() []models.ToolSchema {
	return []models.ToolSchema{
		{
			Name:        "get_vulnerability",
			Description: "Get detailed information about a specific CVE vulnerability, including package, severity, and type details.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cve_id": map[string]interface{}{
						"type":        "string",
						"description": "The CVE identifier (e.g., 'CVE-2024-1234')",
					},
				},
				"required": []string{"cve_id"},
			},
		},
		{
			Name:        "search_vulnerabilities",
			Description: "Search and filter vulnerabilities by ecosystem, severity, type, or CVSS score range.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ecosystem": map[string]interface{}{
						"type":        "string",
						"description": "Filter by package ecosystem (e.g., 'npm', 'pip', 'maven')",
					},
					"severity": map[string]interface{}{
						"type":        "string",
						"description": "Filter by severity level (e.g., 'Critical', 'High', 'Medium', 'Low')",
					},
					"type": map[string]interface{}{
						"type":        "string",
						"description": "Filter by vulnerability type (e.g., 'SQL Injection', 'XSS')",
					},
					"min_cvss": map[string]interface{}{
						"type":        "number",
						"description": "Minimum CVSS score (0.0 to 10.0)",
					},
					"max_cvss": map[string]interface{}{
						"type":        "number",
						"description": "Maximum CVSS score (0.0 to 10.0)",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        "list_packages",
			Description: "List all packages in the database, optionally filtered by ecosystem.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ecosystem": map[string]interface{}{
						"type":        "string",
						"description": "Filter by package ecosystem (e.g., 'npm', 'pip', 'maven')",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        "get_statistics",
			Description: "Get aggregate statistics about vulnerabilities, grouped by a dimension.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"group_by": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"ecosystem", "severity", "type"},
						"description": "Dimension to group by: 'ecosystem', 'severity', or 'type'",
					},
				},
				"required": []string{},
			},
		},
	}
}

// CallTool executes a tool call and returns its result as JSON text.
// Missing or unusable arguments yield an {"error": ...} result so the
// model can correct itself; unknown tools and query failures return a
// ToolError.
func (s *Store) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	var (
		result interface{}
		err    error
	)

	switch name {
	case "get_vulnerability":
		result, err = s.getVulnerability(ctx, args)
	case "search_vulnerabilities":
		result, err = s.searchVulnerabilities(ctx, args)
	case "list_packages":
		result, err = s.listPackages(ctx, args)
	case "get_statistics":
		result, err = s.getStatistics(ctx, args)
	default:
		return "", &ToolError{Tool: name, Message: "unknown tool"}
	}
	if err != nil {
		return "", &ToolError{Tool: name, Message: err.Error()}
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", &ToolError{Tool: name, Message: fmt.Sprintf("failed to encode result: %v", err)}
	}
	return string(output), nil
}

func (s *Store) getVulnerability(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	cveID, _ := args["cve_id"].(string)
	if cveID == "" {
		return map[string]interface{}{"error": "cve_id is required"}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			v.cve_id,
			v.cvss_score,
			v.affected_versions,
			v.fixed_version,
			v.description,
			v.published_date,
			p.name AS package_name,
			p.ecosystem,
			s.severity_name,
			t.type_name
		FROM vulnerabilities v
		JOIN packages p ON v.package_id = p.package_id
		JOIN severity_levels s ON v.severity_id = s.severity_id
		JOIN vulnerability_types t ON v.vulnerability_type_id = t.type_id
		WHERE v.cve_id = ?`, cveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return map[string]interface{}{"error": fmt.Sprintf("CVE not found: %s", cveID)}, nil
	}
	return results[0], nil
}

func (s *Store) searchVulnerabilities(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	conditions := []string{}
	params := []interface{}{}

	if ecosystem, ok := args["ecosystem"]; ok {
		conditions = append(conditions, "p.ecosystem = ?")
		params = append(params, ecosystem)
	}
	if severity, ok := args["severity"]; ok {
		conditions = append(conditions, "s.severity_name = ?")
		params = append(params, severity)
	}
	if vulnType, ok := args["type"]; ok {
		conditions = append(conditions, "t.type_name = ?")
		params = append(params, vulnType)
	}
	if minCVSS, ok := args["min_cvss"]; ok {
		conditions = append(conditions, "CAST(v.cvss_score AS REAL) >= ?")
		params = append(params, minCVSS)
	}
	if maxCVSS, ok := args["max_cvss"]; ok {
		conditions = append(conditions, "CAST(v.cvss_score AS REAL) <= ?")
		params = append(params, maxCVSS)
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = joinConditions(conditions)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			v.cve_id,
			v.cvss_score,
			v.affected_versions,
			v.fixed_version,
			v.description,
			p.name AS package_name,
			p.ecosystem,
			s.severity_name,
			t.type_name
		FROM vulnerabilities v
		JOIN packages p ON v.package_id = p.package_id
		JOIN severity_levels s ON v.severity_id = s.severity_id
		JOIN vulnerability_types t ON v.vulnerability_type_id = t.type_id
		WHERE %s
		ORDER BY CAST(v.cvss_score AS REAL) DESC`, whereClause), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"count":           len(results),
		"vulnerabilities": emptyIfNil(results),
	}, nil
}

func (s *Store) listPackages(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ecosystem, ok := args["ecosystem"]; ok {
		rows, err = s.db.QueryContext(ctx,
			"SELECT * FROM packages WHERE ecosystem = ? ORDER BY name", ecosystem)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT * FROM packages ORDER BY ecosystem, name")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"count":    len(results),
		"packages": emptyIfNil(results),
	}, nil
}

func (s *Store) getStatistics(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	groupBy, _ := args["group_by"].(string)

	var query string
	switch groupBy {
	case "ecosystem":
		query = `
			SELECT p.ecosystem, COUNT(*) as count, AVG(v.cvss_score) as avg_cvss
			FROM vulnerabilities v
			JOIN packages p ON v.package_id = p.package_id
			GROUP BY p.ecosystem
			ORDER BY count DESC`
	case "severity":
		query = `
			SELECT s.severity_name, COUNT(*) as count, AVG(v.cvss_score) as avg_cvss
			FROM vulnerabilities v
			JOIN severity_levels s ON v.severity_id = s.severity_id
			GROUP BY s.severity_name
			ORDER BY AVG(v.cvss_score) DESC`
	case "type":
		query = `
			SELECT t.type_name, COUNT(*) as count, AVG(v.cvss_score) as avg_cvss
			FROM vulnerabilities v
			JOIN vulnerability_types t ON v.vulnerability_type_id = t.type_id
			GROUP BY t.type_name
			ORDER BY count DESC`
	default:
		// Overall statistics when no group_by is given
		rows, err := s.db.QueryContext(ctx, `
			SELECT
				COUNT(*) as total_vulnerabilities,
				AVG(cvss_score) as avg_cvss,
				MIN(cvss_score) as min_cvss,
				MAX(cvss_score) as max_cvss
			FROM vulnerabilities`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results, err := rowsToMaps(rows)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return map[string]interface{}{}, nil
		}
		return results[0], nil
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"group_by":   groupBy,
		"statistics": emptyIfNil(results),
	}, nil
}

func joinConditions(conditions []string) string {
	result := conditions[0]
	for _, c := range conditions[1:] {
		result += " AND " + c
	}
	return result
}

// emptyIfNil keeps JSON output as [] instead of null for empty results
func emptyIfNil(results []map[string]interface{}) []map[string]interface{} {
	if results == nil {
		return []map[string]interface{}{}
	}
	return results
}
