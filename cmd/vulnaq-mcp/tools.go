package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetVulnerabilityTool returns the get_vulnerability tool definition
func createGetVulnerabilityTool() mcp.Tool {
	return mcp.NewTool("get_vulnerability",
		mcp.WithDescription("Get detailed information about a specific CVE vulnerability, including package, severity, and type details"),
		mcp.WithString("cve_id",
			mcp.Required(),
			mcp.Description("The CVE identifier (e.g., 'CVE-2024-1234')"),
		),
	)
}

// createSearchVulnerabilitiesTool returns the search_vulnerabilities tool definition
func createSearchVulnerabilitiesTool() mcp.Tool {
	return mcp.NewTool("search_vulnerabilities",
		mcp.WithDescription("Search and filter vulnerabilities by ecosystem, severity, type, or CVSS score range"),
		mcp.WithString("ecosystem",
			mcp.Description("Filter by package ecosystem (e.g., 'npm', 'pip', 'maven')"),
		),
		mcp.WithString("severity",
			mcp.Description("Filter by severity level (e.g., 'Critical', 'High', 'Medium', 'Low')"),
		),
		mcp.WithString("type",
			mcp.Description("Filter by vulnerability type (e.g., 'SQL Injection', 'XSS')"),
		),
		mcp.WithNumber("min_cvss",
			mcp.Description("Minimum CVSS score (0.0 to 10.0)"),
		),
		mcp.WithNumber("max_cvss",
			mcp.Description("Maximum CVSS score (0.0 to 10.0)"),
		),
	)
}

// createListPackagesTool returns the list_packages tool definition
func createListPackagesTool() mcp.Tool {
	return mcp.NewTool("list_packages",
		mcp.WithDescription("List all packages in the database, optionally filtered by ecosystem"),
		mcp.WithString("ecosystem",
			mcp.Description("Filter by package ecosystem (e.g., 'npm', 'pip', 'maven')"),
		),
	)
}

// createGetStatisticsTool returns the get_statistics tool definition
func createGetStatisticsTool() mcp.Tool {
	return mcp.NewTool("get_statistics",
		mcp.WithDescription("Get aggregate statistics about vulnerabilities, grouped by a dimension"),
		mcp.WithString("group_by",
			mcp.Description("Dimension to group by: 'ecosystem', 'severity', or 'type' (omit for overall statistics)"),
		),
	)
}
