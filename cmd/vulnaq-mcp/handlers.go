package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
)

// callStoreTool runs a store tool and wraps the result for MCP.
// Tool failures are returned as text content so the calling agent can
// see and correct them.
func callStoreTool(ctx context.Context, storeService interfaces.StructuredStore, logger arbor.ILogger, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	result, err := storeService.CallTool(ctx, name, args)
	if err != nil {
		logger.Error().Err(err).Str("tool", name).Msg("Tool call failed")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Tool error: %v", err)),
			},
		}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(result),
		},
	}, nil
}

// handleGetVulnerability implements the get_vulnerability tool
func handleGetVulnerability(storeService interfaces.StructuredStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cveID, err := request.RequireString("cve_id")
		if err != nil || cveID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: cve_id parameter is required"),
				},
			}, nil
		}

		return callStoreTool(ctx, storeService, logger, "get_vulnerability", map[string]interface{}{
			"cve_id": cveID,
		})
	}
}

// handleSearchVulnerabilities implements the search_vulnerabilities tool
func handleSearchVulnerabilities(storeService interfaces.StructuredStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if ecosystem := request.GetString("ecosystem", ""); ecosystem != "" {
			args["ecosystem"] = ecosystem
		}
		if severity := request.GetString("severity", ""); severity != "" {
			args["severity"] = severity
		}
		if vulnType := request.GetString("type", ""); vulnType != "" {
			args["type"] = vulnType
		}
		if minCVSS := request.GetFloat("min_cvss", -1); minCVSS >= 0 {
			args["min_cvss"] = minCVSS
		}
		if maxCVSS := request.GetFloat("max_cvss", -1); maxCVSS >= 0 {
			args["max_cvss"] = maxCVSS
		}

		return callStoreTool(ctx, storeService, logger, "search_vulnerabilities", args)
	}
}

// handleListPackages implements the list_packages tool
func handleListPackages(storeService interfaces.StructuredStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if ecosystem := request.GetString("ecosystem", ""); ecosystem != "" {
			args["ecosystem"] = ecosystem
		}

		return callStoreTool(ctx, storeService, logger, "list_packages", args)
	}
}

// handleGetStatistics implements the get_statistics tool
func handleGetStatistics(storeService interfaces.StructuredStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if groupBy := request.GetString("group_by", ""); groupBy != "" {
			args["group_by"] = groupBy
		}

		return callStoreTool(ctx, storeService, logger, "get_statistics", args)
	}
}
