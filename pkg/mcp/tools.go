package mcp

import "github.com/mark3labs/mcp-go/mcp"

func completeImportTool() mcp.Tool {
	return mcp.NewTool("complete_import",
		mcp.WithDescription("Suggest declared module names for the import-from statement on a source line. Returns candidates with their declaring files, plus the detected binding name and typed prefix."),
		mcp.WithString("line",
			mcp.Required(),
			mcp.Description("Full text of the line being edited"),
		),
		mcp.WithNumber("cursor",
			mcp.Description("Byte offset of the cursor within the line; defaults to the end of the line"),
		),
	)
}

func lookupModuleTool() mcp.Tool {
	return mcp.NewTool("lookup_module",
		mcp.WithDescription("Resolve a declared module name to every file declaring it"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact declared name, as written after @providesModule"),
		),
	)
}

func searchModulesTool() mcp.Tool {
	return mcp.NewTool("search_modules",
		mcp.WithDescription("Find declared modules whose name contains a substring"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Case-sensitive substring to match against declared names"),
		),
	)
}

func listModulesTool() mcp.Tool {
	return mcp.NewTool("list_modules",
		mcp.WithDescription("List declared modules in insertion order"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return; omitted or 0 returns all"),
		),
	)
}

func rescanWorkspaceTool() mcp.Tool {
	return mcp.NewTool("rescan_workspace",
		mcp.WithDescription("Walk the workspace and reconcile the registry against what files declare now"),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Registry and indexer activity counters"),
	)
}
