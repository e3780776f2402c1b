package mcp

import "github.com/mark3labs/mcp-go/mcp"

// getCellStatusTool defines the get_cell_status MCP tool.
var getCellStatusTool = mcp.NewTool("get_cell_status",
	mcp.WithDescription("Get the scanner's current status message, the last captured cell tower and the scan count."),
)

// scanNowTool defines the scan_now MCP tool.
var scanNowTool = mcp.NewTool("scan_now",
	mcp.WithDescription("Read the serving cell tower immediately. Does not change the scan count or send any report."),
)

// sendReportTool defines the send_report MCP tool.
var sendReportTool = mcp.NewTool("send_report",
	mcp.WithDescription("Email a manual report of the currently displayed cell tower to the configured recipient."),
)

// listOutboxTool defines the list_outbox MCP tool.
var listOutboxTool = mcp.NewTool("list_outbox",
	mcp.WithDescription("List dispatched reports, newest first, with their delivery outcome."),
	mcp.WithString("kind",
		mcp.Description("Only return reports of this kind"),
		mcp.Enum("alert", "heartbeat", "manual"),
	),
	mcp.WithBoolean("pending",
		mcp.Description("Only return reports that were never delivered"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of reports to return (default 20)"),
	),
)
