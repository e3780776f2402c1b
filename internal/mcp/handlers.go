package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/cellwatch/internal/cell"
	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/report"
	"github.com/ziadkadry99/cellwatch/internal/scanner"
	"github.com/ziadkadry99/cellwatch/internal/status"
)

// handleGetCellStatus renders the status hub's current state.
func (s *Server) handleGetCellStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatState(s.scanner.Hub().Snapshot())), nil
}

// handleScanNow performs a manual scan.
func (s *Server) handleScanNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.scanner.ScanNow(ctx)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrBusy):
			return mcp.NewToolResultError("A scan or report is already in progress. Try again shortly."), nil
		case errors.Is(err, scanner.ErrNoData):
			return mcp.NewToolResultError("Unable to retrieve cell tower data."), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
		}
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

// handleSendReport emails a manual report of the displayed tower.
func (s *Server) handleSendReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.scanner.SendReport(ctx)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrBusy):
			return mcp.NewToolResultError("A scan or report is already in progress. Try again shortly."), nil
		case errors.Is(err, scanner.ErrNoData):
			return mcp.NewToolResultError("No cell data to report. Run scan_now first."), nil
		default:
			return mcp.NewToolResultError("Failed to send manual report:\n" + formatResult(res)), nil
		}
	}
	return mcp.NewToolResultText("Manual report sent.\n" + formatResult(res)), nil
}

// handleListOutbox lists outbox records.
func (s *Server) handleListOutbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.outbox == nil {
		return mcp.NewToolResultError("No outbox is configured."), nil
	}

	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	filter := notifications.ListFilter{
		Kind:  report.Kind(request.GetString("kind", "")),
		Limit: limit,
	}
	if request.GetBool("pending", false) {
		undelivered := false
		filter.Delivered = &undelivered
	}

	records, err := s.outbox.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing outbox failed: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("The outbox is empty."), nil
	}
	return mcp.NewToolResultText(formatRecords(records)), nil
}

func formatState(st status.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s (%s)\n", st.StatusMessage, st.Severity)
	fmt.Fprintf(&sb, "Scans: %d\n", st.ScanCount)
	if st.Email.Visible {
		fmt.Fprintf(&sb, "Email: %s (%s)\n", st.Email.Message, st.Email.Severity)
	}
	if st.Cell == nil {
		sb.WriteString("No cell data captured yet.\n")
		return sb.String()
	}
	c := st.Cell
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Carrier: %s (%s)\n", c.CarrierName, c.CountryCode)
	fmt.Fprintf(&sb, "MCC/MNC: %s/%s\n", c.MCC, c.MNC)
	fmt.Fprintf(&sb, "LAC: %s\n", c.LAC)
	fmt.Fprintf(&sb, "Cell ID: %s\n", c.CID)
	fmt.Fprintf(&sb, "Signal: %s, %d dBm\n", c.SignalStrength, c.RSSI)
	fmt.Fprintf(&sb, "Network: %s\n", c.NetworkType)
	fmt.Fprintf(&sb, "Captured: %s\n", c.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	return sb.String()
}

func formatSnapshot(snap cell.Snapshot) string {
	return formatState(status.State{
		StatusMessage: "Manual scan completed successfully",
		Severity:      status.SeveritySuccess,
		HasData:       true,
		Cell:          status.NewCellView(snap),
	})
}

func formatResult(res notifications.Result) string {
	var sb strings.Builder
	if res.ReportID != "" {
		fmt.Fprintf(&sb, "Report: %s\n", res.ReportID)
	}
	if res.Delivered {
		fmt.Fprintf(&sb, "Delivered via: %s\n", res.Channel)
	}
	for _, a := range res.Attempts {
		switch {
		case a.Skipped:
			fmt.Fprintf(&sb, "- %s: skipped (not configured)\n", a.Channel)
		case a.Error != "":
			fmt.Fprintf(&sb, "- %s: %s\n", a.Channel, a.Error)
		default:
			fmt.Fprintf(&sb, "- %s: ok\n", a.Channel)
		}
	}
	return sb.String()
}

func formatRecords(records []notifications.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d report(s):\n", len(records))
	for _, r := range records {
		state := "pending"
		if r.Delivered {
			state = "delivered via " + r.Channel
		}
		fmt.Fprintf(&sb, "\n%s  %s  %s\n", r.ID, r.Kind, r.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "  %s\n", r.Subject)
		fmt.Fprintf(&sb, "  %s, %d attempt(s)\n", state, len(r.Attempts))
	}
	return sb.String()
}
