package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haskel/tabml/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status and host resources",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status server.StatusResponse
	if err := NewClient().GetJSON("/status", &status); err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
	}
	printStatus(cmd.OutOrStdout(), &status)
	return nil
}

func printStatus(w io.Writer, s *server.StatusResponse) {
	fmt.Fprintln(w, titleStyle.Render("tabml "+s.Version))
	fmt.Fprintln(w, field("Uptime", s.Uptime))
	fmt.Fprintln(w, field("Models", s.Models))
	fmt.Fprintln(w, field("Cached models", s.CachedModels))

	h := s.Host
	if h == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Host"))
	fmt.Fprintln(w, field("CPU", usageStyle(h.CPU.UsagePercent).Render(fmt.Sprintf("%.1f%%", h.CPU.UsagePercent))+
		fmt.Sprintf(" of %d cores", h.CPU.LogicalCores)))
	fmt.Fprintln(w, field("Memory", usageStyle(h.Memory.UsagePercent).Render(fmt.Sprintf("%.1f%%", h.Memory.UsagePercent))+
		fmt.Sprintf(" (%.1f / %.1f GB)", gib(h.Memory.UsedBytes), gib(h.Memory.TotalBytes))))

	d := h.ModelDir
	fmt.Fprintln(w, field("Model dir", d.Dir))
	fmt.Fprintln(w, field("Artifacts", fmt.Sprintf("%d (%d bytes)", d.Artifacts, d.ArtifactBytes)))
	fmt.Fprintln(w, field("Disk free", fmt.Sprintf("%.1f / %.1f GB", gib(d.Disk.FreeBytes), gib(d.Disk.TotalBytes))))

	for _, e := range h.Errors {
		fmt.Fprintln(w, errorStyle.Render("! ")+e)
	}
}
