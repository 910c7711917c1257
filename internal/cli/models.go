package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/haskel/tabml/internal/server"
	"github.com/haskel/tabml/internal/training"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List stored models",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model>",
	Short: "Delete a stored model in every format",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <model> [version]",
	Short: "Show the evaluation metrics recorded for a model",
	Long: `Show the evaluation metrics recorded when a model was trained.

The version defaults to the server's default metrics version.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMetrics,
}

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the algorithms the server can train",
	Args:  cobra.NoArgs,
	RunE:  runAlgorithms,
}

func init() {
	modelsCmd.AddCommand(modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(algorithmsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	var resp server.ModelsResponse
	if err := NewClient().GetJSON("/ml/models", &resp); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(resp)
	}
	if len(resp.Models) == 0 {
		fmt.Fprintln(w, "No models stored yet.")
		return nil
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Models (%d)", len(resp.Models))))
	for _, m := range resp.Models {
		fmt.Fprintln(w, "  "+m)
	}
	return nil
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	var resp server.DeleteResponse
	if err := NewClient().DeleteJSON("/ml/models/"+url.PathEscape(args[0]), &resp); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(resp)
	}
	fmt.Fprintln(w, successStyle.Render("✓ ")+"deleted "+resp.Deleted)
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	q := url.Values{"model_name": {args[0]}}
	if len(args) == 2 {
		q.Set("version", args[1])
	}

	var resp server.MetricsResponse
	if err := NewClient().GetJSON("/ml/performance?"+q.Encode(), &resp); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(resp)
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s)", resp.ModelName, resp.Version)))
	printMetrics(w, resp.Metrics)
	return nil
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	var resp server.AlgorithmsResponse
	if err := NewClient().GetJSON("/ml/algorithms", &resp); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(resp)
	}
	printAlgorithms(w, resp.Algorithms)
	return nil
}

func printAlgorithms(w io.Writer, algorithms []training.Provider) {
	for _, p := range algorithms {
		fmt.Fprintln(w, titleStyle.Render(p.ID)+" "+valueStyle.Render("("+p.Family.String()+")"))
		if p.Description != "" {
			fmt.Fprintln(w, "  "+p.Description)
		}
		if len(p.Aliases) > 0 {
			fmt.Fprintln(w, "  "+field("aliases", fmt.Sprint(p.Aliases)))
		}
		for _, spec := range p.Params {
			fmt.Fprintln(w, "  "+field(spec.Name, fmt.Sprintf("%s, default %v", spec.Kind, spec.Default)))
		}
	}
}
