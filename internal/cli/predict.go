package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haskel/tabml/internal/prediction"
	"github.com/haskel/tabml/internal/server"
)

var predictCmd = &cobra.Command{
	Use:   "predict <model> [rows.json]",
	Short: "Predict with a stored model",
	Long: `Send rows to a stored model and print one prediction per row.

Rows are a JSON array of objects mapping column name to value, read from
the given file or from stdin.

Examples:
  tabml predict logisticregression_iris.csv rows.json
  echo '[{"x1": 0.3, "x2": 1.2}]' | tabml predict my_model`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

func readRows(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("rows must be a JSON array of objects: %w", err)
	}
	return rows, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rows, err := readRows(in)
	if err != nil {
		return err
	}

	req := server.PredictRequest{ModelName: args[0], Data: rows}
	client := NewClient()

	if jsonOut {
		var raw json.RawMessage
		if err := client.PostJSON("/ml/predict", req, &raw); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), raw)
	}

	var res prediction.Result
	if err := client.PostJSON("/ml/predict", req, &res); err != nil {
		return err
	}
	printPredictions(cmd.OutOrStdout(), &res)
	return nil
}

func printPredictions(w io.Writer, res *prediction.Result) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%-6s %-12s %s", "row", "prediction", "probability")))
	for i, p := range res.Predictions {
		prob := 0.0
		if i < len(res.Probabilities) {
			prob = res.Probabilities[i]
		}
		fmt.Fprintf(w, "%-6d %-12d %.4f\n", i, p, prob)
	}
}
