package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haskel/tabml/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train <dataset> <algorithm>",
	Short: "Train a model on a CSV dataset",
	Long: `Train a model on a CSV dataset reachable by the server and store it.

Examples:
  tabml train data/iris.csv LogisticRegression --label species
  tabml train data/iris.csv RandomForestClassifier --label species --param n_estimators=50
  tabml train data/points.csv KMeans --param n_clusters=3 --name points_km
  tabml train data/churn.csv MLPClassifier --label churned --param epochs=200 --test-size 0.2`,
	Args: cobra.ExactArgs(2),
	RunE: runTrain,
}

var (
	trainLabel     string
	trainName      string
	trainVersion   string
	trainTestSize  float64
	trainOverwrite bool
	trainParams    []string
)

func init() {
	trainCmd.Flags().StringVarP(&trainLabel, "label", "l", "", "label (target) column; required for classifiers")
	trainCmd.Flags().StringVar(&trainName, "name", "", "model name (default <algorithm>_<dataset file>)")
	trainCmd.Flags().StringVar(&trainVersion, "metrics-version", "", "metrics version tag (default from server config)")
	trainCmd.Flags().Float64Var(&trainTestSize, "test-size", 0, "fraction of rows held out for evaluation (0 evaluates on the training data)")
	trainCmd.Flags().BoolVar(&trainOverwrite, "overwrite", false, "replace an existing model stored in another format")
	trainCmd.Flags().StringArrayVarP(&trainParams, "param", "P", nil, "hyperparameter as key=value (repeatable)")
	rootCmd.AddCommand(trainCmd)
}

// parseParams turns key=value pairs into a hyperparameter map. Values are
// sent as strings; the server coerces them.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	params, err := parseParams(trainParams)
	if err != nil {
		return err
	}

	req := training.Request{
		DatasetPath:    args[0],
		Algorithm:      args[1],
		LabelColumn:    trainLabel,
		Hyperparams:    params,
		ModelName:      trainName,
		MetricsVersion: trainVersion,
		TestSize:       trainTestSize,
		Overwrite:      trainOverwrite,
	}

	client := NewClient().WithTimeout(trainTimeout)

	if jsonOut {
		var raw json.RawMessage
		if err := client.PostJSON("/ml/train", req, &raw); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), raw)
	}

	var res training.Result
	if err := client.PostJSON("/ml/train", req, &res); err != nil {
		return err
	}
	printTrainResult(cmd.OutOrStdout(), &res)
	return nil
}

func printTrainResult(w io.Writer, res *training.Result) {
	fmt.Fprintln(w, successStyle.Render("✓ ")+res.Details)
	fmt.Fprintln(w, field("Name", res.Name))
	fmt.Fprintln(w, field("File", res.ModelFile))
	fmt.Fprintln(w, field("Algorithm", res.Algorithm))
	fmt.Fprintln(w, field("Format", res.Format))
	fmt.Fprintln(w, field("Rows", res.Rows))
	fmt.Fprintln(w, field("Features", strings.Join(res.Features, ", ")))
	fmt.Fprintln(w, field("Duration", res.Duration))
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Metrics ("+res.MetricsVersion+")"))
	printMetrics(w, res.Metrics)
}

func printMetrics(w io.Writer, m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, field(k, fmt.Sprintf("%.4f", m[k])))
	}
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
