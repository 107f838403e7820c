package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"plandash/internal/dataprocessing"
	"plandash/internal/exporter"
	"plandash/pkg/contracts/domain"
)

// defaultPivotSpecs are the dashboard pivots built when no --pivot flag
// is given.
var defaultPivotSpecs = []dataprocessing.PivotSpec{
	{Name: "by_category", Dimensions: []string{dataprocessing.DimCategory}, Agg: dataprocessing.Aggregation{Kind: dataprocessing.AggCount}},
	{Name: "by_status", Dimensions: []string{dataprocessing.DimStatus}, Agg: dataprocessing.Aggregation{Kind: dataprocessing.AggCount}},
	{Name: "by_month", Dimensions: []string{dataprocessing.DimMonth}, Agg: dataprocessing.Aggregation{Kind: dataprocessing.AggCount}},
	{Name: "by_assigned", Dimensions: []string{dataprocessing.DimAssigned}, Agg: dataprocessing.Aggregation{Kind: dataprocessing.AggCount}},
}

// tasksFlags are the persistent flags shared by tasks subcommands.
type tasksFlags struct {
	in    string
	sheet string
}

// NewTasksRootCmd creates the top-level "tasks" command.
func NewTasksRootCmd(app *App) *cobra.Command {
	flags := &tasksFlags{}
	var verbose bool

	root := &cobra.Command{
		Use:           "tasks",
		Short:         "Load project spreadsheets and build Gantt charts and dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.SetupLogger(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&flags.in, "in", "i", "", "input workbook, CSV file, or directory")
	root.PersistentFlags().StringVarP(&flags.sheet, "sheet", "s", "", "sheet to read (default: first sheet with a recognizable header)")

	root.AddCommand(
		newLoadCmd(app, flags),
		newGanttCmd(app, flags),
		newDashboardCmd(app, flags),
	)
	return root
}

// loadInput reads the --in path: CSV files go through the importer,
// everything else through the spreadsheet loader.
func loadInput(cmd *cobra.Command, app *App, flags *tasksFlags) (*domain.Dataset, error) {
	if flags.in == "" {
		return nil, fmt.Errorf("--in is required")
	}

	cfg := app.Config.Loader
	if flags.sheet != "" {
		cfg.Sheet = flags.sheet
	}

	if strings.EqualFold(filepath.Ext(flags.in), ".csv") {
		return dataprocessing.NewImporter(app.Logger).ImportCSV(cmd.Context(), flags.in)
	}
	return dataprocessing.NewLoader(app.Logger, cfg).LoadPath(cmd.Context(), flags.in)
}

func newLoadCmd(app *App, flags *tasksFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load input files and report per-file statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadInput(cmd, app, flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, stats := range ds.Stats {
				fmt.Fprintf(out, "%s: %d rows, %d loaded, %d skipped, %d invalid\n",
					stats.Source, stats.TotalRows, stats.Loaded, stats.Skipped, stats.Invalid)
				for _, issue := range stats.Issues {
					fmt.Fprintf(out, "  row %d [%s]: %s\n", issue.Row, issue.Kind, issue.Reason)
				}
			}
			fmt.Fprintf(out, "total: %d records, %d issues from %d files\n",
				ds.Len(), ds.TotalIssues(), len(ds.Stats))
			return nil
		},
	}
}

func newGanttCmd(app *App, flags *tasksFlags) *cobra.Command {
	var out, title string
	var png, pdf bool

	cmd := &cobra.Command{
		Use:   "gantt",
		Short: "Render the loaded records as a Gantt chart page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadInput(cmd, app, flags)
			if err != nil {
				return err
			}
			graph := dataprocessing.NewAggregator(app.Logger).DependencyGraph(cmd.Context(), ds)

			if err := exporter.NewGanttBuilder(app.Logger).WriteHTML(out, ds, graph, title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gantt chart written to %s\n", out)
			warnGraph(cmd, graph)

			if !png && !pdf {
				return nil
			}
			renderer := exporter.NewChromeRenderer(app.Logger)
			base := strings.TrimSuffix(out, filepath.Ext(out))
			if png {
				target := base + ".png"
				if err := renderer.RenderPNG(cmd.Context(), out, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "png written to %s\n", target)
			}
			if pdf {
				target := base + ".pdf"
				if err := renderer.RenderPDF(cmd.Context(), out, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pdf written to %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "gantt.html", "output HTML path")
	cmd.Flags().StringVar(&title, "title", "", "chart title")
	cmd.Flags().BoolVar(&png, "png", false, "also capture a PNG via headless Chrome")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "also print a PDF via headless Chrome")
	return cmd
}

func newDashboardCmd(app *App, flags *tasksFlags) *cobra.Command {
	var out string
	var mergeByID, csvExtracts bool
	var pivotSpecs []string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Build the dashboard workbook from the loaded records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadInput(cmd, app, flags)
			if err != nil {
				return err
			}

			agg := dataprocessing.NewAggregator(app.Logger)
			if mergeByID {
				ds = agg.MergeByID(ds)
			}

			specs := defaultPivotSpecs
			if len(pivotSpecs) > 0 {
				specs = make([]dataprocessing.PivotSpec, 0, len(pivotSpecs))
				for _, raw := range pivotSpecs {
					spec, err := parsePivotSpec(raw)
					if err != nil {
						return err
					}
					specs = append(specs, spec)
				}
			}

			pivots := make([]domain.PivotResult, 0, len(specs))
			for _, spec := range specs {
				pivot, err := agg.Pivot(cmd.Context(), ds, spec)
				if err != nil {
					return err
				}
				pivots = append(pivots, pivot)
			}

			summary := agg.Summarize(cmd.Context(), ds)
			graph := agg.DependencyGraph(cmd.Context(), ds)

			if err := exporter.NewDashboardWriter(app.Logger).Write(out, ds, pivots, summary, graph); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dashboard written to %s\n", out)

			if csvExtracts {
				writer := exporter.NewCSVWriter(filepath.Dir(out), app.Logger)
				if err := writer.WriteDataset("records.csv", ds); err != nil {
					return err
				}
				for _, pivot := range pivots {
					if err := writer.WritePivot(pivot.Name+".csv", pivot); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "csv extracts written")
			}

			warnGraph(cmd, graph)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "dashboard.xlsx", "output workbook path")
	cmd.Flags().BoolVar(&mergeByID, "merge-by-id", false, "collapse records sharing an ID across files")
	cmd.Flags().BoolVar(&csvExtracts, "csv", false, "also write CSV extracts next to the workbook")
	cmd.Flags().StringArrayVar(&pivotSpecs, "pivot", nil,
		`pivot spec "name=dim[,dim][:agg[:field]]", e.g. by_cat=category or work=category:sum:progress`)
	return cmd
}

// warnGraph reports dangling references and cycles on stderr. Both are
// warnings, not failures: the artifact is still produced.
func warnGraph(cmd *cobra.Command, graph domain.DependencyGraph) {
	for _, d := range graph.Dangling {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s depends on missing %s\n", d.FromID, d.MissingID)
	}
	for _, cycle := range graph.Cycles {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: dependency cycle %s\n", strings.Join(cycle, " -> "))
	}
}

// parsePivotSpec parses the --pivot flag syntax
// name=dim[,dim][:agg[:field]].
func parsePivotSpec(raw string) (dataprocessing.PivotSpec, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok || name == "" || rest == "" {
		return dataprocessing.PivotSpec{}, fmt.Errorf("invalid pivot spec %q: want name=dims[:agg[:field]]", raw)
	}

	parts := strings.Split(rest, ":")
	spec := dataprocessing.PivotSpec{
		Name: name,
		Agg:  dataprocessing.Aggregation{Kind: dataprocessing.AggCount},
	}
	for _, dim := range strings.Split(parts[0], ",") {
		if dim = strings.TrimSpace(dim); dim != "" {
			spec.Dimensions = append(spec.Dimensions, dim)
		}
	}

	if len(parts) > 1 {
		spec.Agg.Kind = dataprocessing.AggregationKind(parts[1])
		switch spec.Agg.Kind {
		case dataprocessing.AggCount, dataprocessing.AggSum, dataprocessing.AggDistinctCount:
		default:
			return dataprocessing.PivotSpec{}, fmt.Errorf("unknown aggregation %q in pivot spec %q", parts[1], raw)
		}
	}
	if len(parts) > 2 {
		spec.Agg.Field = parts[2]
	}
	if spec.Agg.Kind != dataprocessing.AggCount && spec.Agg.Field == "" {
		return dataprocessing.PivotSpec{}, fmt.Errorf("aggregation %q needs a field in pivot spec %q", spec.Agg.Kind, raw)
	}
	return spec, nil
}
