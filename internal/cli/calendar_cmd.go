package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"plandash/internal/calendar"
	"plandash/internal/dataprocessing"
)

// calendarFlags are the persistent flags shared by calendar subcommands.
type calendarFlags struct {
	file   string
	sheet  string
	output string
}

// NewCalendarRootCmd creates the top-level "calendar" command.
func NewCalendarRootCmd(app *App) *cobra.Command {
	flags := &calendarFlags{}
	var verbose bool

	root := &cobra.Command{
		Use:           "calendar",
		Short:         "Edit calendar workbooks and generate event summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.SetupLogger(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&flags.file, "file", "f", "", "calendar workbook path")
	root.PersistentFlags().StringVarP(&flags.sheet, "sheet", "s", "Calendar", "calendar sheet name")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "save to this path instead of in place")

	root.AddCommand(
		newSampleCmd(app),
		newListCmd(app, flags),
		newAddEventCmd(app, flags),
		newUpdateEventCmd(app, flags),
		newRemoveEventCmd(app, flags),
		newBatchCmd(app, flags),
		newCalendarSummaryCmd(app, flags),
	)
	return root
}

// withManager opens the workbook, runs fn, and saves when fn staged
// changes. Read-only commands pass save=false.
func withManager(app *App, flags *calendarFlags, save bool, fn func(m *calendar.Manager) error) error {
	if flags.file == "" {
		return fmt.Errorf("--file is required")
	}

	m, err := calendar.Open(flags.file, flags.sheet, app.Logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := fn(m); err != nil {
		return err
	}
	if save && m.Dirty() {
		return m.Save(flags.output)
	}
	return nil
}

func newSampleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sample <path>",
		Short: "Create a sample calendar workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := calendar.CreateSample(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sample calendar written to %s\n", args[0])
			return nil
		},
	}
}

func newListCmd(app *App, flags *calendarFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events grouped by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(app, flags, false, func(m *calendar.Manager) error {
				byDate := m.EventsByDate()
				if len(byDate) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no events")
					return nil
				}
				for _, de := range byDate {
					fmt.Fprintln(cmd.OutOrStdout(), de.Date)
					for _, title := range de.Titles {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", title)
					}
				}
				return nil
			})
		},
	}
}

func newAddEventCmd(app *App, flags *calendarFlags) *cobra.Command {
	var dateStr, title, style string

	cmd := &cobra.Command{
		Use:   "add-event",
		Short: "Add an event to a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dataprocessing.ParseDate(dateStr)
			if err != nil {
				return err
			}
			return withManager(app, flags, true, func(m *calendar.Manager) error {
				return m.AddEvent(date, title, style)
			})
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "event date")
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&style, "style", "default", "event style: default, important, meeting")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newUpdateEventCmd(app *App, flags *calendarFlags) *cobra.Command {
	var dateStr, oldTitle, newTitle string

	cmd := &cobra.Command{
		Use:   "update-event",
		Short: "Rename an event on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dataprocessing.ParseDate(dateStr)
			if err != nil {
				return err
			}
			return withManager(app, flags, true, func(m *calendar.Manager) error {
				return m.UpdateEvent(date, oldTitle, newTitle)
			})
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "event date")
	cmd.Flags().StringVar(&oldTitle, "old", "", "current event title")
	cmd.Flags().StringVar(&newTitle, "new", "", "new event title")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("old")
	cmd.MarkFlagRequired("new")
	return cmd
}

func newRemoveEventCmd(app *App, flags *calendarFlags) *cobra.Command {
	var dateStr, title string

	cmd := &cobra.Command{
		Use:   "remove-event",
		Short: "Remove an event from a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dataprocessing.ParseDate(dateStr)
			if err != nil {
				return err
			}
			return withManager(app, flags, true, func(m *calendar.Manager) error {
				return m.RemoveEvent(date, title)
			})
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "event date")
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newBatchCmd(app *App, flags *calendarFlags) *cobra.Command {
	var datesFile, title string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Add one event per date listed in a CSV or text file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(app, flags, true, func(m *calendar.Manager) error {
				added, err := m.BatchAdd(cmd.Context(), datesFile, title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d events\n", added)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&datesFile, "dates-file", "", "file with one date per line or CSV row")
	cmd.Flags().StringVar(&title, "title", "Event", "title given to each added event")
	cmd.MarkFlagRequired("dates-file")
	return cmd
}

func newCalendarSummaryCmd(app *App, flags *calendarFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Rebuild the event summary sheet with links back to the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(app, flags, true, func(m *calendar.Manager) error {
				return m.SummarySheet()
			})
		},
	}
}
