package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/sluice"
	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/persistence"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.engine.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No schedules found.")
			return nil
		}
		for _, name := range names {
			s, err := a.engine.Load(cmd.Context(), name)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s (unreadable: %v)\n", name, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- %s at %s\n", name, s.CurrentNode)
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <schedule>...",
	Short: "Remove one or more schedules",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, name := range args {
			if _, err := a.engine.Load(cmd.Context(), name); errors.Is(err, domain.ErrScheduleNotFound) {
				errs = append(errs, fmt.Errorf("failed to remove '%s': %w", name, err))
				continue
			}
			if err := a.engine.Delete(cmd.Context(), name); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove '%s': %w", name, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed schedule '%s'\n", name)
		}
		return errors.Join(errs...)
	},
}

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Store a schedule from a YAML or JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		s, err := readScheduleFile(args[0])
		if err != nil {
			return err
		}
		report := sluice.Validate(s)
		if !report.Valid() {
			return fmt.Errorf("%w: %w", domain.ErrInvalidSchedule, report)
		}
		for _, w := range report.Warnings() {
			fmt.Fprintln(cmd.ErrOrStderr(), w)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if force {
			err = a.engine.Save(cmd.Context(), s)
		} else {
			err = a.engine.Create(cmd.Context(), s)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored schedule '%s'\n", s.Name)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <schedule>",
	Short: "Print a stored schedule document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.engine.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		format := persistence.FormatYAML
		if asJSON {
			format = persistence.FormatJSON
		}
		data, err := persistence.Marshal(s, format)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <schedule>",
	Short: "Restore original variable values and return to the start node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset schedule '%s'\n", args[0])
		return nil
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort <schedule>",
	Short: "Ask a running schedule to stop",
	Long:  `Leaves an abort marker that the running traversal picks up at its next node boundary.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Abort(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Abort requested for '%s'\n", args[0])
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <schedule>",
	Short: "Show variables, nodes, edges and validation issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.engine.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := tui.NewRenderer()(tui.InspectMarkdown(s, sluice.Validate(s)))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <schedule|file>",
	Short: "Check a schedule for consistency",
	Long: `Validates a stored schedule, or a schedule document when the argument names a
.yaml, .yml or .json file. Errors make the command fail; warnings are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var s *domain.Schedule
		var err error
		if isDocument(args[0]) {
			s, err = readScheduleFile(args[0])
		} else {
			var a *app
			if a, err = newApp(); err != nil {
				return err
			}
			defer a.Close()
			s, err = a.engine.Load(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}

		report := sluice.Validate(s)
		for _, issue := range report.Issues {
			fmt.Fprintln(cmd.OutOrStdout(), issue)
		}
		if !report.Valid() {
			return fmt.Errorf("schedule '%s' is invalid", s.Name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schedule '%s' is valid\n", s.Name)
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph <schedule>",
	Short: "Export the schedule as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.engine.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd, rmCmd, createCmd, exportCmd, resetCmd, abortCmd, inspectCmd, validateCmd, graphCmd)
	createCmd.Flags().BoolP("force", "f", false, "Replace an existing schedule with the same name")
	exportCmd.Flags().Bool("json", false, "Print JSON instead of YAML")
}

func isDocument(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func readScheduleFile(path string) (*domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := persistence.FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = persistence.FormatJSON
	}
	s, err := persistence.Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s, nil
}
