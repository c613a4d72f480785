package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"fwatch-go/internal/app"
	"fwatch-go/internal/config"
	"fwatch-go/internal/encryption"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must close it.
func newApp() (*app.App, error) {
	paths, err := app.DefaultLocations()
	if err != nil {
		return nil, fmt.Errorf("resolving default paths: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echoing.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

var rootCmd = &cobra.Command{
	Use:   "fwatch",
	Short: "File lifecycle monitor",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Initialize and inspect configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and export keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultLocations()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		// The passphrase protects the private export key
		passphrase, err := readPassphrase("Passphrase for the export key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, paths.DataDir)
		if err := config.Init(paths.ConfigFile, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// Generate the export key pair
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating export keys: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigFile)
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", paths.DataDir)
		fmt.Println("Add watch roots under [watch] before running the monitor.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the active configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultLocations()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigFile)
		fmt.Printf("Host ID:  %s\n", cfg.HostID)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s\n", cfg.Database.Type)
		fmt.Printf("Archive:  %s\n", cfg.Archive.Type)
		fmt.Printf("Roots:    %s\n", strings.Join(cfg.Watch.Roots, ", "))
		if len(cfg.Watch.Exclude) > 0 {
			fmt.Printf("Exclude:  %s\n", strings.Join(cfg.Watch.Exclude, ", "))
		}
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor the configured trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runErr := a.RunMonitor(ctx)
		if err := a.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

// events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded events",
	RunE: func(cmd *cobra.Command, args []string) error {
		types, _ := cmd.Flags().GetStringSlice("type")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		latest, _ := cmd.Flags().GetBool("latest")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Events(types, search, limit, offset, latest)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, rec := range recs {
			fmt.Printf("#%-6d %s  %-8s %s\n",
				rec.ID,
				formatTimestamp(rec.Timestamp),
				rec.TypeCode,
				rec.FilePath,
			)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database statistics and recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Status()
		if err != nil {
			return err
		}

		s := report.Statistics
		fmt.Printf("Events:       %d\n", s.TotalEvents)
		fmt.Printf("Files:        %d (%d active)\n", s.TotalFiles, s.ActiveFiles)
		fmt.Printf("Measurements: %d\n", s.TotalMeasurements)
		fmt.Printf("Aggregates:   %d\n", s.TotalAggregates)
		fmt.Printf("Sessions:     %d\n", s.TotalSessions)
		if s.TotalEvents > 0 {
			fmt.Printf("Time range:   %s - %s\n",
				formatTimestamp(s.FirstTimestamp), formatTimestamp(s.LastTimestamp))
		}

		if len(s.EventsByType) > 0 {
			fmt.Println("\nEvents by type:")
			codes := make([]string, 0, len(s.EventsByType))
			for code := range s.EventsByType {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Printf("  %-8s %d\n", code, s.EventsByType[code])
			}
		}

		if len(report.Sessions) > 0 {
			fmt.Println("\nRecent sessions:")
			for _, sess := range report.Sessions {
				duration := ""
				if sess.FinishedAt != nil {
					d := time.Duration(*sess.FinishedAt-sess.StartedAt) * time.Millisecond
					duration = d.String()
				}
				fmt.Printf("%s  %s  %-10s %d events  %s\n",
					sess.SessionID[:8],
					formatTimestamp(sess.StartedAt),
					sess.Status,
					sess.EventsRecorded,
					duration,
				)
			}
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history FILE",
	Short: "View a file's lifecycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.FileHistory(args[0], limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No recorded history.")
			return nil
		}

		for _, rec := range recs {
			fmt.Printf("%s  %-8s %s  %d B\n",
				formatTimestamp(rec.Timestamp),
				rec.TypeCode,
				rec.FilePath,
				rec.Measurement.FileSize,
			)
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent events and statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := a.Export(w, limit, encrypt); err != nil {
			return err
		}
		if output != "" {
			fmt.Printf("Exported to %s\n", output)
		}
		return nil
	},
}

// inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Decrypt an exported file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		return a.Inspect(args[0], os.Stdout, passphrase)
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Snapshot the database to the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.ArchiveNow(); err != nil {
			a.Close()
			return err
		}

		// The snapshot uploads on Close, once the session is finalized.
		if err := a.Close(); err != nil {
			return err
		}

		fmt.Println("Database snapshot archived.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringSlice("type", nil, "Filter by event type (find, create, modify, delete, move, restore)")
	eventsCmd.Flags().String("search", "", "Filter by file name or directory substring")
	eventsCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	eventsCmd.Flags().Int("offset", 0, "Number of events to skip")
	eventsCmd.Flags().Bool("latest", false, "Show only the newest event per file")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntP("limit", "n", 100, "Number of recent events to include")
	exportCmd.Flags().Bool("encrypt", false, "Encrypt the export with the public key")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(archiveCmd)
}
