package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clientDeps bundles everything a client-side command needs.
type clientDeps struct {
	logger  *zap.Logger
	config  *Config
	library *Library
	cleanup func()
}

// setupClient loads the configuration, builds the logger, the API
// client, the cache and the library facade shared by every command
// that talks to the remote service.
func setupClient() (*clientDeps, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load configs: %w", err)
	}
	// The terminal views own the screen so the console tee stays off.
	logger, cleanup, err := SetupFileLogging(config, false)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	ids := NewIDsHandler()
	api := NewAPIClient(logger, &config.API, ids)
	store := NewStore(logger)
	clock := NewClock(config.IsProduction)
	library := NewLibrary(logger, api, store, clock, config.API.PageLimit)
	return &clientDeps{logger: logger, config: config, library: library, cleanup: cleanup}, nil
}

// NewRootCommand builds the command tree. Running bookmate with no
// subcommand opens the terminal interface.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookmate",
		Short:         "a terminal front end for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUICommand()
		},
	}
	root.AddCommand(
		newTUICommand(),
		newServeCommand(),
		newListCommand(),
		newBorrowCommand(),
		newSummaryCommand(),
		newVersionCommand(),
	)
	return root
}

func runTUICommand() error {
	deps, err := setupClient()
	if err != nil {
		return err
	}
	defer deps.cleanup()
	return RunTUI(deps.logger, deps.library, deps.config.API.PageLimit)
}

func newTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "browse and manage the catalog interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUICommand()
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the bundled development library service",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
			if err != nil {
				return fmt.Errorf("failed to load configs: %w", err)
			}
			logger, cleanup, err := SetupFileLogging(config, true)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()
			app, err := NewApp(logger, config)
			if err != nil {
				return fmt.Errorf("failed to initialize the service: %w", err)
			}
			return app.Run()
		},
	}
}

func newListCommand() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "print one page of the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setupClient()
			if err != nil {
				return err
			}
			defer deps.cleanup()
			list, err := deps.library.ListBooks(context.Background(), page, deps.config.API.PageLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCOPIES\tAVAILABLE")
			for _, book := range list.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", book.ID, book.Title, book.Author, int(book.Copies), book.Available)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("page %d, %d book(s) in total\n", page, list.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page of the catalog to fetch")
	return cmd
}

func newBorrowCommand() *cobra.Command {
	var (
		name     string
		quantity int
		due      string
	)
	cmd := &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "borrow copies of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setupClient()
			if err != nil {
				return err
			}
			defer deps.cleanup()
			flow := NewBorrowFlow(deps.logger, deps.library, args[0])
			if err := flow.Load(context.Background()); err != nil {
				return err
			}
			flow.SetBorrowerName(name)
			flow.SetQuantity(quantity)
			flow.SetDueDate(due)
			record, err := flow.Submit(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("borrowed %d cop(ies) of %q, due on %s (record %s)\n",
				record.Quantity, flow.Book().Title, record.DueDate, record.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "borrower name")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "number of copies to borrow")
	cmd.Flags().StringVar(&due, "due", "", "due date as YYYY-MM-DD")
	return cmd
}

func newSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "print the aggregated borrow summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setupClient()
			if err != nil {
				return err
			}
			defer deps.cleanup()
			entries, err := deps.library.BorrowSummary(context.Background())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BOOK ID\tTITLE\tISBN\tBORROWED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", entry.BookID, entry.Title, entry.ISBN, entry.TotalQuantity)
			}
			return w.Flush()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bookmate commit=%s tag=%s built=%s\n", GitCommit, GitTag, BuildTime)
		},
	}
}
