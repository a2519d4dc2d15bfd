package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"folio/api"
	"folio/repository"
)

const Version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an EPUB, PDF, Markdown or HTML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Save a web page, or crawl a site with --crawl",
	Args:  cobra.ExactArgs(1),
	RunE:  runSave,
}

var restoreAllCmd = &cobra.Command{
	Use:   "restore-all <bookId>",
	Short: "Restore every edited or translated page of a book",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestoreAll,
}

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("version: ", Version)
	},
}

type importArgs struct {
	title    string
	crawl    bool
	maxPages int
}

var cliArgs importArgs

func init() {
	importCmd.Flags().StringVarP(&cliArgs.title, "title", "t", "", "book title, defaults to the document title")
	saveCmd.Flags().StringVarP(&cliArgs.title, "title", "t", "", "book title, defaults to the page title")
	saveCmd.Flags().BoolVar(&cliArgs.crawl, "crawl", false, "follow same-site links")
	saveCmd.Flags().IntVarP(&cliArgs.maxPages, "max-pages", "m", 0, "crawl page limit, 0 uses the config value")

	rootCmd.AddCommand(serveCmd, importCmd, saveCmd, restoreAllCmd, versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	server := api.NewServer(a.cfg.Server, a.lib, a.ingest, a.store, a.logger)
	return server.Start(ctx)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ctx, stop := signalContext()
	defer stop()

	book, err := a.ingest.Upload(ctx, filepath.Base(path), f, cliArgs.title)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	fmt.Printf("%s\t%s\t%d pages\n", book.ID, book.Title, book.TotalPages)
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	save := func() (*repository.Book, error) {
		if cliArgs.crawl {
			return a.ingest.CrawlWebsite(ctx, args[0], cliArgs.maxPages, cliArgs.title)
		}
		return a.ingest.SaveWebsite(ctx, args[0], cliArgs.title)
	}
	book, err := save()
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", args[0], err)
	}
	fmt.Printf("%s\t%s\t%d pages\n", book.ID, book.Title, book.TotalPages)
	return nil
}

func runRestoreAll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	if _, err := a.store.GetBook(cmd.Context(), id); err != nil {
		return fmt.Errorf("book %s: %w", id, err)
	}
	restored, err := a.lib.RestoreAll(id)
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", id, err)
	}
	if len(restored) > 0 {
		if err := a.store.TouchBook(cmd.Context(), id); err != nil {
			return err
		}
	}
	a.logger.Info("pages restored", zap.String("book_id", id), zap.Ints("pages", restored))
	fmt.Printf("restored %d pages: %v\n", len(restored), restored)
	return nil
}
