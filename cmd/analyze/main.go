// Command analyze extracts page text from a local or remote PDF and writes the
// page table and term statistics workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "analyze:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	in := fs.String("in", "", "path of the PDF to analyze")
	url := fs.String("url", "", "URL of the PDF to analyze")
	csvPath := fs.String("csv", "", "write the page table to this CSV file")
	xlsxPath := fs.String("xlsx", "", "write the statistics workbook to this XLSX file")
	strict := fs.Bool("strict", false, "fail when any page cannot be extracted")
	top := fs.Int("top", services.TopTermsPerPage, "top terms to report per page")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*in == "") == (*url == "") {
		return errors.New("exactly one of -in or -url is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg.StrictPages = cfg.StrictPages || *strict

	log := logger.New(stdout, *verbose)
	slog.SetDefault(log)
	logger.Logger = log

	var content []byte
	if *in != "" {
		content, err = os.ReadFile(*in)
	} else {
		content, err = services.NewDownloader(cfg, nil).Fetch(ctx, *url)
	}
	if err != nil {
		return err
	}

	svc := services.NewAnalysisService(cfg, nil, nil)
	res, err := svc.Extract(ctx, content)
	if err != nil {
		return err
	}
	if *csvPath != "" {
		if err := services.SavePageTable(*csvPath, res.Pages); err != nil {
			return err
		}
		log.Info("Page table written", "path", *csvPath)
	}

	stats, err := svc.Statistics(ctx, res.Pages)
	if err != nil {
		return err
	}
	if *xlsxPath != "" {
		if err := services.SaveWorkbook(*xlsxPath, stats); err != nil {
			return err
		}
		log.Info("Workbook written", "path", *xlsxPath)
	}

	log.Info("Analysis finished",
		"pages", len(res.Pages),
		"failed_pages", res.FailedPages,
		"vocabulary_size", stats.Vocabulary.Len(),
		"duration", res.Duration.String(),
	)
	for _, p := range services.PageTopTerms(res.Pages, stats, *top) {
		log.Info("Top terms", "page", p.Page, "terms", p.Terms)
	}
	return nil
}
