package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/HerbHall/faceanalyzer/internal/catalog"
	"go.uber.org/zap"
)

func runRank(args []string) {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "YAML or JSON catalog file (default: embedded catalog)")
	limit := fs.Int("limit", catalog.DefaultLimit, "maximum number of services to return")
	scores := fs.Bool("scores", false, "print every matching service with its score")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: faceanalyzer rank [flags] feature...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	if err := rank(os.Stdout, *catalogPath, *limit, *scores, *asJSON, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "rank failed: %v\n", err)
		os.Exit(1)
	}
}

func rank(w io.Writer, catalogPath string, limit int, all, asJSON bool, features []string) error {
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	engine, err := catalog.NewEngine(cat, zap.NewNop(), catalog.WithLimit(limit))
	if err != nil {
		return err
	}

	features = catalog.NormalizeFeatures(features)
	var scored []catalog.ScoredService
	if all {
		scored = engine.Scores(features)
	} else {
		scored = engine.RecommendScored(features)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(scored)
	}

	if len(scored) == 0 {
		_, err := fmt.Fprintln(w, "no matching services")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tSERVICE")
	for i, s := range scored {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, strconv.FormatFloat(s.Score, 'f', -1, 64), s.Service.Name)
	}
	return tw.Flush()
}
