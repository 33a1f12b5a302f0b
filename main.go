package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/profile"

	brc "github.com/utkarsh5026/onebillion/core"
)

type config struct {
	fileIn     string
	resultsDir string
	workers    int
	source     string
	swar       bool
	refCSV     string
	tolerance  float64
	printTable bool
	profMode   string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.fileIn, "file", "samples/data-1b.txt", "measurement file to aggregate")
	flag.StringVar(&cfg.resultsDir, "results", "results", "directory for the CSV report")
	flag.IntVar(&cfg.workers, "workers", 0, "worker count, 0 means one per logical core")
	flag.StringVar(&cfg.source, "source", string(brc.SourceMmap), "chunk source: buffered, mmap, arena or preload")
	flag.BoolVar(&cfg.swar, "swar", true, "scan for delimiters a word at a time")
	flag.StringVar(&cfg.refCSV, "validate", "", "reference CSV to validate the result against")
	flag.Float64Var(&cfg.tolerance, "tolerance", 0.1, "validation tolerance in degrees")
	flag.BoolVar(&cfg.printTable, "print", false, "print the final table to stdout")
	flag.StringVar(&cfg.profMode, "profile", "", "write a cpu or mem profile")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config) error {
	switch cfg.profMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		return fmt.Errorf("unknown profile mode %q", cfg.profMode)
	}

	if err := os.Mkdir(cfg.resultsDir, 0o764); err != nil && !os.IsExist(err) {
		return err
	}

	opts := brc.Options{
		Workers: cfg.workers,
		Source:  brc.SourceType(cfg.source),
		SWAR:    cfg.swar,
	}
	log.Printf("aggregating %s with source=%s swar=%v on %s", cfg.fileIn, cfg.source, cfg.swar, cpuid.CPU.BrandName)

	result, err := brc.Aggregate(context.Background(), cfg.fileIn, opts)
	if err != nil {
		return err
	}
	stations := result.Table.Stations()
	log.Printf("read %d rows (%d skipped), %d stations", result.Rows, result.Skipped, len(stations))

	if cfg.printTable {
		for _, s := range stations {
			fmt.Printf("%s=%s/%.1f/%s\n", s.Name, brc.FormatTenths(s.Min), s.Mean(), brc.FormatTenths(s.Max))
		}
	}

	base := strings.TrimSuffix(filepath.Base(cfg.fileIn), filepath.Ext(cfg.fileIn))
	outPath := filepath.Join(cfg.resultsDir, base+".csv")
	if err := brc.WriteCSV(outPath, stations); err != nil {
		return err
	}
	log.Printf("report saved to %s", outPath)

	if cfg.refCSV != "" {
		validation, err := brc.Validate(stations, cfg.refCSV, cfg.tolerance)
		if err != nil {
			return err
		}
		for _, msg := range validation.Errors {
			log.Print(msg)
		}
		if !validation.OK() {
			return fmt.Errorf("validation failed: %d matched, %d mismatched, %d missing, %d extra",
				validation.Matched, validation.Mismatched, validation.Missing, validation.Extra)
		}
		log.Printf("validation passed: %d stations within %.1f degrees", validation.Matched, cfg.tolerance)
	}
	return nil
}
