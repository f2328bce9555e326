package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"mercancia/internal/config"
	"mercancia/internal/export"
	"mercancia/internal/metrics"
	"mercancia/internal/metrics/datadog"
	"mercancia/internal/metrics/prompush"
	"mercancia/internal/pipeline"
	"mercancia/internal/rules"
)

// main is the entry point for the consolidation binary. It validates the
// configuration and input paths, runs the pipeline for one country, and
// writes the result workbook.
func main() {
	var (
		schemaPath  string
		countryPath string
		ebsPath     string
		reimPath    string
		rsfPath     string
		outPath     string
		dateFlg     string
		validate    bool
		pushURL     string
		statsdAddr  string
	)

	flag.StringVar(&schemaPath, "schema", "schema/mercancia.yaml", "schema YAML path")
	flag.StringVar(&countryPath, "config", "", "country configuration YAML path")
	flag.StringVar(&ebsPath, "ebs", "", "EBS extract path (csv/txt/xlsx)")
	flag.StringVar(&reimPath, "reim", "", "REIM extract path (csv/txt/xlsx)")
	flag.StringVar(&rsfPath, "rsf", "", "RSF extract path (csv/txt/xlsx)")
	flag.StringVar(&outPath, "out", "consolidado.xlsx", "output workbook path")
	flag.StringVar(&dateFlg, "date", "", "execution date (yyyy-mm-dd); defaults to today")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&pushURL, "pushgateway", "", "Prometheus Pushgateway URL for run metrics (optional)")
	flag.StringVar(&statsdAddr, "statsd", "", "DogStatsD address for run metrics (optional)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log.SetOutput(logWriter(*verbose))

	if countryPath == "" {
		fatalf("missing -config")
	}

	schema, err := config.LoadSchema(schemaPath)
	if err != nil {
		fatalf("load schema: %v", err)
	}
	cfg, err := config.LoadCountry(countryPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.Validate(schema, cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintf(os.Stderr, "Configuration is invalid: %v\n", countryPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		fmt.Fprintf(os.Stderr, "Configuration is valid: %v\n", countryPath)
		os.Exit(0)
	}

	inputs := map[string]string{
		config.SourceEBS:  ebsPath,
		config.SourceREIM: reimPath,
		config.SourceRSF:  rsfPath,
	}
	haveInput := false
	for kind, path := range inputs {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			fatalf("input %s: %v", kind, err)
		}
		haveInput = true
	}
	if !haveInput {
		fatalf("no input files given (want at least one of -ebs, -reim, -rsf)")
	}

	switch {
	case pushURL != "":
		b, err := prompush.NewBackend("mercancia-"+cfg.Pais, pushURL)
		if err != nil {
			fatalf("pushgateway: %v", err)
		}
		metrics.SetBackend(b)
	case statsdAddr != "":
		b, err := datadog.NewBackend(datadog.Config{Addr: statsdAddr, Namespace: "mercancia."})
		if err != nil {
			fatalf("statsd: %v", err)
		}
		metrics.SetBackend(b)
	}

	execDate := time.Now()
	if dateFlg != "" {
		execDate, err = time.Parse("2006-01-02", dateFlg)
		if err != nil {
			fatalf("invalid -date %q (want yyyy-mm-dd)", dateFlg)
		}
	}

	log.Printf("run: pais=%s date=%s monday=%s",
		cfg.Pais, execDate.Format("2006-01-02"), rules.MondayOf(execDate).Format("2006-01-02"))

	start := time.Now()
	res, err := pipeline.Run(context.Background(), pipeline.Options{
		SchemaPath:  schemaPath,
		CountryPath: countryPath,
		Inputs:      inputs,
		ExecDate:    execDate,
	})
	if err != nil {
		fatalf("%v", err)
	}

	if err := export.WriteWorkbook(outPath, res); err != nil {
		fatalf("%v", err)
	}

	if err := metrics.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "metrics flush: %v\n", err)
	}

	log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
}

// logWriter selects the destination for progress logs: stderr when verbose,
// discarded otherwise. Errors and validation results print unconditionally.
func logWriter(verbose bool) io.Writer {
	if verbose {
		return os.Stderr
	}
	return io.Discard
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
