// Command plotresults renders the baseline-vs-logic comparison charts from a
// metrics CSV or a stored run. With a results database it also lists,
// reports on and deletes stored runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/signal.report/internal/charts"
	"github.com/banshee-data/signal.report/internal/config"
	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/simulation"
	"github.com/banshee-data/signal.report/internal/store"
	"github.com/banshee-data/signal.report/internal/version"
)

func main() {
	var (
		configPath  string
		inputPath   string
		outputDir   string
		htmlPath    string
		dbPath      string
		runID       string
		reportID    string
		summaryPath string
		deleteID    string
		listRuns    bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to analysis config JSON (defaults are built in)")
	flag.StringVar(&inputPath, "in", "", "metrics CSV to plot")
	flag.StringVar(&outputDir, "out-dir", "", "directory for the PNG charts")
	flag.StringVar(&htmlPath, "html", "", "interactive chart page path")
	flag.StringVar(&dbPath, "db", "", "SQLite results database")
	flag.StringVar(&runID, "run", "", "plot a stored run instead of a CSV (requires -db)")
	flag.BoolVar(&listRuns, "list", false, "list stored runs and exit (requires -db)")
	flag.StringVar(&reportID, "report", "", "print interval and lane counts of a stored video run and exit (requires -db)")
	flag.StringVar(&summaryPath, "summary-out", "", "with -report, also write the stored summary JSON to this path")
	flag.StringVar(&deleteID, "delete", "", "delete a stored run and exit (requires -db)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("plotresults"))
		return
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if inputPath == "" {
		inputPath = cfg.GetChartsInputPath()
	}
	if outputDir == "" {
		outputDir = cfg.GetChartsOutputDir()
	}
	if htmlPath == "" {
		htmlPath = cfg.GetHTMLPath()
	}
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	var records []simulation.MetricsRecord
	switch {
	case listRuns || runID != "" || reportID != "" || deleteID != "":
		if dbPath == "" {
			log.Fatalf("-list, -run, -report and -delete need a results database (-db)")
		}
		st, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("open results database: %v", err)
		}
		defer st.Close()
		switch {
		case listRuns:
			if err := printRuns(os.Stdout, st); err != nil {
				log.Fatalf("list runs: %v", err)
			}
			return
		case reportID != "":
			if err := printVideoReport(os.Stdout, st, reportID); err != nil {
				log.Fatalf("report run %s: %v", reportID, err)
			}
			if summaryPath != "" {
				if err := writeStoredSummary(st, reportID, summaryPath); err != nil {
					log.Fatalf("write summary: %v", err)
				}
				monitoring.Infof("Wrote %s", summaryPath)
			}
			return
		case deleteID != "":
			if err := deleteRun(st, deleteID); err != nil {
				log.Fatalf("delete run %s: %v", deleteID, err)
			}
			return
		}
		if records, err = st.Metrics(runID); err != nil {
			log.Fatalf("load run %s: %v", runID, err)
		}
	default:
		if records, err = readMetrics(inputPath); err != nil {
			log.Fatalf("read %s: %v", inputPath, err)
		}
	}

	files, err := charts.RenderPNG(records, outputDir)
	if err != nil {
		log.Fatalf("render charts: %v", err)
	}
	for _, f := range files {
		monitoring.Infof("Wrote %s", f)
	}
	if err := charts.RenderHTML(records, htmlPath); err != nil {
		log.Fatalf("render chart page: %v", err)
	}
	monitoring.Infof("Wrote %s", htmlPath)
}

func readMetrics(path string) ([]simulation.MetricsRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return simulation.ReadCSV(f)
}

func printRuns(out io.Writer, st *store.Store) error {
	schema, dirty, err := st.SchemaVersion()
	if err != nil {
		return err
	}
	runs, err := st.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d", schema)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tKIND\tSOURCE\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Source, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// printVideoReport prints per-interval counts by vehicle type, then the
// vehicle total of each lane.
func printVideoReport(out io.Writer, st *store.Store, runID string) error {
	counts, err := st.IntervalCounts(runID)
	if err != nil {
		return err
	}
	lanes, err := st.LaneCounts(runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INTERVAL\tTYPE\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Label, c.VehicleType, c.Count)
	}
	fmt.Fprintln(w)

	names := make([]string, 0, len(lanes))
	for name := range lanes {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "LANE\tVEHICLES")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, lanes[name])
	}
	return w.Flush()
}

func deleteRun(st *store.Store, runID string) error {
	if err := st.DeleteRun(runID); err != nil {
		return err
	}
	monitoring.Infof("Deleted run %s", runID)
	return nil
}

func writeStoredSummary(st *store.Store, runID, path string) error {
	summary, err := st.Summary(runID)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := summary.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
