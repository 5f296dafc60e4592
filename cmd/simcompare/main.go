// Command simcompare runs the SUMO scenario once with fixed-time signals and
// once with the rule-based controller, and writes per-step metrics to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/signal.report/internal/config"
	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/simulation"
	"github.com/banshee-data/signal.report/internal/store"
	"github.com/banshee-data/signal.report/internal/traci"
	"github.com/banshee-data/signal.report/internal/version"
)

func main() {
	var (
		configPath  string
		sumoBinary  string
		sumoConfig  string
		outputPath  string
		dbPath      string
		steps       int
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to analysis config JSON (defaults are built in)")
	flag.StringVar(&sumoBinary, "sumo", "", "simulator binary, e.g. sumo or sumo-gui")
	flag.StringVar(&sumoConfig, "sumocfg", "", "SUMO scenario configuration file")
	flag.StringVar(&outputPath, "out", "", "metrics CSV output path")
	flag.StringVar(&dbPath, "db", "", "optional SQLite results database")
	flag.IntVar(&steps, "steps", -1, "simulation steps per mode")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("simcompare"))
		return
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if sumoBinary == "" {
		sumoBinary = cfg.GetSumoBinary()
	}
	if sumoConfig == "" {
		sumoConfig = cfg.GetSumoConfigFile()
	}
	if outputPath == "" {
		outputPath = cfg.GetMetricsPath()
	}
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}
	if steps < 0 {
		steps = cfg.GetSteps()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := traci.LaunchOptions{
		Binary:         sumoBinary,
		ConfigFile:     sumoConfig,
		Port:           cfg.GetRemotePort(),
		ConnectTimeout: cfg.GetConnectTimeout(),
	}
	runner := &simulation.Runner{
		Start: func(ctx context.Context) (simulation.Engine, error) {
			client, err := traci.Launch(ctx, opts)
			if err != nil {
				return nil, err
			}
			if api, ident, err := client.Version(); err == nil {
				monitoring.Logf("Connected to %s (TraCI API %d)", ident, api)
			}
			return client, nil
		},
		Steps: steps,
		Policy: simulation.Policy{
			QueueThreshold: cfg.GetQueueThreshold(),
			ExtendSeconds:  cfg.GetExtendSeconds(),
		},
	}

	records, err := runner.Compare(ctx)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	if err := writeMetrics(outputPath, records); err != nil {
		log.Fatalf("write metrics: %v", err)
	}
	monitoring.Infof("Metrics saved to %s", outputPath)

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("open results database: %v", err)
		}
		defer st.Close()
		id, err := st.SaveMetrics(sumoConfig, records)
		if err != nil {
			log.Fatalf("store metrics: %v", err)
		}
		monitoring.Infof("Stored run %s in %s", id, dbPath)
	}
}

func writeMetrics(path string, records []simulation.MetricsRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := simulation.WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
