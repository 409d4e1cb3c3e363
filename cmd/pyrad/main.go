// Command pyrad runs the pyramiding breakout decision engine against a
// recorded tick stream and serves Prometheus metrics while it replays.
// Order routing goes to the in-memory paper gateway; wiring a live
// gateway means swapping that one dependency.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfix/pyra/config"
	"github.com/quantfix/pyra/engine"
	"github.com/quantfix/pyra/gateway"
	"github.com/quantfix/pyra/logger"
	"github.com/quantfix/pyra/types"
)

// configContracts serves contract metadata straight from the config file.
type configContracts map[string]types.ContractMeta

func (c configContracts) Contract(instrument string) (types.ContractMeta, error) {
	meta, ok := c[instrument]
	if !ok {
		return types.ContractMeta{}, fmt.Errorf("no contract metadata for %s", instrument)
	}
	return meta, nil
}

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", envOr("PYRA_CONFIG", "pyra.yaml"), "path to the YAML config")
	ticksPath := flag.String("ticks", "", "CSV tick recording to replay (instrument,price,volume,rfc3339-time)")
	metricsAddr := flag.String("metrics", envOr("PYRA_METRICS_ADDR", ":9100"), "Prometheus listen address")
	flag.Parse()

	log, err := logger.NewZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("config_load_failed", logger.String("path", *cfgPath), logger.Err(err))
		os.Exit(1)
	}

	contracts := make(configContracts, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		contracts[inst.Symbol] = types.ContractMeta{Multiplier: inst.Multiplier, TickSize: inst.TickSize}
	}

	eng, err := engine.New(cfg, gateway.NewPaper(), contracts, log)
	if err != nil {
		log.Error("engine_init_failed", logger.Err(err))
		os.Exit(1)
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Error("metrics_server_failed", logger.Err(err))
		}
	}()

	if *ticksPath == "" {
		log.Error("no_tick_source", logger.String("hint", "pass -ticks with a CSV recording"))
		os.Exit(1)
	}
	count, err := replayTicks(eng, *ticksPath)
	if err != nil {
		log.Error("replay_failed", logger.String("path", *ticksPath), logger.Err(err))
		os.Exit(1)
	}
	log.Info("replay_complete", logger.Int("ticks", count))

	out, err := json.MarshalIndent(eng.Snapshots(), "", "  ")
	if err != nil {
		log.Error("snapshot_encode_failed", logger.Err(err))
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// replayTicks feeds a CSV recording through the engine in file order.
func replayTicks(eng *engine.Engine, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	count := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return count, fmt.Errorf("row %d: bad price %q", count+1, rec[1])
		}
		volume, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return count, fmt.Errorf("row %d: bad volume %q", count+1, rec[2])
		}
		ts, err := time.Parse(time.RFC3339, rec[3])
		if err != nil {
			return count, fmt.Errorf("row %d: bad timestamp %q", count+1, rec[3])
		}
		eng.OnTick(types.Tick{Instrument: rec[0], Price: price, Volume: volume, Time: ts})
		count++
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
