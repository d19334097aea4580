package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curveforge/poolsim/internal/config"
	"github.com/curveforge/poolsim/internal/datafetcher"
	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/metrics"
	"github.com/curveforge/poolsim/internal/pool"
	"github.com/curveforge/poolsim/internal/runner"
	"github.com/curveforge/poolsim/internal/sampler"
	"github.com/curveforge/poolsim/internal/state"
	"github.com/curveforge/poolsim/internal/strategy"
	"github.com/curveforge/poolsim/internal/types"
	"github.com/curveforge/poolsim/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main runs one parameter sweep end to end: load a market window, expand the
// sweep grid over the base pool, simulate every variant, persist the results
// and keep serving them until interrupted.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Pool parameter sweeper starting...")

	// Initialize Database Connection
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: int(config.DBPort),
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: sslMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- Start Web Server ---
	webPort := fmt.Sprintf("%d", config.WebPort)
	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting results API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Market Data ---
	poolParams := config.DefaultPoolParams()
	base, quote := poolParams.Coins[0], poolParams.Coins[1]

	var (
		series types.PriceSeries
		err    error
	)
	if config.PriceDataCSV != "" {
		series, err = datafetcher.LoadCSVSeries(config.PriceDataCSV, base, quote)
	} else {
		series, err = datafetcher.FetchPairSeries(base, quote, int(config.PriceHours))
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load market price series")
	}
	samples := strategy.SamplesFromSeries(series)
	log.Info().
		Str("pair", base+"/"+quote).
		Int("ticks", len(samples)).
		Msg("Market price series ready")

	// --- 3. Sweep Grid ---
	basePool, err := pool.NewCryptoSwap(poolParams)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct base pool")
	}
	grid, err := sampler.NewGrid(basePool, config.DefaultSweepAxes())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build sweep grid")
	}

	runID, err := state.CreateRun(types.RunRecord{
		StartedAt:  time.Now(),
		PoolFamily: basePool.Snapshot().Family,
		Coins:      basePool.CoinNames(),
		Axes:       grid.Axes(),
		Variants:   grid.Size(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sweep run")
	}

	// --- 4. Run the Sweep ---
	arb := strategy.NewArbitrageur()
	if config.ArbThreshold > 0 {
		arb.Threshold = config.ArbThreshold
	}

	sweeper, err := runner.New(runner.Config{
		Workers:     int(config.SimWorkers),
		Arbitrageur: arb,
		Sink:        state.NewTickLog(runID),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct runner")
	}

	result, err := sweeper.Run(ctx, grid, samples)
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}

	// --- 5. Persist and Rank ---
	for _, v := range result.Variants {
		if err := state.SaveVariantResult(runID, v); err != nil {
			log.Fatal().Err(err).Msg("Failed to save variant result")
		}
	}
	record := result.Run
	record.PoolFamily = basePool.Snapshot().Family
	record.Coins = basePool.CoinNames()
	if err := state.FinalizeRun(runID, record); err != nil {
		log.Fatal().Err(err).Msg("Failed to finalize sweep run")
	}

	ranked := metrics.RankVariants(result.Variants, metrics.DefaultWeights())
	top := ranked
	if len(top) > 5 {
		top = top[:5]
	}
	for rank, v := range top {
		log.Info().
			Int("rank", rank+1).
			Int("variant", v.VariantIndex).
			Interface("params", v.Params).
			Str("status", v.Status).
			Float64("mean_price_error", v.MeanPriceError).
			Float64("final_virtual_price", v.FinalVirtualPrice).
			Str("total_fees", v.TotalFees.String()).
			Msg("Sweep leader")
	}

	log.Info().
		Int64("run_id", runID).
		Str("results", fmt.Sprintf("http://localhost:%s/api/runs/%d/variants", webPort, runID)).
		Msg("Sweep complete; serving results until interrupted")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
}
