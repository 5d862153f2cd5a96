package main

import (
	"context"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/flexlev/flm/internal/config"
	"github.com/flexlev/flm/internal/engine"
	"github.com/flexlev/flm/internal/exchange"
	"github.com/flexlev/flm/internal/issuance"
	"github.com/flexlev/flm/internal/keeper"
	"github.com/flexlev/flm/internal/lending"
	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/oracle"
	"github.com/flexlev/flm/internal/state"
	"github.com/flexlev/flm/internal/web"
)

// main is the entry point for the FLM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	log.Info().Msg("FLM Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Engine Settings
	settings, err := state.LoadActiveEngineSettings(config.DefaultConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active engine settings, using defaults and saving.")
		defaults := state.EngineSettings{
			Methodology: config.DefaultMethodologySettings,
			Execution:   config.DefaultExecutionSettings,
			Incentive:   config.DefaultIncentiveSettings,
		}
		if _, err := state.SaveEngineSettings(defaults, config.DefaultConfigName, config.DefaultConfigVersion, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default engine settings.")
		}
		settings = &defaults
	}
	log.Info().Msg("Engine settings loaded successfully.")

	// --- 2. Collaborator Initialization (with Safety Switch) ---
	strategy := config.DefaultStrategySettings

	var priceOracle oracle.PriceOracle
	var market lending.PositionAccessor
	var accountant issuance.Accountant
	registry := exchange.NewRegistry()

	if config.Mode == "live" {
		log.Fatal().Msg("FLM_MODE=live requires real lending, oracle and exchange adapters, which are not configured in this build. Set FLM_MODE=paper to run.")
	} else {
		log.Warn().Msg("Initializing FLM in PAPER mode. All trades and lending operations are simulated in process.")

		paperOracle := oracle.NewPaperOracle()
		paperOracle.SetPrice(strategy.CollateralAsset, config.PaperCollateralPrice)
		paperOracle.SetPrice(strategy.BorrowAsset, config.PaperBorrowPrice)
		priceOracle = paperOracle

		paperMarket := lending.NewPaperMarket(config.PaperCollateralFactor, config.PaperLiquidationThreshold)
		if err := paperMarket.Supply(strategy.CollateralAsset, config.PaperInitialCollateral); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed paper lending market")
		}
		market = paperMarket

		accountant = issuance.NewPaperAccountant(config.PaperInitialSupply)

		decimals := map[string]uint8{
			strategy.CollateralAsset: strategy.CollateralDecimals,
			strategy.BorrowAsset:     strategy.BorrowDecimals,
		}
		adapter := exchange.NewPaperAdapter("paper", priceOracle, decimals, config.PaperTradeHaircut)
		if err := registry.Add("paper", config.DefaultExchangeSettings, adapter); err != nil {
			log.Fatal().Err(err).Msg("Failed to register paper exchange")
		}
	}

	// --- 3. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating engine instance with dependency injection...")

	engineConfig := engine.Config{
		Strategy:    strategy,
		Methodology: settings.Methodology,
		Execution:   settings.Execution,
		Incentive:   settings.Incentive,
		Lending:     market,
		Oracle:      priceOracle,
		Issuance:    accountant,
		Registry:    registry,
		Principals: engine.Principals{
			Operator:      config.Operator,
			Methodologist: config.Methodologist,
		},
		AllowedTraders: config.AllowedTraders,
		AnyoneTrade:    config.AnyoneTrade,
		Recorder:       state.NewStore(),
	}

	eng, err := engine.New(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	// Restore persisted TWAP and cooldown state from a previous run.
	if persisted, err := state.LoadEngineState(); err != nil {
		log.Warn().Err(err).Msg("No persisted engine state found, starting fresh")
	} else {
		eng.RestoreState(persisted.TwapLeverageRatio, persisted.GlobalLastTrade, persisted.OverrideNoRebalance, persisted.RewardBalance)
		log.Info().
			Str("twapLeverageRatio", persisted.TwapLeverageRatio.String()).
			Time("globalLastTrade", persisted.GlobalLastTrade).
			Msg("Restored persisted engine state")
	}

	log.Info().Msg("Engine instance created successfully")

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, eng)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting FLM web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Keeper Main Loop ---
	keeperInstance, err := keeper.New(keeper.Config{
		Engine: eng,
		Caller: config.KeeperCaller,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper instance")
	}

	log.Info().Str("interval", config.KeeperInterval.String()).Msg("Starting keeper main loop")

	ctx := context.Background()

	// Start the keeper loop (this will run indefinitely)
	keeperInstance.RunLoop(ctx, config.KeeperInterval)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
