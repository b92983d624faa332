package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nexbridge/swapd/internal/app"
	"github.com/nexbridge/swapd/internal/balance"
	"github.com/nexbridge/swapd/internal/config"
	"github.com/nexbridge/swapd/internal/faucet"
	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/pair"
	"github.com/nexbridge/swapd/internal/quote"
	"github.com/nexbridge/swapd/internal/refdata"
	"github.com/nexbridge/swapd/internal/registry"
	"github.com/nexbridge/swapd/internal/sdk"
	"github.com/nexbridge/swapd/internal/state"
	"github.com/nexbridge/swapd/internal/trade"
	"github.com/nexbridge/swapd/internal/transfers"
	"github.com/nexbridge/swapd/internal/wallet"
	"github.com/nexbridge/swapd/internal/web"
)

// main is the entry point for the swap service.
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
	log.Info().Msg("Swap service starting...")

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

	// Load chain/asset/pool reference data
	store, err := refdata.Load(config.RefDataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reference data")
	}

	// Dial one RPC client per configured chain
	clients := make(map[uint64]*ethclient.Client)
	for _, chain := range store.Chains() {
		client, err := ethclient.Dial(chain.RPCURL)
		if err != nil {
			log.Fatal().Err(err).Str("chain", chain.Name).Msg("Failed to dial RPC endpoint")
		}
		defer client.Close()
		clients[chain.ChainID] = client
		log.Info().Str("chain", chain.Name).Str("endpoint", chain.RPCURL).Msg("RPC connected")
	}

	signer, err := wallet.NewEthSigner(clients, config.SignerPrivateKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize signer")
	}
	evm := sdk.NewEVMClient(clients, nil)

	// --- 2. Component Wiring ---
	pools := registry.New(state.SavePairSnapshot)
	resolver := pair.NewResolver(evm, store, pools)
	quotes := quote.NewEngine(evm)

	// The session is wired after the orchestrator but the settled hook needs
	// it, so the hook closes over the variable.
	var session *app.Session

	orchestrator, err := trade.NewOrchestrator(trade.Config{
		Reader:                 evm,
		Signer:                 signer,
		PoolKey:                evm.PoolKey,
		GasAdjustment:          config.GasLimitAdjustment,
		DefaultSlippagePercent: config.DefaultSlippagePercent,
		OnSettled: func(chainID uint64) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			session.HandleSettled(ctx, chainID)
		},
		Persist: state.RecordTradeAttempt,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create trade orchestrator")
	}

	balances := balance.NewCache(evm, signer.Address(), orchestrator.Busy)

	session, err = app.NewSession(app.Config{
		Resolver:               resolver,
		Quotes:                 quotes,
		Trades:                 orchestrator,
		Balances:               balances,
		RefData:                store,
		DefaultSlippagePercent: config.DefaultSlippagePercent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}

	fct := faucet.NewFaucet(signer, config.FaucetGasLimit, func(chainID uint64) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		balances.Invalidate(ctx, chainID)
	})

	var watcher *transfers.Watcher
	if indexerURL := os.Getenv("SWAPD_TRANSFER_INDEXER_URL"); indexerURL != "" {
		watcher = transfers.NewWatcher(transfers.NewIndexerSource(indexerURL), signer.Address(), state.UpsertTransfer)
	} else {
		log.Warn().Msg("SWAPD_TRANSFER_INDEXER_URL not set, transfer history disabled")
	}

	// --- 3. Background Loops ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go balances.Run(ctx)
	if watcher != nil {
		go watcher.Run(ctx)
	}

	// --- 4. Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, session, pools, watcher, fct)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting swap service API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
