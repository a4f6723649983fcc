package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drinkius/gearbot/params"
	"github.com/drinkius/gearbot/pkg/api"
	"github.com/drinkius/gearbot/pkg/bot"
	"github.com/drinkius/gearbot/pkg/crypto"
	"github.com/drinkius/gearbot/pkg/gear"
	"github.com/drinkius/gearbot/pkg/p2p"
	"github.com/drinkius/gearbot/pkg/storage"
	"github.com/drinkius/gearbot/pkg/util"
)

// Devnet defaults. A production deployment points these at real contracts via
// env; the sim manager only backs the devnet wiring below.
var (
	devManager = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	devQuote   = common.HexToAddress("0x00000000000000000000000000000000000000C0") // USDC-alike, 6 decimals
	devWETH    = common.HexToAddress("0x00000000000000000000000000000000000000E0")
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(filepath.Join(cfg.Node.DataDir, cfg.Node.LogFile))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "data_dir", cfg.Node.DataDir)

	// ---- Bot identity ----
	// The bot key identifies this node toward the permission registry. A fresh
	// key is generated when none is configured (devnet).
	var signer *crypto.Signer
	if cfg.Node.BotKeyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(cfg.Node.BotKeyHex)
	} else {
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		sugar.Fatalw("bot_key_failed", "err", err)
	}
	sugar.Infow("bot_identity", "address", signer.Address().Hex())

	// ---- Engine ----
	quote := devQuote
	if cfg.Engine.QuoteToken != "" {
		quote = common.HexToAddress(cfg.Engine.QuoteToken)
	}
	engine := bot.NewEngine(bot.Config{
		QuoteToken:    quote,
		QuoteDecimals: uint8(cfg.Engine.QuoteDecimals),
		FeeTier:       cfg.Engine.FeeTier,
		SwapDeadline:  cfg.Engine.SwapDeadline,
		Domain: crypto.EIP712Domain{
			Name:              cfg.Engine.DomainName,
			Version:           cfg.Engine.DomainVersion,
			ChainID:           big.NewInt(cfg.Engine.ChainID),
			VerifyingContract: devManager,
		},
	})
	engine.SetLogger(sugar)

	// ---- Durable store ----
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "orders"))
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err)
	}
	defer store.Close()
	engine.SetStore(store)

	// ---- Credit manager (devnet sim) ----
	// TODO: on-chain CreditManager adapter once the RPC bindings land.
	sim := gear.NewSimManager()
	// 1 quote unit (1e6) buys 5e14 wei of the output asset, i.e. 2000 quote/unit.
	sim.SetRate(quote, devWETH, big.NewInt(500_000_000), big.NewInt(1))
	sim.SetRate(devWETH, quote, big.NewInt(1), big.NewInt(500_000_000))
	engine.RegisterManager(devManager, sim)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Lifecycle fan-out: REST/WS hub + journal (+ gossip) ----
	apiServer := api.NewServer(engine, gear.AllowAllPermissions{}, signer.Address())

	journal, err := storage.NewJournal(filepath.Join(cfg.Node.DataDir, "events.jsonl"))
	if err != nil {
		sugar.Fatalw("journal_open_failed", "err", err)
	}
	defer journal.Close()

	emitters := bot.FanoutEmitter{apiServer, journal}

	if cfg.Gossip.Enabled {
		gsp, err := p2p.NewGossip(ctx, p2p.Config{
			ListenAddr: cfg.Gossip.ListenAddr,
			Bootstrap:  cfg.Gossip.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("gossip_init_failed", "err", err)
		}
		defer gsp.Close()
		gsp.SetHandler(func(ev bot.Event) {
			sugar.Infow("gossip_event", "type", ev.Type, "attributes", ev.Attributes)
		})
		emitters = append(emitters, gsp)
		sugar.Infow("gossip_started", "listen", cfg.Gossip.ListenAddr)
	}
	engine.SetEmitter(emitters)

	// ---- API server ----
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.ListenAddr)
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"quote_token", quote.Hex(),
		"quote_decimals", cfg.Engine.QuoteDecimals,
		"fee_tier", cfg.Engine.FeeTier,
		"chain_id", cfg.Engine.ChainID)

	<-ctx.Done()
	sugar.Info("shutting_down")
}
