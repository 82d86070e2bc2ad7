// =============================================================================
// ONLINE BREAKOUT - PLAYER
// =============================================================================
// Runs one side of a match:
// - joins a relay room as host or client and plays over rollback netcode
// - or runs a local sync test to check the simulation is deterministic
// - or watches another process's frame feed (-watch)
//
// USAGE:
//   1. Start the relay:           go run ./cmd/relay
//   2. Create a room and play:    go run ./cmd/breakout -create -role host
//   3. Join from the other side:  go run ./cmd/breakout -room <token> -role client
// =============================================================================
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online-breakout/internal/api"
	"online-breakout/internal/config"
	"online-breakout/internal/feed"
	"online-breakout/internal/game"
	"online-breakout/internal/journal"
	"online-breakout/internal/match"
	"online-breakout/internal/session"
	"online-breakout/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", os.Getenv("BREAKOUT_CONFIG"), "optional TOML config file")
		relayAddr  = flag.String("relay", getEnvWithDefault("RELAY_URL", "http://localhost:3000"), "relay base URL")
		room       = flag.String("room", "", "room token to join")
		create     = flag.Bool("create", false, "create a room on the relay and join it")
		roleName   = flag.String("role", "host", "seat to take: host or client")
		syncTest   = flag.Bool("synctest", false, "run a local determinism check instead of a networked match")
		watch      = flag.Bool("watch", false, "print frames from a running player's feed")
		idle       = flag.Bool("idle", false, "never press anything instead of using the autopilot")
	)
	flag.Parse()

	// Load environment
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	}

	appConfig, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if *watch {
		runWatcher(appConfig.Feed.SocketPath)
		return 0
	}

	role, err := game.ParseRole(*roleName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ONLINE BREAKOUT")
	if *syncTest {
		log.Println("🎮  Sync test")
	} else {
		log.Printf("🎮  Playing as %s", role)
	}
	log.Println("🎮 ================================")

	simCfg := appConfig.Sim
	log.Printf("⚙️  %d TPS, input delay %d, max prediction %d, disconnect after %v",
		simCfg.TickRate, simCfg.InputDelay, simCfg.MaxPrediction, simCfg.DisconnectTimeout)

	debugCfg := appConfig.Debug
	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:       debugCfg.Enabled,
		ListenAddr:    debugCfg.ListenAddr,
		BasicAuthUser: debugCfg.User,
		BasicAuthPass: debugCfg.Pass,
	}); err != nil {
		log.Printf("⚠️ Debug server: %v", err)
	}

	opts := match.Options{
		TickRate: simCfg.TickRate,
		Metrics:  api.PromMetrics{},
	}

	if appConfig.Journal.Path != "" {
		j := journal.New()
		if err := j.Start(appConfig.Journal.Path); err != nil {
			log.Fatalf("❌ Journal: %v", err)
		}
		defer j.Stop()
		opts.Recorder = j
	}

	var publisher *feed.Publisher
	if appConfig.Feed.Enabled {
		publisher = feed.NewPublisher(appConfig.Feed.SocketPath)
		publisher.SetConfig(feed.ConfigMessage{
			TickRate:    simCfg.TickRate,
			FieldWidth:  game.FieldWidth,
			FieldHeight: game.FieldHeight,
			Role:        role.String(),
			Mirrored:    role.Mirrored(),
		})
		if err := publisher.Start(); err != nil {
			log.Printf("❌ Feed: %v", err)
			return 1
		}
		defer publisher.Stop()
		opts.Sink = publisher
	}

	world := game.NewMatch()
	var runner *match.Runner
	var relay *transport.RelayClient

	if *syncTest {
		opts.Input = match.PerTeam{
			autopilotOrIdle(*idle, game.RoleClient),
			autopilotOrIdle(*idle, game.RoleHost),
		}
		sess, err := session.NewBuilderWithConfig(simCfg.Session()).StartSyncTest(world, simCfg.CheckDistance)
		if err != nil {
			log.Printf("❌ Sync test: %v", err)
			return 1
		}
		log.Printf("🔁 Rolling back %d frames every frame", simCfg.CheckDistance)
		runner = match.NewSessionRunner(world, sess, opts)
	} else {
		opts.Input = autopilotOrIdle(*idle, role)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		token := *room
		if *create {
			token, err = transport.CreateRoom(ctx, *relayAddr)
			if err != nil {
				cancel()
				log.Printf("❌ %v", err)
				return 1
			}
			log.Printf("🚪 Created room %s", token)
			log.Printf("   Join with: -room %s -role %s", token, opposite(role))
		}
		if token == "" {
			cancel()
			log.Println("❌ Set -room or -create")
			return 1
		}

		relay, err = transport.DialRelay(ctx, *relayAddr, token, role)
		cancel()
		if err != nil {
			log.Printf("❌ %v", err)
			return 1
		}
		defer relay.Close()

		lobby := session.NewLobby(simCfg.Session(), relay, relay, world)
		runner = match.NewRunner(world, lobby, opts)
		log.Println("⏳ Waiting for the other player...")
	}

	runner.Start()

	// Stats logging goroutine
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if f := runner.Latest(); f != nil {
				log.Printf("📈 Match: state=%s tick=%d confirmed=%d rollbacks=%d time=%ds",
					f.SessionState, f.Tick, f.ConfirmedFrame, f.Rollbacks, f.SecondsLeft)
			}
			if relay != nil {
				received, sent, dropped := relay.Stats()
				api.PromMetrics{}.SetDroppedDatagrams(dropped)
				log.Printf("📡 Relay: received=%d sent=%d dropped=%d", received, sent, dropped)
			}
			if publisher != nil {
				clients, sent, dropped := publisher.Stats()
				log.Printf("📺 Feed: clients=%d sent=%d dropped=%d", clients, sent, dropped)
			}
		}
	}()

	var relayDone <-chan struct{}
	if relay != nil {
		relayDone = relay.Done()
	}

	// Wait for the match to end or a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-runner.Done():
		if err := runner.Err(); err != nil {
			log.Printf("❌ Match failed: %v", err)
			exitCode = 1
		} else {
			// Keep answering the peer briefly so it can confirm our last frames.
			time.Sleep(2 * time.Second)
		}
	case <-relayDone:
		log.Println("⚠️ Relay connection lost")
		exitCode = 1
	case <-quit:
		log.Println("🛑 Shutting down...")
	}

	runner.Stop()
	log.Println("👋 Goodbye!")
	return exitCode
}

func autopilotOrIdle(idle bool, role game.Role) match.InputSource {
	if idle {
		return match.Idle{}
	}
	return match.NewAutoPilot(role)
}

func opposite(role game.Role) game.Role {
	if role == game.RoleHost {
		return game.RoleClient
	}
	return game.RoleHost
}

// runWatcher prints a line per second from another process's frame feed.
func runWatcher(socketPath string) {
	log.Printf("📺 Watching feed at %s", socketPath)

	sub := feed.NewSubscriber(socketPath)
	sub.OnConfig(func(cfg *feed.ConfigMessage) {
		log.Printf("📺 Player %s: %d TPS, field %.0fx%.0f, mirrored=%v",
			cfg.Role, cfg.TickRate, cfg.FieldWidth, cfg.FieldHeight, cfg.Mirrored)
	})
	sub.OnDisconnect(func() {
		log.Println("⚠️ Feed disconnected, retrying...")
	})
	if err := sub.Start(); err != nil {
		log.Fatalf("❌ Feed: %v", err)
	}
	defer sub.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			msg := sub.LatestFrame()
			if msg == nil {
				continue
			}
			f := msg.ToFrame()
			log.Printf("📺 tick=%d state=%s entities=%d time=%ds awaiting=%v",
				f.Tick, f.SessionState, len(f.Entities), f.SecondsLeft, f.AwaitingPeer)
			if f.Over {
				log.Printf("🏁 Result: %+v", f.Result)
			}
		case <-quit:
			return
		}
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
