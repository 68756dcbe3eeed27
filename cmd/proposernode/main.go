// Command proposernode runs a single-node demonstration of the block
// proposer and transaction pool: generate or load a validator key, open a
// chain data directory, and propose one block per tick from a loop that
// stands in for the BFT round engine (network channels come from
// proposer/localnet).
//
// There is no real BFT voting engine or network transport here — wiring
// one up is out of scope. This binary only proves the Factory/Proposer/
// Pool/Tracker/Chain collaborators assemble and run end to end.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainapi/localchain"
	"github.com/tolelom/bftproposer/config"
	"github.com/tolelom/bftproposer/crypto"
	"github.com/tolelom/bftproposer/events"
	"github.com/tolelom/bftproposer/offline"
	"github.com/tolelom/bftproposer/proposer"
	"github.com/tolelom/bftproposer/proposer/localnet"
	"github.com/tolelom/bftproposer/storage"
	"github.com/tolelom/bftproposer/txpool"
	"github.com/tolelom/bftproposer/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	flag.Parse()

	password := os.Getenv("BFTPROPOSER_PASSWORD")
	if password == "" {
		log.Println("WARNING: BFTPROPOSER_PASSWORD not set — keystore will use an empty password")
	}

	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator id): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	localAcct, err := block.AccountIDFromHex(privKey.Public().Hex())
	if err != nil {
		log.Fatalf("derive local account: %v", err)
	}

	validators, err := parseValidators(cfg.Validators)
	if err != nil {
		log.Fatalf("validators: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	genesis := config.CreateGenesisBlock(privKey, uint64(time.Now().Unix()))
	chain, err := localchain.Open(db, validators, genesis)
	if err != nil {
		log.Fatalf("open chain: %v", err)
	}
	tipHash, tipHeight := chain.Tip()
	log.Printf("Chain opened at tip %s (height %d)", tipHash, tipHeight)

	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventBlockProposed, func(e events.Event) {
		log.Printf("[event] %s height=%d", e.Type, e.BlockHeight)
	})

	pool := txpool.New(chain, txpool.Options{Capacity: 64 * 1024 * 1024})
	tracker := offline.New()
	net := localnet.New(8)
	factory := proposer.NewFactory(chain, pool, tracker, net, proposer.DefaultOptions())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runLoop(factory, privKey, chain, emitter, cfg.ProposeTimeout, done)
	}()
	log.Printf("Proposing (validator: %s)", localAcct.Hex())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")
	close(done)
	wg.Wait()
	log.Println("Shutdown complete.")
}

// runLoop stands in for the BFT round engine: each tick it asks Factory to
// assemble a Proposer snapshot for the current tip, builds and signs a
// candidate, re-checks it with the chain's EvaluateBlock (not the full
// Proposer.Evaluate path a peer would run), and commits it once accepted.
// Real voting and peer broadcast are out of scope (see proposer.Network):
// this node proposes every round itself, whatever validator set the
// config lists.
func runLoop(factory *proposer.Factory, priv crypto.PrivateKey, chain *localchain.Chain, emitter *events.Emitter, tick time.Duration, done <-chan struct{}) {
	if tick <= 0 {
		tick = 2 * time.Second
	}
	var round uint64
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := proposeOnce(factory, priv, chain, emitter, round); err != nil {
				log.Printf("round %d: %v", round, err)
			}
			round++
		}
	}
}

func proposeOnce(factory *proposer.Factory, priv crypto.PrivateKey, chain *localchain.Chain, emitter *events.Emitter, round uint64) error {
	tipHash, tipHeight := chain.Tip()
	tip, err := chain.Block(tipHash)
	if err != nil {
		return fmt.Errorf("load tip: %w", err)
	}

	p, _, _, err := factory.Init(tip.Header, priv)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	candidate, err := p.Propose()
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}

	accepted, err := chain.EvaluateBlock(tipHash, candidate)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if !accepted {
		p.OnRoundEnd(round, false)
		return fmt.Errorf("self-proposed block rejected by chain evaluation")
	}

	if err := chain.Commit(candidate); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.OnRoundEnd(round, true)

	emitter.Emit(events.Event{
		Type:        events.EventBlockProposed,
		BlockHeight: int64(candidate.Header.Number),
		Data:        map[string]any{"extrinsics": len(candidate.Extrinsics)},
	})
	log.Printf("proposed and committed block %d (parent height %d)", candidate.Header.Number, tipHeight)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func parseValidators(hexIDs []string) ([]block.AccountID, error) {
	out := make([]block.AccountID, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := block.AccountIDFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("validator %q: %w", h, err)
		}
		out = append(out, id)
	}
	return out, nil
}
