package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/glinthq/convgate/agent"
	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/pkg/kv"
	"github.com/glinthq/convgate/rtm"
	"github.com/glinthq/convgate/storage"
	"github.com/glinthq/convgate/toolcache"
	"github.com/glinthq/convgate/tools"
)

func main() {
	log.Println("Starting convgate...")

	dataDir := config.DefaultDataDir()
	_ = os.MkdirAll(dataDir, 0o755)

	// 1. Read env.config (initial boot), then let the process environment win
	envPath := filepath.Join(dataDir, "env.config")
	envConfig := config.ReadEnvConfig(envPath)
	syncEnvToConfig(envPath, envConfig, []string{
		"CONVGATE_APP_ID",
		"CONVGATE_RTM_URL",
		"CONVGATE_DB_PATH",
		"CONVGATE_KV_DIR",
		"CONVGATE_ENDPOINTS",
		"OPENAI_API_KEY",
	})
	for k, v := range envConfig {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}

	appID := config.EnvOr("CONVGATE_APP_ID", "convgate")

	// 2. Init SQLite conversation storage
	store, err := storage.New(config.DefaultDBPath())
	if err != nil {
		log.Fatalf("Storage init failed: %v", err)
	}
	defer store.Close()

	// 3. Init KV store for the tool-response cache.
	// Default: in-memory mode. Set CONVGATE_KV_DIR to enable persistence.
	var kvStore *kv.KV
	if kvDir := os.Getenv("CONVGATE_KV_DIR"); kvDir != "" {
		kvStore, err = kv.Open(kv.Options{
			Dir:           kvDir,
			Compression:   true,
			ValueLogMaxMB: 256,
		})
		if err != nil {
			log.Printf("[WARN] KV store (persistent) init failed: %v (continuing without cache)", err)
		} else {
			log.Printf("[OK] KV store initialized (persistent): %s", kvDir)
		}
	} else {
		kvStore, err = kv.OpenMemory()
		if err != nil {
			log.Printf("[WARN] KV store (memory) init failed: %v (continuing without cache)", err)
		} else {
			log.Printf("[OK] KV store initialized (in-memory)")
		}
	}
	if kvStore != nil {
		defer kvStore.Close()
	}

	var cache *toolcache.Cache
	if kvStore != nil {
		cache = toolcache.New(kvStore, toolcache.DefaultOptions())
		cache.Start()
		defer cache.Stop()
	}

	// 4. Load endpoint definitions
	endpointsPath := config.DefaultEndpointsPath()
	file, err := config.LoadEndpoints(endpointsPath)
	if err != nil {
		log.Fatalf("Endpoints load failed (%s): %v", endpointsPath, err)
	}
	if file.AppID != "" {
		appID = file.AppID
	}
	log.Printf("[OK] loaded %d endpoint(s) from %s", len(file.Endpoints), endpointsPath)

	registry := tools.NewDefaultRegistry()
	sessions := agent.NewSessionRegistry(file.Endpoints, registry, nil)

	// 5. Connect the RTM transport
	client, err := rtm.Dial(config.DefaultRTMURL(), appID)
	if err != nil {
		log.Fatalf("RTM dial failed: %v", err)
	}
	defer client.Close()

	// 6. Orchestrator, one subscription per endpoint channel
	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		AppID:     appID,
		Sessions:  sessions,
		Store:     store,
		Cache:     cache,
		Transport: client,
	})
	defer orch.Stop()

	for _, ep := range file.Endpoints {
		if err := orch.Bind(client, ep.Name); err != nil {
			log.Printf("[ERROR] bind endpoint %s: %v", ep.Name, err)
		}
	}

	if stats, err := store.Stats(); err == nil {
		log.Printf("Storage stats: %+v", stats)
	}

	// 7. Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Println("convgate shutting down...")
}

func syncEnvToConfig(path string, env map[string]string, keys []string) {
	changed := false
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if env[k] != v {
				env[k] = v
				changed = true
			}
		}
	}
	if changed {
		_ = config.WriteEnvConfig(path, env)
	}
}
