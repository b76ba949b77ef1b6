package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ayusman/binsight/internal/app"
	"github.com/ayusman/binsight/internal/config"
	"github.com/ayusman/binsight/internal/recognize"
	"github.com/ayusman/binsight/internal/server"
	"github.com/ayusman/binsight/internal/store"
)

func main() {
	fmt.Println("binsight - Waste Drop Station")

	// Secrets come from the environment; a .env next to the binary is
	// convenient on dev machines and absent in the field.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".binsight")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	manager, err := config.NewManager(filepath.Join(dataDir, "system_config.json"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := resolvePaths(manager, dataDir)

	st, err := store.New(cfg.Data.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	appCfg := app.Config{
		Manager: manager,
		Store:   st,
	}

	// An API key from the environment overrides the config file without
	// ever being written to disk.
	if key := apiKeyFromEnv(); key != "" && cfg.API.Key == "" {
		appCfg.Recognizer = recognize.NewClient(recognize.ClientConfig{
			APIURL:     cfg.API.URL,
			APIKey:     key,
			Model:      cfg.API.Model,
			MaxRetries: cfg.API.MaxRetries,
			Timeout:    cfg.API.TimeoutDuration(),
		})
	}

	a, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	a.SetEnabled(enabledAtBoot(st))

	srv := server.New(server.Config{App: a, Manager: manager})

	go func() {
		log.Printf("starting server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	a.Stop()
}

// resolvePaths anchors relative storage paths under the station data
// directory and persists the result so every run agrees on locations.
func resolvePaths(m *config.Manager, dataDir string) config.Config {
	cfg := m.Get()
	changed := false

	if !filepath.IsAbs(cfg.Capture.ImageDir) {
		cfg.Capture.ImageDir = filepath.Join(dataDir, cfg.Capture.ImageDir)
		changed = true
	}
	if !filepath.IsAbs(cfg.Data.DatabasePath) {
		cfg.Data.DatabasePath = filepath.Join(dataDir, cfg.Data.DatabasePath)
		changed = true
	}

	if changed {
		if err := m.Update(cfg); err != nil {
			log.Printf("failed to persist resolved paths: %v", err)
		}
	}
	return cfg
}

// enabledAtBoot restores the persisted detection toggle. A first run,
// with nothing stored yet, starts enabled.
func enabledAtBoot(st *store.Store) bool {
	v, err := st.Settings().Get(store.SettingDetectionEnabled)
	if err != nil {
		return true
	}
	return v != "false"
}

func apiKeyFromEnv() string {
	if key := os.Getenv("BINSIGHT_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
