// Package main provides the signer-api binary: an HTTP service that signs
// posted zones with a server-held key.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/api"
	"github.com/piwi3910/zonesign/pkg/config"
	"github.com/piwi3910/zonesign/pkg/dnssec"
)

const version = "0.1.0-dev"

func main() {
	var (
		configFile string
		listenAddr string
		keyBase    string
	)
	flag.StringVar(&configFile, "config", "", "Path to YAML configuration file")
	flag.StringVar(&listenAddr, "listen", "", "API listen address (overrides the config value)")
	flag.StringVar(&keyBase, "key", "",
		"Key file base name; <base>.key and <base>.private are loaded")
	flag.Parse()

	log.Printf("signer-api v%s", version)

	cfg, err := config.LoadFromFileOrDefault(configFile)
	if err != nil {
		log.Fatal(err)
	}
	if listenAddr != "" {
		cfg.API.ListenAddress = listenAddr
	}

	key, err := loadKey(keyBase, cfg)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}

	server := api.NewServer(cfg, key)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server error: %v", err)
		}
	}()

	waitAndShutdown(server, cfg)
}

// loadKey loads the configured key pair, or generates an ephemeral one so
// the service can come up without key files in development.
func loadKey(keyBase string, cfg *config.Config) (*dnssec.SoftKey, error) {
	if keyBase != "" {
		return dnssec.ReadKeyFiles(keyBase+".key", keyBase+".private")
	}
	if cfg.Keys.PublicFile != "" && cfg.Keys.PrivateFile != "" {
		return dnssec.ReadKeyFiles(cfg.Keys.PublicFile, cfg.Keys.PrivateFile)
	}

	owner := cfg.Zone.Origin
	if owner == "" {
		owner = "."
	}
	algorithm, ok := dns.StringToAlgorithm[cfg.Keys.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidAlgorithm, cfg.Keys.Algorithm)
	}
	log.Printf("No key files configured, generating ephemeral %s key", cfg.Keys.Algorithm)

	return dnssec.GenerateKey(owner, 256, algorithm, cfg.Keys.Bits, cfg.Keys.TTL)
}

// waitAndShutdown waits for a shutdown signal and stops the server.
func waitAndShutdown(server *api.Server, cfg *config.Config) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}
