// Package main provides the zone-signer binary: it reads an unsigned zone
// file, signs it, and writes the signed zone back out.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/config"
	"github.com/piwi3910/zonesign/pkg/dnssec"
	"github.com/piwi3910/zonesign/pkg/zone"
)

const version = "0.1.0-dev"

// Package-level errors.
var (
	ErrNoZoneFile = errors.New("no zone file given")
	ErrNoKey      = errors.New("no signing key given and key generation disabled")
)

type flags struct {
	configFile string
	zoneFile   string
	origin     string
	keyBase    string
	generate   bool
	outFile    string
	validity   time.Duration
	nsecTTL    uint
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.configFile, "config", "", "Path to YAML configuration file")
	flag.StringVar(&f.zoneFile, "zone", "", "Path to the unsigned zone file")
	flag.StringVar(&f.origin, "origin", "", "Zone origin (defaults to the config value)")
	flag.StringVar(&f.keyBase, "key", "",
		"Key file base name; <base>.key and <base>.private are loaded")
	flag.BoolVar(&f.generate, "generate", false,
		"Generate a fresh signing key instead of loading one")
	flag.StringVar(&f.outFile, "out", "", "Output file for the signed zone (default stdout)")
	flag.DurationVar(&f.validity, "validity", 0,
		"Signature validity (overrides the config value when positive)")
	flag.UintVar(&f.nsecTTL, "nsec-ttl", 0,
		"TTL for generated NSEC records (overrides the config value when positive)")
	flag.Parse()

	return f
}

func main() {
	f := parseFlags()

	log.Printf("zone-signer v%s", version)

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatal(err)
	}

	key, err := loadKey(f, cfg)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}

	signed, err := signZoneFile(cfg, key)
	if err != nil {
		log.Fatalf("Signing failed: %v", err)
	}

	if err := writeSignedZone(signed, cfg.Zone.OutputFile); err != nil {
		log.Fatalf("Failed to write signed zone: %v", err)
	}

	log.Printf("Signed zone written: %d records", signed.Len())
}

// loadConfig merges the config file with command-line overrides.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.LoadFromFileOrDefault(f.configFile)
	if err != nil {
		return nil, err
	}

	if f.zoneFile != "" {
		cfg.Zone.File = f.zoneFile
	}
	if f.origin != "" {
		cfg.Zone.Origin = f.origin
	}
	if f.outFile != "" {
		cfg.Zone.OutputFile = f.outFile
	}
	if f.validity > 0 {
		cfg.Signing.Validity = f.validity
	}
	if f.nsecTTL > 0 {
		cfg.Signing.NSECTTL = uint32(f.nsecTTL) //nolint:gosec // flag-bounded
	}

	if cfg.Zone.File == "" {
		return nil, ErrNoZoneFile
	}

	return cfg, nil
}

// loadKey loads the key pair named by -key, or generates a fresh one.
func loadKey(f *flags, cfg *config.Config) (*dnssec.SoftKey, error) {
	if f.keyBase != "" {
		return dnssec.ReadKeyFiles(f.keyBase+".key", f.keyBase+".private")
	}
	if cfg.Keys.PublicFile != "" && cfg.Keys.PrivateFile != "" {
		return dnssec.ReadKeyFiles(cfg.Keys.PublicFile, cfg.Keys.PrivateFile)
	}

	if !f.generate {
		return nil, ErrNoKey
	}

	algorithm, ok := dns.StringToAlgorithm[cfg.Keys.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidAlgorithm, cfg.Keys.Algorithm)
	}

	log.Printf("Generating %s zone signing key for %s", cfg.Keys.Algorithm, cfg.Zone.Origin)

	return dnssec.GenerateKey(cfg.Zone.Origin, 256, algorithm, cfg.Keys.Bits, cfg.Keys.TTL)
}

// signZoneFile parses the unsigned zone and runs the whole-zone signing.
func signZoneFile(cfg *config.Config, key dnssec.SigningKey) (*zone.SortedRecords, error) {
	file, err := os.Open(cfg.Zone.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open zone file: %w", err)
	}
	defer file.Close()

	rrs, err := zone.ParseZone(file, cfg.Zone.Origin, cfg.Zone.File)
	if err != nil {
		return nil, err
	}
	log.Printf("Parsed %d records from %s", len(rrs), cfg.Zone.File)

	now := time.Now()

	return dnssec.SignZone(rrs, key, dnssec.SignConfig{
		Expiration: zone.UnixTimeSerial(now.Add(cfg.Signing.Validity)),
		Inception:  zone.UnixTimeSerial(now.Add(-cfg.Signing.InceptionSkew)),
		DNSKEYTTL:  cfg.Keys.TTL,
		NSECTTL:    cfg.Signing.NSECTTL,
	})
}

// writeSignedZone writes the signed zone to the output file, or stdout when
// none is configured.
func writeSignedZone(signed *zone.SortedRecords, outFile string) error {
	if outFile == "" {
		return signed.WriteTo(os.Stdout)
	}

	file, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return signed.WriteTo(file)
}
