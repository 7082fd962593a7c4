// attestd serves the VM instance attestation API over a unix domain
// socket. It wraps a fixture-backed platform RoT mock with the instance
// RoT's digest chaining and answers challenger commands until terminated.

package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/gobeyondidentity/attestd/internal/fixture"
	"github.com/gobeyondidentity/attestd/internal/version"
	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/instance"
	"github.com/gobeyondidentity/attestd/pkg/transport"
)

var (
	socketPath = flag.String("socket", "", "Path for the unix domain socket (required; must not already exist)")
	fixtureDir = flag.String("fixture-dir", "", "Directory holding fixture files with canonical names")
	certList   = flag.String("certlist", "", "Path to leaf-first PEM cert list for the platform RoT")
	keyPath    = flag.String("key", "", "Path to PKCS#8 PEM ed25519 signing key for the platform RoT")
	logPath    = flag.String("log", "", "Path to CBOR measurement log for the platform RoT")

	imageVersion = flag.String("image-version", "dev", "Instance image version recorded in the instance measurement log")
	readTimeout  = flag.Duration("read-timeout", transport.DefaultReadTimeout, "Per-connection deadline for receiving a command")

	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("attestd version %s\n", version.String())
		os.Exit(0)
	}

	if *socketPath == "" {
		log.Fatal("[attestd] -socket is required")
	}

	log.Printf("[attestd] attestd %s starting", version.String())

	platform, err := loadPlatformMock()
	if err != nil {
		log.Fatalf("[attestd] failed to load platform RoT: %v", err)
	}

	instanceID := uuid.New()
	rootfs := sha256.Sum256([]byte(*imageVersion))
	mock, err := instance.NewMock(platform, instance.NewInstanceLog(instanceID, rootfs[:], *imageVersion))
	if err != nil {
		log.Fatalf("[attestd] failed to build instance RoT: %v", err)
	}
	log.Printf("[attestd] instance %s ready", instanceID)

	srv, err := transport.NewServer(*socketPath, mock)
	if err != nil {
		log.Fatalf("[attestd] %v", err)
	}
	srv.ReadTimeout = *readTimeout

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[attestd] received %v, shutting down", sig)
		srv.Close()
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("[attestd] server failed: %v", err)
	}
	log.Printf("[attestd] shutdown complete")
}

// loadPlatformMock builds the platform RoT mock from explicit fixture
// paths, from a fixture directory, or, for development, from a freshly
// generated in-memory fixture.
func loadPlatformMock() (*dice.Mock, error) {
	if *certList != "" || *keyPath != "" || *logPath != "" {
		if *certList == "" || *keyPath == "" || *logPath == "" {
			return nil, fmt.Errorf("-certlist, -key, and -log must be given together")
		}
		return dice.LoadMock(*certList, *logPath, *keyPath)
	}

	if *fixtureDir != "" {
		return dice.LoadMock(
			filepath.Join(*fixtureDir, fixture.CertListFile),
			filepath.Join(*fixtureDir, fixture.LogFile),
			filepath.Join(*fixtureDir, fixture.KeyFile),
		)
	}

	log.Printf("[attestd] no fixture given, generating a development fixture; challengers must use --self-signed")
	fix, err := fixture.Generate()
	if err != nil {
		return nil, err
	}
	return fix.Mock()
}
