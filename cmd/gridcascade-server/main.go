// Command gridcascade-server serves the cascade risk API over a periodically
// synchronised topology.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/gridcascade/pkg/auth"
	"github.com/dd0wney/gridcascade/pkg/config"
	"github.com/dd0wney/gridcascade/pkg/logging"
	gridtls "github.com/dd0wney/gridcascade/pkg/tls"
)

func main() {
	configPath := flag.String("config", os.Getenv("GRIDCASCADE_CONFIG"), "Path to YAML config file (optional)")
	mintToken := flag.String("mint-token", "", "Print a bearer token for role:subject and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "Lifetime of tokens printed by -mint-token")
	genCert := flag.String("gen-cert", "", "Write a self-signed server.crt/server.key for server.tls.hosts into this directory and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel())
	logging.SetDefaultLogger(logger)

	if *mintToken != "" {
		if err := printToken(cfg.Auth, *mintToken, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *genCert != "" {
		certFile, keyFile := filepath.Join(*genCert, "server.crt"), filepath.Join(*genCert, "server.key")
		if err := gridtls.WriteSelfSigned(cfg.Server.TLS.Hosts, gridtls.DefaultSelfSignedValidity, certFile, keyFile); err != nil {
			fmt.Fprintf(os.Stderr, "generate certificate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(certFile)
		fmt.Println(keyFile)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("gridcascade server starting",
		logging.String("addr", cfg.Server.Addr),
		logging.String("topology_source", cfg.Topology.Source),
		logging.String("archive", cfg.Archive.Kind),
		logging.Bool("auth", cfg.Auth.Enabled),
		logging.Bool("tls", cfg.Server.TLS.Enabled),
	)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited")
}

func printToken(cfg config.AuthConfig, arg string, ttl time.Duration) error {
	role, subject, ok := strings.Cut(arg, ":")
	if !ok {
		return fmt.Errorf("expected role:subject, got %q", arg)
	}
	tokens, err := auth.NewJWTManager(cfg.Secret, cfg.Issuer, ttl)
	if err != nil {
		return err
	}
	tok, err := tokens.GenerateToken(subject, role)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
