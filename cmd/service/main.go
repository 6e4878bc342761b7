package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "authgate-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	users, err := seedUsers(cfg.Environment)
	if err != nil {
		log.Fatalf("seed users: %s", err)
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			Users:                   users,
			VersionInfo:             versionInfo,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	// go to sleep 🥱
	server.GracefulShutdown()
}

// seedUsers builds the fixed user set. The admin credentials come from
// env vars in production; development falls back to well known local
// accounts so the service runs out of the box.
func seedUsers(environment string) ([]auth.User, error) {
	adminUsername := os.Getenv("AUTHGATE_ADMIN_USERNAME")
	adminPasswordHash := os.Getenv("AUTHGATE_ADMIN_PASSWORD_HASH")
	if adminUsername == "" || adminPasswordHash == "" {
		if environment == "production" {
			return nil, fmt.Errorf("admin credentials not set, use AUTHGATE_ADMIN_USERNAME and AUTHGATE_ADMIN_PASSWORD_HASH")
		}
		log.Warnln("admin credentials not set, using development defaults")
		adminUsername = "admin"
		devHash, err := pkg.HashPassword("admin_pass")
		if err != nil {
			return nil, fmt.Errorf("hash dev admin password: %w", err)
		}
		adminPasswordHash = devHash
	}

	userPasswordHash, err := pkg.HashPassword("password1")
	if err != nil {
		return nil, fmt.Errorf("hash user password: %w", err)
	}

	return []auth.User{
		{
			ID:           1,
			Username:     "user1",
			Role:         auth.RoleUser,
			PasswordHash: userPasswordHash,
		},
		{
			ID:           2,
			Username:     adminUsername,
			Role:         auth.RoleAdmin,
			PasswordHash: adminPasswordHash,
		},
	}, nil
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
