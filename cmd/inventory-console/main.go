package main

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/target/inventory-console/config"
	"github.com/target/inventory-console/internal/bootstrap"
	"github.com/target/inventory-console/internal/navigation"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger := bootstrap.InitLogger(cfg.Log)

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and persist the session",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and sign in as it",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and revoke the refresh token",
			run:         runLogout,
		},
		"refresh": {
			name:        "refresh",
			description: "Exchange the refresh token for a new token pair",
			run:         runRefresh,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the identity bound to the current session",
			run:         runWhoami,
		},
		"status": {
			name:        "status",
			description: "Show whether a session is active and which roles it carries",
			run:         runStatus,
		},
		"users": {
			name:        "users",
			description: "Administer users (list, get, create, update, delete, role, password)",
			run:         runUsers,
		},
		"serve": {
			name:        "serve",
			description: "Run the local console server",
			run:         runServe,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: inventory-console <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(os.Stdout, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// consoleSession is an opened store plus the services built on it.
type consoleSession struct {
	store    *bootstrap.Store
	services bootstrap.ServiceContainer
	logger   *slog.Logger
}

func openSession(cmdCtx *commandContext, nav navigation.Navigator) (*consoleSession, error) {
	store, err := bootstrap.OpenStore(cmdCtx.Ctx, bootstrap.StoreDeps{
		Config: &cmdCtx.Config,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, err
	}

	if nav == nil {
		nav = navigation.NewLogger(cmdCtx.Logger)
	}
	svcs, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:    &cmdCtx.Config,
		Store:     store.KV,
		Navigator: nav,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("store close failed", "error", closeErr)
		}
		return nil, err
	}

	return &consoleSession{store: store, services: svcs, logger: cmdCtx.Logger}, nil
}

// restore loads the persisted session and waits for the backend to confirm it,
// so the command sees either a validated identity or none at all.
func (s *consoleSession) restore(ctx context.Context) bool {
	if !s.services.Auth.RestoreSession(ctx) {
		return false
	}
	s.services.Auth.Wait()
	return s.services.State.Authenticated()
}

// close waits for background revoke/validation calls, then releases resources.
func (s *consoleSession) close() {
	s.services.Auth.Wait()
	if err := s.services.Close(); err != nil {
		s.logger.Warn("services close failed", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "error", err)
	}
}
