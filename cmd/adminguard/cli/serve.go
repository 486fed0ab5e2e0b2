package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/consultease/adminguard/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port           int
		host           string
		dev            bool
		bootstrapAdmin string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the adminguard API server",
		Long: `Start the HTTP server that answers login attempts, password changes and
lock status queries for administrator accounts.`,
		Example: `  adminguard serve
  adminguard serve --port 9090
  ADMINGUARD_BOOTSTRAP_PASSWORD='S3cure-Pass!' adminguard serve --bootstrap-admin admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, dev, bootstrapAdmin)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")
	cmd.Flags().StringVar(&bootstrapAdmin, "bootstrap-admin", "",
		"Create this administrator if none exist; password from ADMINGUARD_BOOTSTRAP_PASSWORD")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(cmd *cobra.Command, dev bool, bootstrapAdmin string) error {
	s := loadSettings()
	logger := newLogger(os.Stderr, s, dev)

	store, err := openStore(s)
	if err != nil {
		return fmt.Errorf("init admin store: %w", err)
	}
	defer store.Close()
	logger.Info("admin store initialized", "driver", store.Driver())

	authSvc := newAuthService(store, s, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bootstrapAdmin != "" {
		password := os.Getenv("ADMINGUARD_BOOTSTRAP_PASSWORD")
		if password == "" {
			return fmt.Errorf("--bootstrap-admin requires ADMINGUARD_BOOTSTRAP_PASSWORD")
		}
		if _, err := authSvc.EnsureDefaultAdmin(ctx, bootstrapAdmin, password); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	hasAdmin, err := store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: adminguard admin create <username>")
	}

	srvCfg := s.serverConfig()
	srv := server.New(srvCfg, authSvc, logger)

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	out := cmd.OutOrStdout()
	policy := s.lockoutPolicy()
	fmt.Fprintf(out, "→ adminguard %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(out, "→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(out, "→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(out, "→ Lockout:    %d failures, %s\n", policy.Threshold, policy.Duration)
	fmt.Fprintln(out)

	return srv.ListenAndServe(ctx)
}
