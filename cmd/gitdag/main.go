package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systemshift/gitdag/internal/config"
	"github.com/systemshift/gitdag/internal/dag"
	"github.com/systemshift/gitdag/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand. Empty values fall back to
// the config file.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

// env is what a command needs once flags and config are resolved. The
// caller must defer env.close().
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	repo   *dag.Repository
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func (g *globalFlags) newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	repo, err := dag.OpenRepository(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &env{cfg: cfg, logger: logger, repo: repo}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

// lock takes the repository lock, waiting at most lock_timeout for another
// process to release it. The returned function releases the lock.
func (e *env) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LockTimeout.Duration)
	defer cancel()
	unlock, err := e.repo.Lock(ctx)
	if err != nil {
		return nil, err
	}
	return func() { releaseLock(e.logger, unlock) }, nil
}

func releaseLock(logger *zap.Logger, unlock func() error) {
	if err := unlock(); err != nil {
		logger.Warn("unlock repository", zap.Error(err))
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:          "gitdag",
		Short:        "Content-addressed store for git objects",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultFileName, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data", "", "Repository root (contains .gitdag/)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level [debug,info,warn,error]")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configCmd.AddCommand(newConfigInitCmd(g))
	configCmd.AddCommand(newConfigShowCmd(g))

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newImportCmd(g))
	rootCmd.AddCommand(newFetchCmd(g))
	rootCmd.AddCommand(newLinksCmd(g))
	rootCmd.AddCommand(newWalkCmd(g))
	rootCmd.AddCommand(newRefsCmd(g))
	rootCmd.AddCommand(newRefLogCmd(g))
	rootCmd.AddCommand(newPublishCmd(g))
	rootCmd.AddCommand(newMountCmd(g))
	return rootCmd
}
