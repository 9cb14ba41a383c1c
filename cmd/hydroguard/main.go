// Command hydroguard офлайн-инструменты: оценка выгрузок CSV и просмотр весов модели.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hydroguard/internal/config"
	"hydroguard/internal/logging"
	"hydroguard/internal/model"
)

// options общие флаги команд
type options struct {
	configPath string
	weights    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "hydroguard",
		Short:         "Offline anomaly scoring for greenhouse sensor data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("HYDROGUARD_CONFIG"), "Path to the configuration file")
	flags.StringVar(&opts.weights, "weights", "", "Model weights: file path or s3://bucket/key (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(newScoreCmd(opts), newInspectCmd(opts))
	return root
}

// load конфигурация с учетом флагов, логгер и хранилище модели
func (o *options) load() (*config.Config, *zap.Logger, *model.Store, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if o.weights != "" {
		cfg.Model.Weights = o.weights
	}

	logCfg := cfg.Logging
	logCfg.Level = o.logLevel
	logCfg.Format = "console"
	logCfg.File = ""
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	source, err := model.ParseSource(cfg.Model.Weights, cfg.Model.AWSRegion)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, model.NewStore(source, true, logger), nil
}
