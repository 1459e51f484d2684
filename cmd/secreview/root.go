package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"secreview/internal/config"
	"secreview/internal/observability"
	"secreview/internal/orchestrator"
)

// flagKeys maps command-line flags onto their configuration keys.
var flagKeys = map[string]string{
	"output":         "scan.output_dir",
	"project":        "scan.project_name",
	"depth":          "scan.max_depth",
	"timeout":        "scan.tool_timeout",
	"concurrency":    "scan.concurrency",
	"fail-on":        "scan.fail_on",
	"keep-artifacts": "scan.keep_artifacts",
	"disable":        "tools.disabled",
	"semgrep-config": "tools.semgrep_config",
	"log-level":      "logger.level",
	"log-format":     "logger.format",
}

// app holds what every subcommand shares once PersistentPreRunE has run.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	// orchOpts are extra orchestrator options, used by tests to swap the
	// process runner and filesystem.
	orchOpts []orchestrator.Option
}

func newRootCmd(opts ...orchestrator.Option) *cobra.Command {
	a := &app{orchOpts: opts}

	root := &cobra.Command{
		Use:           "secreview",
		Short:         "secreview runs the applicable static analysis tools on a project and merges their findings.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(a.cfgFile)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			a.cfg = cfg

			observability.Initialize(cfg.Logger, zapcore.AddSync(cmd.ErrOrStderr()))
			a.logger = observability.GetLogger()
			a.logger.Debug("Configuration loaded",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./secreview.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (console, json)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newScanCmd(a), newConfigCmd(a))
	return root
}

// bindFlags binds every known flag of the executing command to viper, so
// an explicitly set flag overrides the file and the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}
