package cli

import (
	"github.com/spf13/cobra"

	"github.com/Aleph-Alpha/vecmigrate/v1/config"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
}

// apply lets flags win over the loaded configuration.
func (f *rootFlags) apply(cfg *config.Config) {
	if f.logLevel != "" {
		cfg.Logger.Level = f.logLevel
	}
}

// NewRootCmd creates the root command of the vecmigrate CLI.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "vecmigrate",
		Short:         "Load, query and migrate vector collections",
		Long:          "vecmigrate creates vector collections, bulk loads records, runs sample queries and migrates records between collections.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the log level (debug, info, warning, error)")

	cmd.AddCommand(
		newBootstrapCmd(flags),
		newMigrateCmd(flags),
		newQueryCmd(flags),
		newGenerateCmd(flags),
		newDemoCmd(flags),
		newLoadCmd(flags),
		newExportCmd(flags),
		newRetryCmd(flags),
	)
	return cmd
}
