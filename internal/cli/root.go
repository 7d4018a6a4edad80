package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivepush/internal/config"
	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
	"github.com/dl-alexandre/drivepush/pkg/version"
)

var (
	globalFlags types.GlobalFlags
	appConfig   *config.Config
	logger      logging.Logger = logging.NewNoOpLogger()
)

var rootCmd = &cobra.Command{
	Use:   "drivepush",
	Short: "Push a local folder to Google Drive",
	Long: `drivepush mirrors a local directory tree into a folder on Google Drive.

It creates missing folders, uploads new files and replaces remote files that
are older than their local copy. Nothing is ever deleted on either side.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.Config, cmd.Flags())
		if err != nil {
			return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
		}
		appConfig = cfg

		logConfig := logging.DefaultLogConfig()
		logConfig.Level = logging.ParseLevel(cfg.LogLevel)
		logConfig.OutputFile = cfg.LogFile
		logConfig.EnableConsole = !globalFlags.Quiet
		if globalFlags.Verbose || globalFlags.Debug {
			logConfig.Level = logging.DEBUG
			logConfig.EnableConsole = true
		}

		logger, err = logging.NewLogger(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version, commit and build information of drivepush",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	pf.String("token-file", "", "Path to the stored credential (default ~/.config/drivepush/token.json)")
	pf.String("client-secret", "", "Path to the OAuth client secret JSON (default ~/.config/drivepush/credentials.json)")
	pf.String("token-store", config.TokenStoreFile, "Credential storage backend (file, keyring)")
	pf.String("log-file", "", "Path to a JSON log file")
	pf.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress progress output and the summary")
	pf.BoolVar(&globalFlags.Debug, "debug", false, "Enable debug output")
	pf.BoolVar(&globalFlags.NoBrowser, "no-browser", false, "Never open a browser; paste the authorization code instead")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	defer func() {
		_ = logger.Close()
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return utils.ExitSuccess
	}

	logger.Debug("Command failed", logging.F("error", err.Error()))
	NewOutputWriter(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), globalFlags.Quiet).WriteError(err)
	return utils.ExitCodeFor(err)
}
