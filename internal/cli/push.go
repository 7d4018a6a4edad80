package cli

import (
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivepush/internal/api"
	"github.com/dl-alexandre/drivepush/internal/auth"
	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/logging"
	pushsync "github.com/dl-alexandre/drivepush/internal/sync"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

var pushCmd = &cobra.Command{
	Use:   "push [local-folder]",
	Short: "Push a local folder to Google Drive",
	Long: `Push walks the local folder and mirrors it into a Drive folder of the same
name (or --remote-folder). Missing folders are created, new files uploaded and
files whose local copy is newer than the Drive copy by more than a second are
replaced in place. Remote files are never deleted.

The local folder comes from the argument or the local_root setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.String("remote-folder", "", "Drive folder to push into (default: name of the local folder)")
	f.Bool("dry-run", false, "Report what would be done without writing to Drive")
	f.StringSlice("exclude", nil, "Glob patterns of paths to skip (repeatable)")
	f.Int("chunk-size", utils.UploadChunkSize, "Upload chunk size in bytes")
	f.Int("max-retries", utils.DefaultMaxRetries, "Retries for rate-limited or failed requests")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if len(args) == 1 {
		cfg.LocalRoot = args[0]
	}
	out := NewOutputWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), globalFlags.Quiet)

	// Nothing remote happens until the local folder is known to exist.
	root, err := pushsync.CheckLocalRoot(cfg.LocalRoot)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr := newAuthManager(cmd)
	if _, err := mgr.Token(ctx); err != nil {
		return err
	}
	out.Log("Successfully authenticated with Google Drive.")

	svc, err := auth.NewDriveService(ctx, mgr, auth.ServiceOptions{RequestTimeout: cfg.RequestTimeout})
	if err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInternalError, "failed to create Drive client").Build(), err)
	}
	client := api.NewClient(svc, cfg.MaxRetries, cfg.RetryBaseDelay, logger)

	logger.Debug("Push configuration",
		logging.F("localRoot", root),
		logging.F("remoteFolder", cfg.RemoteFolderName()),
		logging.F("chunkSize", cfg.ChunkSize),
		logging.F("maxRetries", cfg.MaxRetries),
		logging.F("exclude", cfg.Exclude),
	)

	engine := pushsync.NewEngine(files.NewManager(client, cfg.ChunkSize), pushsync.Options{
		LocalRoot:    cfg.LocalRoot,
		RemoteFolder: cfg.RemoteFolderName(),
		Exclude:      cfg.Exclude,
		DryRun:       cfg.DryRun,
		Out:          out.Progress(),
		Logger:       logger,
	})

	summary, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	return out.WriteTable(summaryTable{summary: summary})
}
