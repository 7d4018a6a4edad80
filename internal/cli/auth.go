package cli

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivepush/internal/auth"
	"github.com/dl-alexandre/drivepush/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored Google credential",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize drivepush and store the credential",
	Long: `Login opens the Google consent page and stores the resulting credential.
Without a browser (--no-browser, SSH sessions or CI) the URL is printed and
the authorization code is pasted back instead.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}

func newAuthManager(cmd *cobra.Command) *auth.Manager {
	cfg := appConfig

	var storage auth.StorageBackend = auth.NewFileStorage()
	if cfg.TokenStore == config.TokenStoreKeyring {
		storage = auth.NewKeyringStorage(auth.ServiceName)
	}

	return auth.NewManager(auth.ManagerOptions{
		TokenKey:         cfg.TokenFile,
		ClientSecretFile: cfg.ClientSecretFile,
		Scopes:           cfg.Scopes,
		Storage:          storage,
		Logger:           logger,
		OpenBrowser:      openBrowser,
		NoBrowser:        globalFlags.NoBrowser,
		In:               cmd.InOrStdin(),
		Out:              cmd.OutOrStdout(),
	})
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), globalFlags.Quiet)
	mgr := newAuthManager(cmd)

	if _, err := mgr.Login(cmd.Context()); err != nil {
		return err
	}

	st, err := mgr.Status()
	if err != nil {
		return err
	}
	out.Log("Successfully authenticated!")
	out.Log("Credential stored in %s (%s)", st.Backend, st.Key)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), false)
	st, err := newAuthManager(cmd).Status()
	if err != nil {
		return err
	}
	return out.WriteTable(statusTable{status: st})
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), globalFlags.Quiet)
	mgr := newAuthManager(cmd)
	if err := mgr.Logout(); err != nil {
		return err
	}
	out.Log("Credential removed from %s.", mgr.Backend())
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
