// Package cli implements the voicectl commands.
package cli

import (
	"context"
	"errors"

	"github.com/dkeye/VoiceMesh/internal/client"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errLoginAgain = errors.New("no valid session, run `voicectl login` again")

// env is what every command shares once the persistent flags are parsed.
type env struct {
	v          *viper.Viper
	configFile string

	cfg    *config.ClientConfig
	tokens tokenFile
	token  string
	api    *client.APIClient
}

// NewRootCmd builds the voicectl command tree.
func NewRootCmd() *cobra.Command {
	e := &env{v: config.ClientViper()}
	root := &cobra.Command{
		Use:               "voicectl",
		Short:             "Headless VoiceMesh voice client",
		SilenceUsage:      true,
		PersistentPreRunE: e.load,
	}

	f := root.PersistentFlags()
	f.StringVar(&e.configFile, "config", "", "client config file (default config/client.<CONFIG_ENV>.yaml)")
	f.String("server", "", "relay base URL")
	f.String("token-file", "", "file holding the session token")
	f.String("log-level", "", "debug, info, warn, error")
	bindFlags(e.v, f, map[string]string{
		"server":     "server",
		"token_file": "token-file",
		"log_level":  "log-level",
	})

	root.AddCommand(
		newSignUpCmd(e),
		newLoginCmd(e),
		newLogoutCmd(e),
		newWhoAmICmd(e),
		newChannelsCmd(e),
		newMembersCmd(e),
		newJoinCmd(e),
	)
	return root
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (e *env) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient(e.v, e.configFile)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))
	e.cfg = cfg

	path := cfg.TokenFile
	if path == "" {
		if path, err = defaultTokenPath(); err != nil {
			return err
		}
	}
	e.tokens = tokenFile{path: path}
	if e.token, err = e.tokens.Load(); err != nil {
		return err
	}
	e.api = client.NewAPIClient(cfg.Server, e.token)
	return nil
}

// account returns the signed-in account. A missing or expired session
// asks the user to log in again.
func (e *env) account(ctx context.Context) (*domain.Account, error) {
	if e.token == "" {
		return nil, errLoginAgain
	}
	acct, err := e.api.Session(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		return nil, errLoginAgain
	}
	return acct, err
}

// loginAgain turns an authorization failure into the login hint.
func loginAgain(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return errLoginAgain
	}
	return err
}
