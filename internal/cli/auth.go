package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/VoiceMesh/internal/client"
	"github.com/spf13/cobra"
)

// prompt reads one line from in after printing label.
func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func passwordFrom(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	return prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
}

func newSignUpCmd(e *env) *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			acct, err := e.api.SignUp(cmd.Context(), email, pw, username)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s created for %s, now run `voicectl login`\n", acct.Username, acct.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			res, err := e.api.Login(cmd.Context(), email, pw)
			if errors.Is(err, client.ErrUnauthorized) {
				return errors.New("wrong email or password")
			}
			if err != nil {
				return err
			}
			if err := e.tokens.Save(res.Token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			e.token = res.Token
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", res.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.token != "" {
				if err := e.api.Logout(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
					return err
				}
			}
			if err := e.tokens.Remove(); err != nil {
				return err
			}
			e.token = ""
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoAmICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := e.account(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> id=%s\n", acct.Username, acct.Email, acct.ID)
			return nil
		},
	}
}
