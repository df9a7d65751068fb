package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/spf13/cobra"
)

func newChannelsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List voice channels, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := e.api.Channels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no channels yet")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, ch := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ch.ID, ch.Name, ch.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a channel",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ch, err := e.api.CreateChannel(cmd.Context(), args[0])
				if err != nil {
					return loginAgain(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", ch.ID, ch.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a channel you created",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := e.api.DeleteChannel(cmd.Context(), domain.ChannelID(args[0])); err != nil {
					return loginAgain(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newMembersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "members ID",
		Short: "Show who is in a channel right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := e.api.Members(cmd.Context(), domain.ChannelID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "nobody is here")
				return nil
			}
			for _, u := range users {
				fmt.Fprintf(out, "%s\t%s\n", u.ID, u.Username)
			}
			return nil
		},
	}
}
