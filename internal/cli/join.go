package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/adapters/rtc"
	"github.com/dkeye/VoiceMesh/internal/client"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/media"
	"github.com/spf13/cobra"
)

const joinHelp = `commands:
  mute | unmute      stop or resume sending audio
  switch ID          move to another channel
  leave              leave the current channel
  who                list members of the current channel
  peers              show negotiation state per remote
  quit               leave and exit`

func newJoinCmd(e *env) *cobra.Command {
	var loopback bool
	cmd := &cobra.Command{
		Use:   "join ID",
		Short: "Join a voice channel and stay until quit",
		Long:  "Join a voice channel and read commands from stdin.\n\n" + joinHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.join(cmd, domain.ChannelID(args[0]), loopback)
		},
	}
	f := cmd.Flags()
	f.String("source", "", "Ogg/Opus file looped as the microphone (default silence)")
	f.String("playout-dir", "", "directory receiving a live Ogg stream per remote participant")
	f.BoolVar(&loopback, "loopback", false, "gather loopback ICE candidates")
	bindFlags(e.v, f, map[string]string{
		"media.source":     "source",
		"media.playout_dir": "playout-dir",
	})
	return cmd
}

// lockedWriter serializes command output with speaking notifications.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func (e *env) join(cmd *cobra.Command, ch domain.ChannelID, loopback bool) error {
	ctx := cmd.Context()
	acct, err := e.account(ctx)
	if err != nil {
		return err
	}
	self := acct.Participant()

	url, err := e.api.SignalURL()
	if err != nil {
		return err
	}
	sig, err := client.DialSignal(ctx, url, e.token)
	if err != nil {
		return loginAgain(err)
	}
	defer sig.Close()

	api, err := rtc.NewAPI(rtc.APIOptions{IncludeLoopback: loopback})
	if err != nil {
		return err
	}
	factory := rtc.Factory{API: api, Config: rtc.ConfigWithICEServers(e.cfg.ICEServers)}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	sess := client.NewSession(client.SessionOptions{
		Self:   self,
		Signal: sig,
		Media: &media.Capability{
			Source:    e.cfg.Media.Source,
			PlayoutDir: e.cfg.Media.PlayoutDir,
			StreamID:  string(self.ID),
		},
		NewConn:            factory.New,
		ExtensionID:        rtc.AudioLevelExtensionID,
		NegotiationTimeout: e.cfg.NegotiationTimeout,
		MaxRetries:         e.cfg.MaxNegotiationRetries,
		SpeakingInterval:   e.cfg.Speaking.SampleInterval,
		SpeakingThreshold:  e.cfg.Speaking.Threshold,
		OnSpeaking: func(id domain.ParticipantID, speaking bool) {
			if speaking {
				out.Printf("* %s is speaking\n", id)
			} else {
				out.Printf("* %s stopped speaking\n", id)
			}
		},
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	var runErr error
	finished := make(chan struct{})
	go func() {
		runErr = sess.Run(runCtx)
		close(finished)
	}()

	if err := sess.SwitchTo(ctx, ch); err != nil {
		stop()
		<-finished
		return err
	}
	out.Printf("joined %s as %s, type help for commands\n", ch, self.Label())

	e.interact(ctx, cmd.InOrStdin(), out, sess, finished)
	stop()
	<-finished
	if errors.Is(runErr, client.ErrSignalClosed) {
		return errors.New("lost connection to the relay")
	}
	return nil
}

// interact runs stdin commands against sess until quit, EOF or the
// session ends on its own.
func (e *env) interact(ctx context.Context, in io.Reader, out *lockedWriter, sess *client.Session, finished <-chan struct{}) {
	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-finished:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			stop, err := e.command(ctx, strings.Fields(line), out, sess)
			if err != nil {
				out.Printf("error: %v\n", err)
			}
			if stop {
				return
			}
		}
	}
}

func (e *env) command(ctx context.Context, fields []string, out *lockedWriter, sess *client.Session) (stop bool, err error) {
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		out.Printf("%s\n", joinHelp)
	case "mute":
		sess.SetMuted(true)
		out.Printf("muted\n")
	case "unmute":
		sess.SetMuted(false)
		out.Printf("unmuted\n")
	case "switch":
		if len(fields) != 2 {
			return false, errors.New("usage: switch ID")
		}
		if err := sess.SwitchTo(ctx, domain.ChannelID(fields[1])); err != nil {
			return false, err
		}
		out.Printf("switched to %s\n", fields[1])
	case "leave":
		if err := sess.LeaveCurrent(ctx); err != nil {
			return false, err
		}
		out.Printf("left the channel\n")
	case "who":
		view := sess.View()
		if view.Channel == "" {
			out.Printf("not in a channel\n")
			return false, nil
		}
		out.Printf("channel %s:\n", view.Channel)
		for _, m := range view.Members {
			mark := " "
			if sess.IsSpeaking(m.ID) {
				mark = "*"
			}
			out.Printf(" %s %s (%s)\n", mark, m.Label(), m.ID)
		}
	case "peers":
		states, err := sess.PeerStates(ctx)
		if err != nil {
			return false, err
		}
		if len(states) == 0 {
			out.Printf("no peers\n")
			return false, nil
		}
		ids := make([]string, 0, len(states))
		for id := range states {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			out.Printf("  %s %s\n", id, states[domain.ParticipantID(id)])
		}
	default:
		return false, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	return false, nil
}
