package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adapthttp "github.com/dkeye/VoiceMesh/internal/adapters/http"
	"github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/directory"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/dkeye/VoiceMesh/internal/notify"
	"github.com/dkeye/VoiceMesh/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "cli-test-secret",
		Auth:       config.AuthConfig{TokenTTL: time.Hour, SessionName: "vm"},
	}
	records := store.NewMemory()
	relay := app.NewRelay(app.RelayOptions{})
	go relay.Run(ctx)

	srv := httptest.NewServer(adapthttp.SetupRouter(ctx, cfg, adapthttp.Deps{
		Relay:     relay,
		Identity:  identity.NewProvider(records, nil, cfg.Secret, cfg.Auth.TokenTTL),
		Directory: directory.NewService(records, notify.NewMemory()),
		Signal:    signal.NewSignalWSController(relay, cfg.Signal),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

type voicectl struct {
	t      *testing.T
	server string
	token  string
	config string
}

func newVoicectl(t *testing.T) *voicectl {
	dir := t.TempDir()
	return &voicectl{
		t:      t,
		server: newServer(t),
		token:  filepath.Join(dir, "token"),
		config: filepath.Join(dir, "missing.yaml"),
	}
}

func (v *voicectl) run(stdin string, args ...string) (string, error) {
	v.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", v.server, "--token-file", v.token, "--config", v.config}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (v *voicectl) signIn(email, username string) {
	v.t.Helper()
	_, err := v.run("hunter22\n", "signup", "--email", email, "--username", username)
	require.NoError(v.t, err)
	_, err = v.run("", "login", "--email", email, "--password", "hunter22")
	require.NoError(v.t, err)
}

func TestAccountCommands(t *testing.T) {
	v := newVoicectl(t)

	_, err := v.run("", "whoami")
	assert.ErrorIs(t, err, errLoginAgain)

	out, err := v.run("hunter22\n", "signup", "--email", "alice@example.com", "--username", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "account alice created")

	_, err = v.run("", "login", "--email", "alice@example.com", "--password", "nope-nope")
	assert.EqualError(t, err, "wrong email or password")

	out, err = v.run("hunter22\n", "login", "--email", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as alice")

	out, err = v.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "alice <alice@example.com>")

	out, err = v.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	_, err = v.run("", "whoami")
	assert.ErrorIs(t, err, errLoginAgain)
}

func TestRevokedSessionAsksToLogInAgain(t *testing.T) {
	v := newVoicectl(t)
	v.signIn("bob@example.com", "bob")
	token, err := tokenFile{path: v.token}.Load()
	require.NoError(t, err)

	// Sign out from elsewhere: the stored token is now revoked.
	_, err = v.run("", "logout")
	require.NoError(t, err)
	require.NoError(t, tokenFile{path: v.token}.Save(token))

	_, err = v.run("", "whoami")
	assert.ErrorIs(t, err, errLoginAgain)
	_, err = v.run("", "channels", "create", "general")
	assert.ErrorIs(t, err, errLoginAgain)
}

func TestChannelCommands(t *testing.T) {
	v := newVoicectl(t)

	out, err := v.run("", "channels")
	require.NoError(t, err)
	assert.Contains(t, out, "no channels yet")

	v.signIn("carol@example.com", "carol")
	out, err = v.run("", "channels", "create", "general")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 3)
	id := fields[1]

	out, err = v.run("", "channels")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "general")

	out, err = v.run("", "members", id)
	require.NoError(t, err)
	assert.Contains(t, out, "nobody is here")

	out, err = v.run("", "channels", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = v.run("", "channels", "delete", id)
	assert.Error(t, err)
}

func TestJoinInteractive(t *testing.T) {
	v := newVoicectl(t)
	v.signIn("dave@example.com", "dave")

	script := strings.Join([]string{"help", "who", "mute", "peers", "bogus", "switch other", "leave", "who", "quit"}, "\n") + "\n"
	out, err := v.run(script, "join", "lobby")
	require.NoError(t, err)

	assert.Contains(t, out, "joined lobby as dave")
	assert.Contains(t, out, "channel lobby:")
	assert.Contains(t, out, "muted")
	assert.Contains(t, out, "no peers")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "switched to other")
	assert.Contains(t, out, "left the channel")
	assert.Contains(t, out, "not in a channel")
}

func TestJoinRequiresSession(t *testing.T) {
	v := newVoicectl(t)
	_, err := v.run("quit\n", "join", "lobby")
	assert.ErrorIs(t, err, errLoginAgain)
}
