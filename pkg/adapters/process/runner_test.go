package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/mesa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Notify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out := filepath.Join(t.TempDir(), "out.txt")

	n := NewNotifier()
	n.Register("whatsapp", "sh", "-c", `printf '%s|%s' "$MESA_NOTIFY_TO" "$MESA_NOTIFY_BODY" > "$OUT"; cat >> "$OUT"`)
	n.registry["whatsapp"] = RegisteredProcess{
		Command: n.registry["whatsapp"].Command,
		Args:    n.registry["whatsapp"].Args,
		Env:     map[string]string{"OUT": out},
	}

	t.Run("Passes Notification via Env and Stdin", func(t *testing.T) {
		err := n.Notify(context.Background(), ports.Notification{Channel: "whatsapp", To: "+55", Body: "Pedido pronto; rm -rf /"})
		require.NoError(t, err)

		written, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(written), "+55|Pedido pronto; rm -rf /")
		assert.Contains(t, string(written), `"channel":"whatsapp"`)
	})

	t.Run("Fails For Unregistered Channel", func(t *testing.T) {
		err := n.Notify(context.Background(), ports.Notification{Channel: "sms", To: "+55"})
		assert.ErrorIs(t, err, ErrChannelNotRegistered)
	})

	t.Run("Reports Command Failure", func(t *testing.T) {
		n.Register("email", "sh", "-c", "echo boom >&2; exit 3")
		err := n.Notify(context.Background(), ports.Notification{Channel: "email", To: "a@b.c"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestLoadChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
channels:
  - channel: whatsapp
    command: ./send.sh
    args: ["--quiet"]
    env:
      API_URL: http://gateway
`), 0o644))

	channels, err := LoadChannels(path)
	require.NoError(t, err)
	require.Contains(t, channels, "whatsapp")
	assert.Equal(t, "./send.sh", channels["whatsapp"].Command)
	assert.Equal(t, []string{"--quiet"}, channels["whatsapp"].Args)

	n := NewNotifier(WithRegistry(channels), WithBaseDir(dir))
	assert.Equal(t, "http://gateway", n.registry["whatsapp"].Env["API_URL"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"channels":[{"channel":"sms"}]}`), 0o644))
	_, err = LoadChannels(bad)
	assert.Error(t, err)

	_, err = LoadChannels(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
