package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOMAIN", "")
	t.Setenv("WARPCALL_NAME", "")
	t.Setenv("USER", "alice")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, DefaultOfferTimeout, cfg.OfferTimeout)
	assert.Equal(t, DefaultRingTimeout, cfg.RingTimeout)
	assert.Equal(t, DefaultDisconnectGrace, cfg.DisconnectGrace)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("DOMAIN", "env.example.com")
	t.Setenv("WARPCALL_NAME", "envname")

	cfg, err := Load(Options{Domain: "flag.example.com", Username: "flagname"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain)
	assert.Equal(t, "flagname", cfg.Username)
}

func TestLoadEnvBeatsDefault(t *testing.T) {
	t.Setenv("DOMAIN", "env.example.com")
	t.Setenv("WARPCALL_NAME", "bob")
	t.Setenv("HISTORY_URL", "https://history.example.com/calls")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "env.example.com", cfg.Domain)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "https://history.example.com/calls", cfg.HistoryURL)
}

func TestLoadRequiresUsername(t *testing.T) {
	t.Setenv("WARPCALL_NAME", "")
	t.Setenv("USER", "")

	_, err := Load(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no username configured")
}

func TestGetRoomLink(t *testing.T) {
	cfg := &Config{Domain: "example.com"}
	assert.Equal(t, "https://example.com/r/kitten-waffle", cfg.GetRoomLink("kitten-waffle"))
}

func TestGetTURNServers(t *testing.T) {
	cfg := &Config{TURNServer: "turn:turn.example.com"}
	servers := cfg.GetTURNServers()
	require.Len(t, servers, 3)
	assert.Equal(t, "turn:turn.example.com:3478?transport=udp", servers[0])

	empty := &Config{}
	assert.Nil(t, empty.GetTURNServers())
}
