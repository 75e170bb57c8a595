package config

import (
	"fmt"
	"os"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "warpcall.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:warpcall.qzz.io" // Optional, empty by default
	DefaultTURNUser = "warpcall"
	DefaultTURNPass = "warpcall-secret"

	// Call timer defaults. Tests compress these directly on the Config.
	DefaultOfferTimeout    = 60 * time.Second
	DefaultRingTimeout     = 30 * time.Second
	DefaultDisconnectGrace = 5 * time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the signaling server domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// Username identifies the local user on the signaling channel.
	Username string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// HistoryURL receives a fire-and-forget record of every ended call.
	// Empty disables reporting.
	HistoryURL string

	// Call timers.
	OfferTimeout    time.Duration // cancel an unanswered outbound call
	RingTimeout     time.Duration // auto-decline an unanswered inbound call
	DisconnectGrace time.Duration // tolerate transient disconnects before hangup
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Username   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	HistoryURL string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)
	historyURL := firstNonEmpty(opts.HistoryURL, os.Getenv("HISTORY_URL"))

	// Identity comes from the surrounding environment; the call coordinator
	// only ever reads it.
	username := firstNonEmpty(opts.Username, os.Getenv("WARPCALL_NAME"), os.Getenv("USER"))
	if username == "" {
		return nil, fmt.Errorf("no username configured: set --name or WARPCALL_NAME")
	}

	return &Config{
		Domain:          domain,
		WebSocketURL:    fmt.Sprintf("wss://%s/ws", domain),
		Username:        username,
		STUNServer:      stunServer,
		TURNServer:      turnServer,
		TURNUser:        turnUser,
		TURNPass:        turnPass,
		ForceRelay:      opts.ForceRelay,
		HistoryURL:      historyURL,
		OfferTimeout:    DefaultOfferTimeout,
		RingTimeout:     DefaultRingTimeout,
		DisconnectGrace: DefaultDisconnectGrace,
	}, nil
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
