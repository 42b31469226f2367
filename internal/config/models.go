package config

import (
	"net"
	"strconv"
	"time"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for receivers and application
// preferences.
type Registry struct {
	Version     int                  `yaml:"version"`
	Receivers   map[string]*Receiver `yaml:"receivers,omitempty"` // Keyed by user-chosen name
	Preferences *Preferences         `yaml:"preferences,omitempty"`
}

// Receiver represents a known receiver. This is purely client-side
// information - the device itself stores nothing about us.
type Receiver struct {
	Host     string    `yaml:"host"`                // IP or FQDN of the receiver
	Port     int       `yaml:"port"`                // Control port (default 14999)
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly display name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last successful connection time
}

// Addr returns the receiver's dial address, falling back to
// DefaultPort when no port is recorded.
func (r *Receiver) Addr() string {
	port := r.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(port))
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultReceiver string `yaml:"default_receiver,omitempty"` // Receiver used when --receiver is not given
	WatchRefresh    int    `yaml:"watch_refresh"`              // Dashboard refresh interval in seconds
}

// DefaultPort is the control port the Azur 551R is reachable on when
// bridged over TCP.
const DefaultPort = 14999

// NewRegistry creates a new registry with default preferences.
func NewRegistry() *Registry {
	return &Registry{
		Version:   1,
		Receivers: make(map[string]*Receiver),
		Preferences: &Preferences{
			WatchRefresh: 2,
		},
	}
}

// Lookup returns the named receiver, or nil when it is not registered.
func (r *Registry) Lookup(name string) *Receiver {
	return r.Receivers[name]
}

// Default returns the preferred receiver: the configured default if
// set, otherwise the sole registered receiver, otherwise nil.
func (r *Registry) Default() *Receiver {
	if r.Preferences != nil && r.Preferences.DefaultReceiver != "" {
		if rec := r.Receivers[r.Preferences.DefaultReceiver]; rec != nil {
			return rec
		}
	}
	if len(r.Receivers) == 1 {
		for _, rec := range r.Receivers {
			return rec
		}
	}
	return nil
}

// Remember records (or updates) a receiver under the given name and
// stamps its last-seen time.
func (r *Registry) Remember(name, host string, port int) *Receiver {
	if r.Receivers == nil {
		r.Receivers = make(map[string]*Receiver)
	}
	rec := r.Receivers[name]
	if rec == nil {
		rec = &Receiver{}
		r.Receivers[name] = rec
	}
	rec.Host = host
	rec.Port = port
	rec.LastSeen = time.Now()
	return rec
}
