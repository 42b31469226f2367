// Package tui implements the interactive watch dashboard.
//
// The dashboard keeps a live connection to the receiver and renders its
// state (power, volume, mute, input, audio source, versions) as the
// device reports changes, with single-key controls for the common
// operations. Built on Bubble Tea with bubbles components for the
// spinner, volume bar and help footer.
package tui
