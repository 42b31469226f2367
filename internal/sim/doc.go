// Package sim implements a simulated receiver for development and
// testing.
//
// The simulator listens on TCP, speaks the receiver's ASCII control
// protocol and keeps just enough state (power, attenuation, mute,
// input, audio source) to answer commands the way the hardware does:
// volume moves in single steps with the new level echoed back, state
// changes are confirmed with the corresponding attribute message, and
// malformed commands draw the documented error responses.
package sim
