// Package avr implements the control protocol for the Cambridge Audio
// Azur 551R A/V receiver.
//
// The receiver speaks an ASCII protocol over a persistent byte stream:
// commands are sent as "#<group>,<number>,<data>\r" and the device
// reports state as attribute messages framed the same way. The package
// provides the command/attribute catalog, message framing and decoding,
// an in-memory state store with change notification, and a small state
// machine that works around the protocol's lack of an absolute
// volume-set command by nudging the device with relative volume steps.
//
// A Handler instance is bound to a single connection. The connection
// layer (see internal/transport) constructs a fresh Handler on every
// connect and feeds it raw bytes as they arrive.
package avr
