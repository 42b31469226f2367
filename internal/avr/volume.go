package avr

import "math"

// The receiver tracks volume internally as an attenuation level from
// -90 dB (silent) to 0 dB (maximum). Downstream consumers usually want
// a friendlier scale, so the same value is exposed three ways:
// attenuation (-90..0), volume (0..100) and a 0.0..1.0 fraction.

// AttenuationToVolume converts a native attenuation value in dB
// (-90..0) to a volume on the 0-100 scale.
func AttenuationToVolume(db int) int {
	return int(math.Round((90 + float64(db)) / 90 * 100))
}

// VolumeToAttenuation converts a 0-100 volume value to the attenuation
// in dB the receiver expects.
func VolumeToAttenuation(volume int) int {
	return int(math.Round(float64(volume)/100*90)) - 90
}

// VolumeToFraction converts a 0-100 volume to a 0.0-1.0 fraction.
func VolumeToFraction(volume int) float64 {
	return float64(volume) / 100
}

// FractionToVolume converts a 0.0-1.0 fraction to a 0-100 volume.
func FractionToVolume(fraction float64) int {
	return int(math.Round(fraction * 100))
}
