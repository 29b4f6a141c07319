package codec

import "fmt"

// Flags is the Stream Config tuning bitmask. Unknown bits are ignored.
type Flags uint8

const (
	// FlagFastDecode requests the fastdecode x264 tune in addition to
	// zero-latency, which is always applied.
	FlagFastDecode Flags = 1 << 0
	// FlagArithmeticEntropy switches on CABAC entropy coding.
	FlagArithmeticEntropy Flags = 1 << 1
	// FlagExtendedRefs raises the reference-frame count to 3.
	FlagExtendedRefs Flags = 1 << 2
)

// StreamConfig is the immutable-per-session codec configuration.
type StreamConfig struct {
	Preset     string // x264 preset name, e.g. "veryfast"
	Profile    string // x264 profile name, e.g. "high"
	CRF        int    // constant rate factor quality floor
	BitrateBps int    // target bitrate, bits/sec
	FPS        int    // frames-per-second numerator (denominator is always 1)
	Threads    int    // encoder worker thread count
	Flags      Flags
}

var validPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true,
	"veryslow": true, "placebo": true,
}

var validProfiles = map[string]bool{
	"baseline": true, "main": true, "high": true, "high10": true,
	"high422": true, "high444": true,
}

// Validate rejects configurations the codec cannot apply. Matches the
// "Configuration error" row of the error taxonomy: invalid preset/profile
// is fatal at construction.
func (c StreamConfig) Validate() error {
	if !validPresets[c.Preset] {
		return fmt.Errorf("codec: unknown preset %q", c.Preset)
	}
	if !validProfiles[c.Profile] {
		return fmt.Errorf("codec: unknown profile %q", c.Profile)
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("codec: crf %d out of range [0,51]", c.CRF)
	}
	if c.BitrateBps <= 0 {
		return fmt.Errorf("codec: bitrate must be positive, got %d", c.BitrateBps)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("codec: fps must be positive, got %d", c.FPS)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("codec: threads must be positive, got %d", c.Threads)
	}
	return nil
}
