package camera

import "regexp"

// Preset names for common configurations
const (
	PresetDesktop = "desktop"
	PresetMobile  = "mobile"
	PresetIOS     = "ios"
	PresetAndroid = "android"
	Preset720p    = "720p"
)

// Platform is the kind of device the viewer is on.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformMobile  Platform = "mobile"
)

var (
	mobileUA  = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	iosUA     = regexp.MustCompile(`iPad|iPhone|iPod`)
	androidUA = regexp.MustCompile(`Android`)
)

// PlatformFromUserAgent classifies a browser user agent.
func PlatformFromUserAgent(ua string) Platform {
	switch {
	case iosUA.MatchString(ua):
		return PlatformIOS
	case androidUA.MatchString(ua):
		return PlatformAndroid
	case mobileUA.MatchString(ua):
		return PlatformMobile
	default:
		return PlatformDesktop
	}
}

// IsMobile reports whether the platform is a phone or tablet.
func (p Platform) IsMobile() bool {
	return p != PlatformDesktop
}

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDesktop: DefaultConfig(),
		PresetMobile:  MobileConfig(),
		PresetIOS:     MobileConfig(),
		PresetAndroid: MobileConfig(),
		Preset720p:    HD720Config(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDesktop,
		PresetMobile,
		PresetIOS,
		PresetAndroid,
		Preset720p,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// PresetFor returns the preset for a platform.
func PresetFor(p Platform) Config {
	if p.IsMobile() {
		return MobileConfig()
	}
	return DefaultConfig()
}

// MobileConfig returns the phone camera constraints: ideal 640x480,
// accepted between 320x240 and 1280x720.
func MobileConfig() Config {
	cfg := DefaultConfig()
	cfg.MinWidth = 320
	cfg.MinHeight = 240
	cfg.MaxWidth = 1280
	cfg.MaxHeight = 720
	cfg.Mirror = true
	return cfg
}

// HD720Config returns 720p HD configuration.
// Sharper landmarks at a higher CPU cost.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}
