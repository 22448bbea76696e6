// Package audio owns microphone discovery, selection, and chunked PCM
// capture through PulseAudio.
package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/sgrover/confab/internal/voice"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns the Pulse input sources with default/mute metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultID := ""
	if src, err := client.DefaultSource(); err == nil {
		defaultID = src.ID()
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateName(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves the preferred input against the live device list,
// falling back to the default source when the preference is missing, muted,
// or unavailable.
func SelectDevice(ctx context.Context, preferred string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectFromList(devices, preferred)
}

func selectFromList(devices []Device, preferred string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, fmt.Errorf("no audio input devices found: %w", voice.ErrDeviceUnavailable)
	}

	preferred = strings.TrimSpace(strings.ToLower(preferred))

	var match, def *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			def = dev
		}
		if match == nil && preferred != "" && preferred != "default" && deviceMatches(*dev, preferred) {
			match = dev
		}
	}

	pick := match
	if pick == nil {
		if preferred != "" && preferred != "default" {
			return Selection{}, fmt.Errorf("input %q did not match any device: %w", preferred, voice.ErrDeviceUnavailable)
		}
		pick = def
	}
	if pick == nil {
		return Selection{}, fmt.Errorf("default audio source is unavailable: %w", voice.ErrDeviceUnavailable)
	}

	if pick.Available && !pick.Muted {
		return Selection{Device: *pick}, nil
	}

	reason := "unavailable"
	if pick.Muted {
		reason = "muted"
	}
	if def == nil || def.ID == pick.ID || !def.Available || def.Muted {
		return Selection{}, fmt.Errorf("input %q is %s and no usable fallback: %w", pick.ID, reason, voice.ErrDeviceUnavailable)
	}

	return Selection{
		Device:   *def,
		Warning:  fmt.Sprintf("input %q is %s; falling back to %q", pick.ID, reason, def.ID),
		Fallback: true,
	}, nil
}

func deviceMatches(device Device, term string) bool {
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("confab"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w: %v", voice.ErrDeviceUnavailable, err)
	}
	return client, nil
}

// sourceStateName maps the PulseAudio source state enum to its display
// name: running=0, idle=1, suspended=2.
func sourceStateName(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return "unknown"
	}
}

// sourceAvailable maps active-port availability to a boolean. PulseAudio
// port values: unknown=0, no=1, yes=2.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	if len(info.Ports) == 0 {
		return true
	}
	for _, port := range info.Ports {
		if port.Name != info.ActivePortName {
			continue
		}
		return port.Available == 0 || port.Available == 2
	}
	return true
}
