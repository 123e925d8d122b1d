package audio

import (
	"fmt"
	"strconv"

	"github.com/gordonklaus/portaudio"
)

// Device describes one audio input device.
type Device struct {
	Index    int
	Name     string
	Channels int
}

// InputDevices lists the capture-capable devices. PortAudio must be
// initialized by the caller.
func InputDevices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	devices := make([]Device, 0, len(all))
	for i, info := range all {
		if info.MaxInputChannels > 0 {
			devices = append(devices, Device{Index: i, Name: info.Name, Channels: info.MaxInputChannels})
		}
	}
	return devices, nil
}

// captureStream is the slice of a PortAudio input stream the mixer needs.
// It exists so the mix and chunking paths are testable without hardware.
type captureStream interface {
	Start() error
	Read() error
	Samples() []int16
	Close() error
}

type paStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func (p *paStream) Start() error     { return p.stream.Start() }
func (p *paStream) Read() error      { return p.stream.Read() }
func (p *paStream) Samples() []int16 { return p.buf }

func (p *paStream) Close() error {
	_ = p.stream.Stop()
	return p.stream.Close()
}

// openPortAudioInput acquires one capture device at the fixed recognition
// sample rate. An empty deviceID selects the system default input. The raw
// capture path has no echo-cancellation, noise-suppression, or gain-control
// stages, which is what the recognizer wants.
func openPortAudioInput(deviceID string, sampleRate, frames int) (captureStream, error) {
	buf := make([]int16, frames)

	if deviceID == "" || deviceID == "default" {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frames, buf)
		if err != nil {
			return nil, err
		}
		return &paStream{stream: stream, buf: buf}, nil
	}

	info, err := resolveDevice(deviceID)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = frames

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	return &paStream{stream: stream, buf: buf}, nil
}

// resolveDevice accepts either a numeric device index or an exact device name.
func resolveDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if idx, convErr := strconv.Atoi(deviceID); convErr == nil {
		if idx < 0 || idx >= len(all) {
			return nil, fmt.Errorf("device index %d out of range", idx)
		}
		if all[idx].MaxInputChannels == 0 {
			return nil, fmt.Errorf("device %d has no input channels", idx)
		}
		return all[idx], nil
	}

	for _, info := range all {
		if info.Name == deviceID && info.MaxInputChannels > 0 {
			return info, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", deviceID)
}
