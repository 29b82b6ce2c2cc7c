package audio

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Device describes an available audio input device.
type Device struct {
	// ID is the device identifier.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// ListDevices returns the available capture devices. Enumeration failures
// are logged and yield an empty list; the monitor falls back to the system
// default device in that case.
func ListDevices() []Device {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		slog.Error("failed to init audio context for device listing", "error", err)
		return nil
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		slog.Error("failed to list audio devices", "error", err)
		return nil
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:   info.ID.String(),
			Name: info.Name(),
		})
	}
	return devices
}
