package loader

import (
	"strings"

	"github.com/elastic/go-sysinfo"
	"github.com/jaypipes/ghw"
)

// HostProbe reports the hardware a model is about to be loaded on
type HostProbe interface {
	// GPUs returns the names of the graphics cards found
	GPUs() ([]string, error)
	// Memory returns total and available host RAM in bytes
	Memory() (total, available uint64, err error)
}

type systemProbe struct{}

func (systemProbe) GPUs() ([]string, error) {
	gpus, err := ghw.GPU()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, card := range gpus.GraphicsCards {
		if card == nil {
			continue
		}
		var parts []string
		if dev := card.DeviceInfo; dev != nil {
			if dev.Vendor != nil {
				parts = append(parts, dev.Vendor.Name)
			}
			if dev.Product != nil {
				parts = append(parts, dev.Product.Name)
			}
		}
		name := strings.TrimSpace(strings.Join(parts, " "))
		if name == "" {
			name = card.Address
		}
		names = append(names, name)
	}
	return names, nil
}

func (systemProbe) Memory() (uint64, uint64, error) {
	hostInfo, err := sysinfo.Host()
	if err != nil {
		return 0, 0, err
	}
	ram, err := hostInfo.Memory()
	if err != nil {
		return 0, 0, err
	}
	return ram.Total, ram.Available, nil
}
