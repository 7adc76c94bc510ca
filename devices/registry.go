// Package devices holds the read-only device capability registry the
// command validator consults: which devices exist, which command types
// each accepts, and the constraints on command parameters. The registry is
// static for the life of the process; device discovery and inventory
// management are outside this system.
package devices

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c360/sembridge/errors"
)

// Registry is the capability lookup surface the validator depends on.
type Registry interface {
	// Lookup returns the descriptor for a device id.
	Lookup(deviceID string) (Descriptor, bool)
	// Devices returns all descriptors, sorted by device id.
	Devices() []Descriptor
}

// StaticRegistry is a map-backed Registry built once from configuration.
type StaticRegistry struct {
	devices map[string]Descriptor
}

// NewStaticRegistry validates the descriptors and builds a registry.
// Duplicate device ids are configuration errors.
func NewStaticRegistry(descriptors []Descriptor) (*StaticRegistry, error) {
	devices := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"devices", "NewStaticRegistry", "descriptor validation")
		}
		if _, dup := devices[d.DeviceID]; dup {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate device id %q", errors.ErrInvalidConfig, d.DeviceID),
				"devices", "NewStaticRegistry", "descriptor validation")
		}
		devices[d.DeviceID] = d
	}
	return &StaticRegistry{devices: devices}, nil
}

// Lookup implements Registry.
func (r *StaticRegistry) Lookup(deviceID string) (Descriptor, bool) {
	d, ok := r.devices[deviceID]
	return d, ok
}

// Devices implements Registry.
func (r *StaticRegistry) Devices() []Descriptor {
	out := make([]Descriptor, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Len returns the number of registered devices.
func (r *StaticRegistry) Len() int {
	return len(r.devices)
}

// document is the on-disk shape of the capability document.
type document struct {
	Devices []Descriptor `json:"devices"`
}

// ParseDocument decodes a device capability document of the form
// {"devices": [...]} and builds a registry from it. Schema validation of
// the raw document happens in the config package before this runs.
func ParseDocument(data []byte) (*StaticRegistry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "devices", "ParseDocument", "capability document decode")
	}
	return NewStaticRegistry(doc.Devices)
}
