package cccl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceProfile is the on-disk form of DeviceProperties. Profiles let the
// occupancy solver be driven by a catalog of hardware models instead of the
// built-in simulated device: tooling and tests load a profile and hand its
// Properties to the solver or to WithDeviceProperties.
type DeviceProfile struct {
	Name                        string `yaml:"name"`
	WarpSize                    int    `yaml:"warp_size"`
	MaxThreadsPerBlock          int    `yaml:"max_threads_per_block"`
	MaxThreadsPerMultiprocessor int    `yaml:"max_threads_per_multiprocessor"`
	MaxBlocksPerMultiprocessor  int    `yaml:"max_blocks_per_multiprocessor"`
	RegistersPerMultiprocessor  int    `yaml:"registers_per_multiprocessor"`
	SharedMemPerMultiprocessor  int    `yaml:"shared_mem_per_multiprocessor"`
	MultiprocessorCount         int    `yaml:"multiprocessor_count"`
}

// Properties converts the profile to a capability snapshot, filling
// defaults for fields the profile leaves at zero.
func (p DeviceProfile) Properties() DeviceProperties {
	props := DeviceProperties{
		Name:                        p.Name,
		WarpSize:                    p.WarpSize,
		MaxThreadsPerBlock:          p.MaxThreadsPerBlock,
		MaxThreadsPerMultiprocessor: p.MaxThreadsPerMultiprocessor,
		MaxBlocksPerMultiprocessor:  p.MaxBlocksPerMultiprocessor,
		RegistersPerMultiprocessor:  p.RegistersPerMultiprocessor,
		SharedMemPerMultiprocessor:  p.SharedMemPerMultiprocessor,
		MultiprocessorCount:         p.MultiprocessorCount,
	}
	if props.WarpSize == 0 {
		props.WarpSize = WarpSize
	}
	if props.MaxThreadsPerBlock == 0 {
		props.MaxThreadsPerBlock = MaxThreadsPerBlock
	}
	if props.MultiprocessorCount == 0 {
		props.MultiprocessorCount = 1
	}
	return props
}

func (p DeviceProfile) validate(name string) error {
	if p.MaxThreadsPerMultiprocessor <= 0 {
		return NewInvalidArgError("LoadDeviceProfiles",
			fmt.Sprintf("profile %q: max_threads_per_multiprocessor must be positive", name))
	}
	if p.WarpSize < 0 || p.MaxThreadsPerBlock < 0 || p.MaxBlocksPerMultiprocessor < 0 ||
		p.RegistersPerMultiprocessor < 0 || p.SharedMemPerMultiprocessor < 0 ||
		p.MultiprocessorCount < 0 {
		return NewInvalidArgError("LoadDeviceProfiles",
			fmt.Sprintf("profile %q: limits must be non-negative", name))
	}
	return nil
}

// LoadDeviceProfiles parses a YAML catalog of named device profiles:
//
//	rtx-class:
//	  name: RTX-class discrete
//	  warp_size: 32
//	  max_threads_per_block: 1024
//	  max_threads_per_multiprocessor: 1536
//	  ...
func LoadDeviceProfiles(data []byte) (map[string]DeviceProfile, error) {
	var profiles map[string]DeviceProfile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, NewInvalidArgError("LoadDeviceProfiles", fmt.Sprintf("malformed profile catalog: %v", err))
	}
	for name, p := range profiles {
		if err := p.validate(name); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// LoadDeviceProfilesFile reads a profile catalog from disk
func LoadDeviceProfilesFile(path string) (map[string]DeviceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadDeviceProfiles(data)
}
