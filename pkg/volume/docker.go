package volume

import (
	"fmt"
	"strings"
)

// Volume mount modes.
const (
	ModeRO = "ro"
	ModeRW = "rw"
)

// DriverOpt is a single volume driver option. Options are rendered in
// insertion order.
type DriverOpt struct {
	Name  string
	Value string
}

// DockerParam is a single docker run parameter.
type DockerParam struct {
	Flag  string
	Value string
}

// Volume defines a Docker volume that will be mounted into a container.
// A host volume mounts HostPath directly; a named volume is created on
// first use, optionally with a driver and driver options.
type Volume struct {
	ContainerPath string
	Mode          string
	IsHost        bool
	HostPath      string
	Name          string
	Driver        string
	DriverOpts    []DriverOpt
}

// NewHostVolume creates a host-path mount.
func NewHostVolume(containerPath, mode, hostPath string) *Volume {
	return &Volume{
		ContainerPath: containerPath,
		Mode:          mode,
		IsHost:        true,
		HostPath:      hostPath,
	}
}

// NewNamedVolume creates a named volume, optionally with a driver and
// driver options.
func NewNamedVolume(containerPath, mode, name, driver string, opts []DriverOpt) *Volume {
	return &Volume{
		ContainerPath: containerPath,
		Mode:          mode,
		Name:          name,
		Driver:        driver,
		DriverOpts:    opts,
	}
}

// ToDockerParam returns the docker parameter that performs the mount of
// this volume.
func (v *Volume) ToDockerParam() DockerParam {
	var volumeName string
	if v.IsHost {
		// Host mount is special, no volume name, just the host path
		volumeName = v.HostPath
	} else {
		var driverParams []string
		if v.Driver != "" {
			driverParams = append(driverParams, fmt.Sprintf("--driver %s", v.Driver))
		}
		for _, opt := range v.DriverOpts {
			driverParams = append(driverParams, fmt.Sprintf("--opt %s=%s", opt.Name, opt.Value))
		}
		if len(driverParams) > 0 {
			volumeName = fmt.Sprintf("$(docker volume create --name %s %s)", v.Name, strings.Join(driverParams, " "))
		} else {
			volumeName = fmt.Sprintf("$(docker volume create --name %s)", v.Name)
		}
	}

	return DockerParam{
		Flag:  "volume",
		Value: fmt.Sprintf("%s:%s:%s", volumeName, v.ContainerPath, v.Mode),
	}
}
