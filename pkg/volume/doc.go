// Package volume builds the docker volume parameters that task builders
// attach to container task descriptors.
package volume
