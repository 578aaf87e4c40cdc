// Command registryctl is a command-line client for the CPM registry.
//
//	registryctl list
//	registryctl get left-pad
//	registryctl get left-pad 1.0.0
//	registryctl publish -meta meta.json -tarball left-pad-1.0.0.tgz
//	registryctl download left-pad 1.0.0
//
// The registry URL comes from -registry or CPM_REGISTRY_URL.
package main
