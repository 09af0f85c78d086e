// Package config defines the settings consumed by the repository manager and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type covers the ports overlay location, build root, base path
// resolution (flag, environment variable, platform default) and the force
// flags supplied on the command line.
package config
