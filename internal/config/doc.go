// Package config provides the configuration for the broadcaster service.
//
// Configuration comes from three places, later ones overriding earlier:
//
//  1. Defaults()
//  2. An optional file (.toml, .yaml/.yml or .json)
//  3. BROADCASTER_* environment variables
//
// The result is validated before it is returned. A running service can
// reload the file through the watcher subpackage.
package config
