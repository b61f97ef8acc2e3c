// threadgate is a reverse proxy that keeps conversation thread ids stable
// for clients while the upstream thread service expires and recreates them.
//
// Usage:
//
//	# Start the proxy with config.yaml (defaults and environment if absent)
//	threadgate run
//
//	# Override the listen address
//	threadgate run --listen 0.0.0.0:8787
//
//	# Check a configuration file
//	threadgate validate --config /etc/threadgate/config.yaml
//
//	# Inspect the alias table
//	threadgate aliases list --format json
//	threadgate aliases show conv-42
package main

import "os"

func main() {
	os.Exit(Execute())
}
