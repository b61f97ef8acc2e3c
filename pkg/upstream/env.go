package upstream

import (
	"os"
	"sort"
	"strconv"

	"tapcanvas/threadgate/pkg/config"
)

// FilterEnv builds the environment of the upstream process. Only the keys in
// config.UpstreamEnvKeys are considered; a configured value wins over the
// proxy's own environment (read through lookup), and empty values are
// dropped. PORT is always set to port.
func FilterEnv(configured map[string]string, lookup func(string) (string, bool), port int) map[string]string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := make(map[string]string, len(config.UpstreamEnvKeys)+1)
	for _, key := range config.UpstreamEnvKeys {
		value, ok := configured[key]
		if !ok || value == "" {
			value, _ = lookup(key)
		}
		if value != "" {
			env[key] = value
		}
	}
	env["PORT"] = strconv.Itoa(port)
	return env
}

// envList converts env into KEY=VALUE pairs in key order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
