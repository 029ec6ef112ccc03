/*
Package config loads the edgeplane YAML configuration file.

Load reads the file over Default, so any field left out keeps its default,
then validates the result. Validate reports every invalid field at once
rather than stopping at the first.

# File Format

	manifest_dir: ./manifests       # resource manifests, required
	data_dir: ./edgeplane-data      # build history database, required
	cache_enabled: true             # false compiles every build complete
	debounce: 250ms                 # quiet window before a reload
	history: 50                     # build records kept, at least 1

	log:
	  level: info                   # debug, info, warn, error
	  json: false                   # console output unless true

	xds:
	  listen: ":18000"              # ADS gRPC listen address
	  node_id: edge-proxy           # Envoy node id, required
	  node_cluster: edge
	  advertise_host: 127.0.0.1     # written into the bootstrap
	  advertise_port: 18000

	http:
	  listen: ":9090"               # diagnostics and metrics

The values shown are the defaults. advertise_host and advertise_port are
where the proxy dials back, which differs from xds.listen when the control
plane runs behind a service address.

# Flag Overrides

The root command applies --log-level, --log-json, --manifests, --data-dir
and --no-cache over the loaded file and validates again, so a flag can
fix a field the file sets wrong.

# Usage

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log.Init(cfg.LogOptions())
	opts := cfg.RenderOptions()
*/
package config
