package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", DefaultHTTPTimeout.String(), "Set hard timeout for requests")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
	cmd.PersistentFlags().StringP("output", "o", "", "Directory for artifacts and manifest (default "+DefaultOutputDir+")")
	cmd.PersistentFlags().String("cache-dir", "", "Directory for cached pages (default "+DefaultCacheDir+")")
	cmd.PersistentFlags().String("cache-ttl", DefaultCacheTTL.String(), "Maximum age of cached pages")
	cmd.PersistentFlags().Bool("no-cache", false, "Disable the page cache")
	cmd.PersistentFlags().Bool("memory-cache", false, "Keep cached pages in memory only")
	cmd.PersistentFlags().Bool("force", false, "Ignore cached pages and refetch")
	cmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.PersistentFlags().Bool("explicit-endpoints", false, "Require every endpoint to be configured explicitly")
}
