// Package config defines configuration structures for the stacfetch CLI.
//
// Configuration can be provided via, in increasing priority:
//   - YAML configuration file
//   - .env files (loaded into the environment, never overriding it)
//   - Environment variables (STACFETCH_ prefix)
//   - Command-line flags
//
// # Structure
//
//	type Config struct {
//	    OutputDir    string
//	    Bucket       string
//	    Include      []string
//	    Exclude      []string
//	    ProductTypes []string
//	    Workers      int
//	    Threaded     bool
//	    Progress     bool
//	    Override     bool
//	    Resume       bool
//	    SeparateDirs bool
//	    BufferSize   int64
//	    Timeout      time.Duration
//	    LogLevel     string
//	    LogFormat    string
//	    MetricsFile  string
//	    Retry        RetryConfig
//	}
//
//	type RetryConfig struct {
//	    Attempts   int
//	    Backoff    time.Duration
//	    MaxBackoff time.Duration
//	}
package config
