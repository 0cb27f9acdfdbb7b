package logs

// Config selects the log sink.
//
// Output is "stderr" (default), "stdout", "syslog", "discard" or a file
// path opened in append mode.
type Config struct {
	Level    string `yaml:"level"`
	Output   string `yaml:"output"`
	RingSize int    `yaml:"ring_size"`
}

func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Output:   "stderr",
		RingSize: 500,
	}
}
