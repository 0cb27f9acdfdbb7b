package precheck

// Config controls the precondition gate.
type Config struct {
	ConfPath string `yaml:"conf"`
	// Keyring, when set, bypasses the lookup in the configuration file.
	Keyring        string   `yaml:"keyring"`
	DefaultKeyring string   `yaml:"default_keyring"`
	Cluster        string   `yaml:"cluster"`
	Client         string   `yaml:"client"`
	RequiredTools  []string `yaml:"required_tools"`
}

func DefaultConfig() Config {
	return Config{
		ConfPath:       DefaultConfPath,
		DefaultKeyring: DefaultKeyring,
		Cluster:        "ceph",
		Client:         "admin",
		RequiredTools:  []string{"ceph"},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConfPath == "" {
		c.ConfPath = def.ConfPath
	}
	if c.DefaultKeyring == "" {
		c.DefaultKeyring = def.DefaultKeyring
	}
	if c.Cluster == "" {
		c.Cluster = def.Cluster
	}
	if c.Client == "" {
		c.Client = def.Client
	}
	return c
}
