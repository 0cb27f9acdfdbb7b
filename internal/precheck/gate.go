package precheck

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"

	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"
)

const (
	DefaultConfPath = "/etc/ceph/ceph.conf"
	DefaultKeyring  = "/etc/ceph/ceph.client.admin.keyring"
)

var (
	ErrKeyringMissing    = errors.New("keyring not found")
	ErrKeyringUnreadable = errors.New("keyring not readable")
	ErrToolMissing       = errors.New("required tool not found")
	ErrConfUnreadable    = errors.New("ceph configuration unreadable")
)

// KeyringSource tells where the keyring path came from.
type KeyringSource string

const (
	SourceConf     KeyringSource = "conf"
	SourceDefault  KeyringSource = "default"
	SourceExplicit KeyringSource = "explicit"
)

// Result is what the gate resolved. The probe hands ConfPath and Keyring
// to the report command.
type Result struct {
	// ConfPath is empty when the configuration file does not exist.
	ConfPath      string
	ConfMissing   bool
	Keyring       string
	KeyringSource KeyringSource
	Tools         map[string]string
}

// Args returns the ceph CLI flags selecting the resolved files.
func (r *Result) Args() []string {
	var args []string
	if r.ConfPath != "" {
		args = append(args, "--conf", r.ConfPath)
	}
	if r.Keyring != "" {
		args = append(args, "--keyring", r.Keyring)
	}
	return args
}

type Option func(*Gate)

// WithLookPath replaces the PATH lookup used for required tools.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(g *Gate) { g.lookPath = fn }
}

// WithAccess replaces the access(2) check used for the keyring.
func WithAccess(fn func(path string, mode uint32) error) Option {
	return func(g *Gate) { g.access = fn }
}

// Gate validates the local environment before the control plane is
// contacted.
type Gate struct {
	cfg      Config
	logger   *logs.Logger
	metrics  *metrics.Registry
	lookPath func(string) (string, error)
	access   func(path string, mode uint32) error
}

func NewGate(cfg Config, logger *logs.Logger, reg *metrics.Registry, opts ...Option) *Gate {
	g := &Gate{
		cfg:      cfg.withDefaults(),
		logger:   logger.WithComponent("precheck"),
		metrics:  reg,
		lookPath: exec.LookPath,
		access:   unix.Access,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs every precondition and stops at the first failure.
func (g *Gate) Check() (*Result, error) {
	res, err := g.check()
	if err != nil {
		g.metrics.Inc(metrics.PrecheckFailuresTotal)
		g.logger.Error("precondition failed", "error", err)
		return nil, err
	}
	return res, nil
}

func (g *Gate) check() (*Result, error) {
	res := &Result{Tools: make(map[string]string, len(g.cfg.RequiredTools))}

	for _, tool := range g.cfg.RequiredTools {
		path, err := g.lookPath(tool)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolMissing, tool, err)
		}
		g.logger.Debug("required tool found", "tool", tool, "path", path)
		res.Tools[tool] = path
	}

	keyring, source, confPath, err := g.resolveKeyring()
	if err != nil {
		return nil, err
	}
	res.ConfPath, res.Keyring, res.KeyringSource = confPath, keyring, source
	if confPath == "" {
		res.ConfMissing = true
		g.logger.Warn("ceph configuration missing, the ceph CLI will use its built-in defaults",
			"conf", g.cfg.ConfPath)
	}

	if err := g.checkKeyring(keyring); err != nil {
		return nil, err
	}
	g.logger.Info("keyring readable", "keyring", keyring, "source", string(source))
	return res, nil
}

// resolveKeyring reads the keyring override from the configuration file.
// The client's own section wins over [global]. A missing configuration
// file falls back to the configured default keyring.
func (g *Gate) resolveKeyring() (string, KeyringSource, string, error) {
	if g.cfg.Keyring != "" {
		return g.cfg.Keyring, SourceExplicit, g.existingConf(), nil
	}

	conf, err := ini.LoadSources(ini.LoadOptions{SkipUnrecognizableLines: true}, g.cfg.ConfPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Info("no ceph configuration, using default keyring",
				"conf", g.cfg.ConfPath, "keyring", g.cfg.DefaultKeyring)
			return g.cfg.DefaultKeyring, SourceDefault, "", nil
		}
		return "", "", "", fmt.Errorf("%w: %s: %v", ErrConfUnreadable, g.cfg.ConfPath, err)
	}

	g.logger.Debug("checking for a custom keyring", "conf", g.cfg.ConfPath)
	for _, section := range []string{"client." + g.cfg.Client, "client", "global"} {
		if !conf.HasSection(section) {
			continue
		}
		key, err := conf.Section(section).GetKey("keyring")
		if err != nil || strings.TrimSpace(key.String()) == "" {
			continue
		}
		path := g.pickKeyring(key.String())
		g.logger.Info("custom keyring configured", "section", section, "keyring", path)
		return path, SourceConf, g.cfg.ConfPath, nil
	}

	g.logger.Info("no custom keyring configured, using default",
		"conf", g.cfg.ConfPath, "keyring", g.cfg.DefaultKeyring)
	return g.cfg.DefaultKeyring, SourceDefault, g.cfg.ConfPath, nil
}

// pickKeyring expands a comma separated keyring list and returns the first
// candidate that exists, or the first candidate when none does.
func (g *Gate) pickKeyring(value string) string {
	var candidates []string
	for _, c := range strings.Split(value, ",") {
		if c = strings.TrimSpace(c); c != "" {
			candidates = append(candidates, ExpandMeta(c, g.cfg.Cluster, g.cfg.Client))
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

func (g *Gate) existingConf() string {
	if _, err := os.Stat(g.cfg.ConfPath); err == nil {
		return g.cfg.ConfPath
	}
	return ""
}

func (g *Gate) checkKeyring(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeyringMissing, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrKeyringUnreadable, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrKeyringMissing, path)
	}
	if err := g.access(path, unix.R_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrKeyringUnreadable, path, err)
	}
	return nil
}

// ExpandMeta substitutes the ceph configuration metavariables $cluster,
// $name, $type and $id.
func ExpandMeta(s, cluster, client string) string {
	typ, id, ok := strings.Cut(client, ".")
	if !ok {
		typ, id = "client", client
	}
	return strings.NewReplacer(
		"$cluster", cluster,
		"$name", typ+"."+id,
		"$type", typ,
		"$id", id,
	).Replace(s)
}
