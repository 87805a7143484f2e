// Package config holds the settings of a workflow: where generated code
// and data live, which party this is, the parties taking part, and how
// to reach them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDelimiter      = ","
	DefaultPath           = "/tmp"
	DefaultMPCFramework   = "sharemind"
	DefaultLocalFramework = "python"
)

type Party struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (p Party) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

type Sharemind struct {
	HomePath  string `yaml:"home_path"`
	UseDocker bool   `yaml:"use_docker"`
	UseHDFS   bool   `yaml:"use_hdfs"`
}

type Spark struct {
	MasterURL string `yaml:"master_url"`
}

type OblivC struct {
	Path   string `yaml:"oc_path"`
	IPPort string `yaml:"ip_port"`
}

type JIFF struct {
	Path       string `yaml:"jiff_path"`
	ServerIP   string `yaml:"server_ip"`
	ServerPort int    `yaml:"server_port"`
	ServerPID  int    `yaml:"server_pid"`
}

type Config struct {
	Name       string
	CodePath   string
	InputPath  string
	OutputPath string
	Delimiter  string
	PID        int
	AllPIDs    []int
	// UseLeakyOps lets composite expansion pick variants that reveal
	// the number of distinct keys to the trusted party.
	UseLeakyOps    bool
	Parties        map[int]Party
	MPCFramework   string
	LocalFramework string
	Sharemind      *Sharemind
	Spark          *Spark
	OblivC         *OblivC
	JIFF           *JIFF
}

// New returns the default configuration for the workflow called name.
// An empty name creates a fresh code directory under the system temporary
// directory and names the workflow after it.
func New(name string) (*Config, error) {
	c := &Config{
		Name:       name,
		InputPath:  DefaultPath,
		OutputPath: DefaultPath,
		Delimiter:  DefaultDelimiter,
		PID:        1,
		AllPIDs:    []int{1, 2, 3},
		Parties: map[int]Party{
			1: {Host: "localhost", Port: 9001},
			2: {Host: "localhost", Port: 9002},
			3: {Host: "localhost", Port: 9003},
		},
		MPCFramework:   DefaultMPCFramework,
		LocalFramework: DefaultLocalFramework,
	}
	if name == "" {
		dir, err := os.MkdirTemp("", "conclave-*-code")
		if err != nil {
			return nil, err
		}
		c.CodePath = dir
		c.Name = filepath.Base(dir)
	} else {
		c.CodePath = filepath.Join(DefaultPath, name+"-code")
	}
	return c, nil
}

// WithPID returns a copy of c for party pid.
func (c *Config) WithPID(pid int) *Config {
	out := *c
	out.PID = pid
	return &out
}

// Party returns the network address of pid.
func (c *Config) Party(pid int) (Party, error) {
	p, ok := c.Parties[pid]
	if !ok {
		return Party{}, fmt.Errorf("no network configuration for party %d", pid)
	}
	return p, nil
}

func (c *Config) Validate() error {
	if c.PID == 0 {
		return errors.New("pid not set")
	}
	if len(c.AllPIDs) == 0 {
		return errors.New("no parties")
	}
	if !slices.Contains(c.AllPIDs, c.PID) {
		return fmt.Errorf("pid %d is not one of the parties %v", c.PID, c.AllPIDs)
	}
	if c.Delimiter == "" {
		return errors.New("empty delimiter")
	}
	return nil
}

type file struct {
	UserConfig struct {
		PID          int    `yaml:"pid"`
		WorkflowName string `yaml:"workflow_name"`
		AllPIDs      []int  `yaml:"all_pids"`
		LeakyOps     bool   `yaml:"leaky_ops"`
		Delimiter    string `yaml:"delimiter"`
		Paths        struct {
			InputPath  string `yaml:"input_path"`
			OutputPath string `yaml:"output_path"`
			CodePath   string `yaml:"code_path"`
		} `yaml:"paths"`
		Frameworks struct {
			MPC   string `yaml:"mpc"`
			Local string `yaml:"local"`
		} `yaml:"frameworks"`
	} `yaml:"user_config"`
	Net struct {
		Parties map[int]Party `yaml:"parties"`
	} `yaml:"net"`
	Backends struct {
		Sharemind *Sharemind `yaml:"sharemind"`
		Spark     *Spark     `yaml:"spark"`
		OblivC    *OblivC    `yaml:"oblivc"`
		JIFF      *JIFF      `yaml:"jiff"`
	} `yaml:"backends"`
}

// Parse decodes a workflow configuration file.  Settings missing from
// the file keep their defaults.
func Parse(b []byte) (*Config, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("workflow configuration: %w", err)
	}
	u := f.UserConfig
	c, err := New(u.WorkflowName)
	if err != nil {
		return nil, err
	}
	if u.PID != 0 {
		c.PID = u.PID
	}
	if len(u.AllPIDs) != 0 {
		c.AllPIDs = slices.Sorted(slices.Values(u.AllPIDs))
	}
	c.UseLeakyOps = u.LeakyOps
	setString(&c.Delimiter, u.Delimiter)
	setString(&c.InputPath, u.Paths.InputPath)
	setString(&c.OutputPath, u.Paths.OutputPath)
	setString(&c.CodePath, u.Paths.CodePath)
	setString(&c.MPCFramework, u.Frameworks.MPC)
	setString(&c.LocalFramework, u.Frameworks.Local)
	if len(f.Net.Parties) != 0 {
		c.Parties = f.Net.Parties
	}
	c.Sharemind = f.Backends.Sharemind
	c.Spark = f.Backends.Spark
	c.OblivC = f.Backends.OblivC
	c.JIFF = f.Backends.JIFF
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("workflow configuration: %w", err)
	}
	return c, nil
}

// Load reads the workflow configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
