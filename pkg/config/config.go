// Package config reads the configuration of system controller instances.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/ryanuber/go-glob"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/256dpi/sci/pkg/mbox"
	"github.com/256dpi/sci/pkg/mqtt"
	"github.com/256dpi/sci/pkg/sci"
	"github.com/256dpi/sci/pkg/serial"
)

// Instance configures a single controller instance.
type Instance struct {
	Compatible string        `yaml:"compatible"`
	HostID     *uint8        `yaml:"host_id"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxMsgs    int           `yaml:"max_msgs"`
	MaxMsgSize string        `yaml:"max_msg_size"`
	Transport  string        `yaml:"transport"`
	TxChannel  string        `yaml:"tx_channel"`
	RxChannel  string        `yaml:"rx_channel"`
	DebugLog   string        `yaml:"debug_log"`
}

// Config is the contents of a configuration file.
type Config struct {
	Instances map[string]*Instance `yaml:"instances"`
}

// Read reads the configuration file at the specified path.
func Read(path string) (*Config, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses and validates a configuration.
func Parse(data []byte) (*Config, error) {
	// decode data
	var cfg Config
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	// create map of instances if missing
	if cfg.Instances == nil {
		cfg.Instances = make(map[string]*Instance)
	}

	// validate instances
	for key, inst := range cfg.Instances {
		if inst == nil {
			return nil, fmt.Errorf("instance %q: empty configuration", key)
		}
		_, err = inst.Desc()
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", key, err)
		}
		if inst.Transport == "" {
			return nil, fmt.Errorf("instance %q: missing transport", key)
		}
	}

	return &cfg, nil
}

// Desc returns the controller description. Explicit values override the
// values of the compatible preset.
func (i *Instance) Desc() (sci.Desc, error) {
	// get preset
	var desc sci.Desc
	if i.Compatible != "" {
		var ok bool
		desc, ok = sci.Compatible(i.Compatible)
		if !ok {
			return sci.Desc{}, fmt.Errorf("unknown compatible %q", i.Compatible)
		}
	}

	// apply overrides
	if i.HostID != nil {
		desc.HostID = *i.HostID
	}
	if i.Timeout != 0 {
		desc.Timeout = i.Timeout
	}
	if i.MaxMsgs != 0 {
		desc.MaxMsgs = i.MaxMsgs
	}
	if i.MaxMsgSize != "" {
		size, err := ParseSize(i.MaxMsgSize)
		if err != nil {
			return sci.Desc{}, err
		}
		desc.MaxMsgSize = size
	}

	return desc, desc.Validate()
}

// Options returns the instance options. A configured debug log file is
// opened and stays open for the lifetime of the process.
func (i *Instance) Options() ([]sci.Option, error) {
	// prepare options
	var opts []sci.Option

	// set channels
	if i.TxChannel != "" || i.RxChannel != "" {
		opts = append(opts, sci.WithChannels(value(i.TxChannel, "tx"), value(i.RxChannel, "rx")))
	}

	// open debug log
	if i.DebugLog != "" {
		file, err := os.Open(i.DebugLog)
		if err != nil {
			return nil, err
		}
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		opts = append(opts, sci.WithDebugRegion(file, info.Size()))
	}

	return opts, nil
}

// ParseSize parses a plain number of bytes or a size like "64B" or "1K".
func ParseSize(str string) (int, error) {
	// parse plain numbers
	if n, err := strconv.Atoi(str); err == nil {
		return n, nil
	}

	// parse units
	n, err := bytefmt.ToBytes(str)
	if err != nil {
		return 0, err
	} else if n > math.MaxInt32 {
		return 0, fmt.Errorf("size %q too large", str)
	}

	return int(n), nil
}

// Dial opens the mailbox controller for a transport URL. Supported schemes
// are "ws", "wss", "serial" (e.g. "serial:///dev/ttyUSB0?baud=115200") and
// "mqtt", "mqtts", "tcp" (the path is used as the base topic).
func Dial(transport string) (mbox.Controller, error) {
	// parse url
	u, err := url.Parse(transport)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "ws", "wss":
		ws, err := mbox.DialWebsocket(transport)
		if err != nil {
			return nil, err
		}
		return ws, nil
	case "serial":
		baud := 115200
		if str := u.Query().Get("baud"); str != "" {
			baud, err = strconv.Atoi(str)
			if err != nil {
				return nil, fmt.Errorf("invalid baud rate %q", str)
			}
		}
		ctrl, err := serial.Open(u.Path, baud)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	case "mqtt", "mqtts", "tcp", "tls":
		qos := 0
		if str := u.Query().Get("qos"); str != "" {
			qos, err = strconv.Atoi(str)
			if err != nil {
				return nil, fmt.Errorf("invalid qos %q", str)
			}
			q := u.Query()
			q.Del("qos")
			u.RawQuery = q.Encode()
		}
		ctrl, err := mqtt.Dial(u.String(), qos)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", transport)
	}
}

// Keys returns the sorted keys of all instances matching the glob pattern.
func (c *Config) Keys(pattern string) []string {
	keys := lo.Filter(lo.Keys(c.Instances), func(key string, _ int) bool {
		return glob.Glob(pattern, key)
	})
	slices.Sort(keys)
	return keys
}

// Probe dials the transport of the configured instance and probes it using
// the manager.
func (c *Config) Probe(m *sci.Manager, key string) (*sci.Instance, error) {
	// get instance
	inst, ok := c.Instances[key]
	if !ok {
		return nil, fmt.Errorf("instance %q not configured", key)
	}

	// get description
	desc, err := inst.Desc()
	if err != nil {
		return nil, err
	}

	// get options
	opts, err := inst.Options()
	if err != nil {
		return nil, err
	}

	// open mailbox
	ctrl, err := Dial(inst.Transport)
	if err != nil {
		return nil, fmt.Errorf("instance %q: %w", key, err)
	}

	return m.Probe(key, desc, ctrl, opts...)
}

func value(str, def string) string {
	if str == "" {
		return def
	}
	return str
}
