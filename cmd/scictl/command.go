package main

import (
	"strconv"
	"time"

	"github.com/docopt/docopt-go"
)

var usage = `scictl - system control interface tool

Usage:
  scictl list [<pattern>] [--config=<path>]
  scictl version [<pattern>] [--config=<path> --parallel=<n> --debug]
  scictl stress <key> [--config=<path> --parallel=<n> --count=<n> --debug]
  scictl debug <key> [--config=<path>]
  scictl discover [--duration=<d>]
  scictl ports

Options:
  -c --config=<path>    Path to the configuration file [default: sci.yaml].
  -p --parallel=<n>     Number of parallel requests [default: 4].
  -n --count=<n>        Number of requests [default: 100].
  -d --duration=<d>     The discovery duration [default: 2s].
  -v --debug            Log inbound messages.
  -h --help             Show this screen.
`

type command struct {
	// commands
	cList     bool
	cVersion  bool
	cStress   bool
	cDebug    bool
	cDiscover bool
	cPorts    bool

	// arguments
	aPattern string
	aKey     string

	// options
	oConfig   string
	oParallel int
	oCount    int
	oDuration time.Duration
	oDebug    bool
}

func parseCommand() *command {
	a, err := docopt.Parse(usage, nil, true, "", false)
	exitIfSet(err)

	return &command{
		// commands
		cList:     getBool(a["list"]),
		cVersion:  getBool(a["version"]),
		cStress:   getBool(a["stress"]),
		cDebug:    getBool(a["debug"]),
		cDiscover: getBool(a["discover"]),
		cPorts:    getBool(a["ports"]),

		// arguments
		aPattern: getString(a["<pattern>"]),
		aKey:     getString(a["<key>"]),

		// options
		oConfig:   getString(a["--config"]),
		oParallel: getInt(a["--parallel"]),
		oCount:    getInt(a["--count"]),
		oDuration: getDuration(a["--duration"]),
		oDebug:    getBool(a["--debug"]),
	}
}

func getBool(field interface{}) bool {
	val, _ := field.(bool)
	return val
}

func getString(field interface{}) string {
	str, _ := field.(string)
	return str
}

func getInt(field interface{}) int {
	n, _ := strconv.Atoi(getString(field))
	return n
}

func getDuration(field interface{}) time.Duration {
	d, _ := time.ParseDuration(getString(field))
	return d
}
