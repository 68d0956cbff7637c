package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"
)

var usage = `scisim - simulated system controller

Usage:
  scisim [--addr=<addr> --path=<path> --description=<text> --revision=<rev> --abi=<abi> --delay=<d> --announce=<name>]

Options:
  -a --addr=<addr>         The listen address [default: :8080].
  -p --path=<path>         The websocket path [default: /sci].
  -d --description=<text>  The firmware description [default: scisim].
  -r --revision=<rev>      The firmware revision [default: 1].
  -b --abi=<abi>           The ABI version [default: 3.0].
  -w --delay=<d>           The response delay [default: 0s].
  -n --announce=<name>     Announce the endpoint via mDNS.
  -h --help                Show this screen.
`

type command struct {
	oAddr        string
	oPath        string
	oDescription string
	oRevision    uint16
	oABIMajor    uint8
	oABIMinor    uint8
	oDelay       time.Duration
	oAnnounce    string
}

func parseCommand() *command {
	a, err := docopt.Parse(usage, nil, true, "", false)
	exitIfSet(err)

	// parse revision
	rev, err := strconv.ParseUint(getString(a["--revision"]), 0, 16)
	exitIfSet(err)

	// parse abi
	major, minor, _ := strings.Cut(getString(a["--abi"]), ".")
	maj, err1 := strconv.ParseUint(major, 10, 8)
	min, err2 := strconv.ParseUint(minor, 10, 8)
	exitIfSet(err1, err2)

	// parse delay
	delay, err := time.ParseDuration(getString(a["--delay"]))
	exitIfSet(err)

	return &command{
		oAddr:        getString(a["--addr"]),
		oPath:        getString(a["--path"]),
		oDescription: getString(a["--description"]),
		oRevision:    uint16(rev),
		oABIMajor:    uint8(maj),
		oABIMinor:    uint8(min),
		oDelay:       delay,
		oAnnounce:    getString(a["--announce"]),
	}
}

func getString(field interface{}) string {
	str, _ := field.(string)
	return str
}

func exitIfSet(errs ...error) {
	for _, err := range errs {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
			os.Exit(1)
		}
	}
}
