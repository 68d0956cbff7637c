package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/256dpi/sci/pkg/config"
	"github.com/256dpi/sci/pkg/mdns"
	"github.com/256dpi/sci/pkg/sci"
	"github.com/256dpi/sci/pkg/serial"
	"github.com/256dpi/sci/pkg/utils"
)

func main() {
	// parse command
	cmd := parseCommand()

	// set default pattern
	if cmd.aPattern == "" {
		cmd.aPattern = "*"
	}

	// configure logging
	if cmd.oDebug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// run desired command
	if cmd.cList {
		list(cmd, getConfig(cmd))
	} else if cmd.cVersion {
		version(cmd, getConfig(cmd))
	} else if cmd.cStress {
		stress(cmd, getConfig(cmd))
	} else if cmd.cDebug {
		debug(cmd, getConfig(cmd))
	} else if cmd.cDiscover {
		discover(cmd)
	} else if cmd.cPorts {
		ports()
	}
}

func list(cmd *command, cfg *config.Config) {
	// prepare table
	tbl := newTable("KEY", "TRANSPORT", "HOST", "TIMEOUT", "MAX MSGS", "MAX MSG SIZE")

	// add rows
	for _, key := range cfg.Keys(cmd.aPattern) {
		inst := cfg.Instances[key]
		desc, _ := inst.Desc()
		tbl.add(key, inst.Transport, strconv.Itoa(int(desc.HostID)), desc.Timeout.String(),
			strconv.Itoa(desc.MaxMsgs), bytefmt.ByteSize(uint64(desc.MaxMsgSize)))
	}

	// show table
	tbl.print()
}

func version(cmd *command, cfg *config.Config) {
	// create manager
	manager := sci.NewManager()
	defer manager.Close()

	// probe instances
	handles := probe(cmd, cfg, manager, cfg.Keys(cmd.aPattern))
	defer release(manager, handles)

	// query versions
	results := sci.Execute(handles, cmd.oParallel, func(h *sci.Handle) (any, error) {
		return h.GetRevision()
	})

	// prepare table
	tbl := newTable("KEY", "ABI", "REVISION", "DESCRIPTION", "ERROR")

	// add rows
	for i, res := range results {
		if res.Error != nil {
			tbl.add(handles[i].Key(), "", "", "", res.Error.Error())
			continue
		}
		ver := res.Value.(sci.Version)
		tbl.add(handles[i].Key(), fmt.Sprintf("%d.%d", ver.ABIMajor, ver.ABIMinor),
			fmt.Sprintf("0x%04x", ver.FirmwareRevision), ver.FirmwareDescription, "")
	}

	// show table
	tbl.print()
}

func stress(cmd *command, cfg *config.Config) {
	// prepare metrics
	metrics := sci.NewMetrics()
	registry := prometheus.NewRegistry()
	exitIfSet(metrics.Register(registry))

	// create manager
	manager := sci.NewManager(sci.WithMetrics(metrics))
	defer manager.Close()

	// probe instance
	handles := probe(cmd, cfg, manager, []string{cmd.aKey})
	defer release(manager, handles)

	// run requests
	start := time.Now()
	results := sci.Execute(lo.Times(cmd.oCount, func(int) *sci.Handle {
		return handles[0]
	}), cmd.oParallel, func(h *sci.Handle) (any, error) {
		return h.GetRevision()
	})
	elapsed := time.Since(start)

	// count failures
	failed := lo.CountBy(results, func(res sci.Result) bool {
		return res.Error != nil
	})

	// gather metrics
	families, err := registry.Gather()
	exitIfSet(err)

	// prepare table
	tbl := newTable("METRIC", "VALUE")
	tbl.add("requests", strconv.Itoa(len(results)))
	tbl.add("failed", strconv.Itoa(failed))
	tbl.add("elapsed", elapsed.String())
	for _, family := range families {
		for _, m := range family.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				labels := lo.Map(m.GetLabel(), func(l *dto.LabelPair, _ int) string {
					return l.GetValue()
				})
				tbl.add(family.GetName()+labelSuffix(labels), strconv.FormatFloat(m.GetCounter().GetValue(), 'f', 0, 64))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				if h.GetSampleCount() > 0 {
					avg := time.Duration(h.GetSampleSum() / float64(h.GetSampleCount()) * float64(time.Second))
					tbl.add(family.GetName()+" (avg)", avg.String())
				}
			}
		}
	}

	// show table
	tbl.print()
}

func debug(cmd *command, cfg *config.Config) {
	// create manager
	manager := sci.NewManager()
	defer manager.Close()

	// probe instance
	handles := probe(cmd, cfg, manager, []string{cmd.aKey})
	defer release(manager, handles)

	// read log
	log, err := handles[0].Instance().DebugLog()
	exitIfSet(err)

	// print log
	fmt.Print(log)
}

func discover(cmd *command) {
	// log info
	utils.Log(os.Stdout, "Discovering endpoints for %s...", cmd.oDuration)

	// discover endpoints
	locations, err := mdns.Discover(cmd.oDuration)
	exitIfSet(err)

	// sort by instance
	slices.SortFunc(locations, func(a, b mdns.Location) int {
		return strings.Compare(a.Instance, b.Instance)
	})

	// prepare table
	tbl := newTable("INSTANCE", "HOSTNAME", "URL")

	// add rows
	for _, loc := range locations {
		tbl.add(loc.Instance, loc.Hostname, loc.URL())
	}

	// show table
	tbl.print()
}

func ports() {
	// list ports
	list, err := serial.ListPorts()
	exitIfSet(err)

	// prepare table
	tbl := newTable("PATH")

	// add rows
	for _, path := range list {
		tbl.add(path)
	}

	// show table
	tbl.print()
}

func probe(cmd *command, cfg *config.Config, manager *sci.Manager, keys []string) []*sci.Handle {
	// check keys
	if len(keys) == 0 {
		exitWithError("no matching instances")
	}

	// probe instances
	var handles []*sci.Handle
	for _, key := range keys {
		utils.Log(os.Stderr, "Probing %s...", key)
		_, err := cfg.Probe(manager, key)
		if err != nil {
			utils.Log(os.Stderr, "Failed: %s", err)
			continue
		}
		h, err := manager.Registry().GetHandle(sci.BindTo("scictl", key))
		exitIfSet(err)
		handles = append(handles, h)
	}

	// check handles
	if len(handles) == 0 {
		exitWithError("no instance could be probed")
	}

	return handles
}

func release(manager *sci.Manager, handles []*sci.Handle) {
	for _, h := range handles {
		_ = manager.Registry().PutHandle(h)
	}
}
