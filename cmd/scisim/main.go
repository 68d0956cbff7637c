package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/256dpi/sci/pkg/mdns"
	"github.com/256dpi/sci/pkg/sci"
	"github.com/256dpi/sci/pkg/sim"
	"github.com/256dpi/sci/pkg/utils"
)

func main() {
	// parse command
	cmd := parseCommand()

	// prepare firmware
	fw := &sim.Firmware{
		Version: sci.Version{
			ABIMajor:            cmd.oABIMajor,
			ABIMinor:            cmd.oABIMinor,
			FirmwareRevision:    cmd.oRevision,
			FirmwareDescription: cmd.oDescription,
		},
		Delay: func(sci.Header) time.Duration {
			return cmd.oDelay
		},
	}

	// prepare mux
	mux := http.NewServeMux()
	mux.Handle(cmd.oPath, fw.Handler())

	// listen
	listener, err := net.Listen("tcp", cmd.oAddr)
	exitIfSet(err)

	// log info
	utils.Log(os.Stdout, "Serving on ws://%s%s", listener.Addr(), cmd.oPath)

	// announce endpoint
	if cmd.oAnnounce != "" {
		_, port, _ := net.SplitHostPort(listener.Addr().String())
		num, _ := strconv.Atoi(port)
		stop, err := mdns.Announce(cmd.oAnnounce, num, cmd.oPath)
		exitIfSet(err)
		defer stop()
		utils.Log(os.Stdout, "Announced as %s", cmd.oAnnounce)
	}

	// serve
	server := &http.Server{Handler: mux}
	go func() {
		err := server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("server failed")
		}
	}()

	// wait for interrupt
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	<-signals

	// close server
	_ = server.Close()

	// log info
	utils.Log(os.Stdout, "Served %d requests", fw.Requests())
}
