package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/256dpi/sci/pkg/config"
)

func exitIfSet(errs ...error) {
	for _, err := range errs {
		if err != nil {
			exitWithError(err.Error())
		}
	}
}

func exitWithError(str string) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", str)
	os.Exit(1)
}

func getConfig(cmd *command) *config.Config {
	cfg, err := config.Read(cmd.oConfig)
	exitIfSet(err)

	return cfg
}

func labelSuffix(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return "{" + strings.Join(labels, ",") + "}"
}
