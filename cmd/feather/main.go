package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const FeatherExtension = ".feather"

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel *string
}

func (g *globalFlags) logger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	var allow level.Option
	switch *g.logLevel {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		allow = level.AllowInfo()
	}
	return level.NewFilter(logger, allow)
}

func main() {
	app := kingpin.New("feather", "Convert CSV files to feather and inspect feather files.")
	g := &globalFlags{
		logLevel: app.Flag("log.level", "Only log messages with the given severity or above.").
			Default("info").Enum("debug", "info", "warn", "error"),
	}

	addConvertCommand(app, g)
	addInfoCommand(app, g)
	addCatCommand(app, g)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

// ensureFeatherExtension ensures the file has the .feather extension
func ensureFeatherExtension(filename string) string {
	if !strings.HasSuffix(strings.ToLower(filename), FeatherExtension) {
		return filename + FeatherExtension
	}
	return filename
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
