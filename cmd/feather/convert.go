package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/ivan-cunha/feather-format/internal/csvconv"
	"github.com/ivan-cunha/feather-format/internal/storage"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// convertCommand converts a CSV file with a header row into a feather file.
type convertCommand struct {
	g *globalFlags

	input       *string
	output      *string
	configFile  *string
	compression *string
	threshold   *float64
	sampleSize  *int
	unit        *string
	description *string
}

func (cmd *convertCommand) run(c *kingpin.ParseContext) error {
	logger := cmd.g.logger()

	cfg := storage.DefaultConfig()
	if *cmd.configFile != "" {
		var err error
		if cfg, err = storage.LoadConfigFile(*cmd.configFile); err != nil {
			exitWithErr(err)
		}
	}
	if *cmd.compression != "" {
		cfg.Writer.Compression = *cmd.compression
	}
	if err := cfg.Validate(); err != nil {
		exitWithErr(err)
	}

	var unit types.TimeUnit
	if err := unit.UnmarshalText([]byte(*cmd.unit)); err != nil {
		exitWithErr(err)
	}

	in, err := os.Open(*cmd.input)
	if err != nil {
		exitWithErr(fmt.Errorf("error opening CSV file: %w", err))
	}
	defer func() { _ = in.Close() }()

	res, err := csvconv.Convert(in, csvconv.Options{
		SampleSize:           *cmd.sampleSize,
		CategoricalThreshold: *cmd.threshold,
		TimestampUnit:        unit,
		Description:          *cmd.description,
		Logger:               logger,
	})
	if err != nil {
		exitWithErr(fmt.Errorf("error converting %s: %w", *cmd.input, err))
	}

	w, err := storage.NewWriter(cfg.Writer, storage.Options{Logger: logger})
	if err != nil {
		exitWithErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	output := ensureFeatherExtension(*cmd.output)
	if err := w.Write(ctx, res.Table, output); err != nil {
		exitWithErr(fmt.Errorf("error writing %s: %w", output, err))
	}

	fi, err := os.Stat(output)
	if err != nil {
		exitWithErr(err)
	}
	fmt.Printf("Converted %s to %s: %d rows, %d columns, %s\n",
		*cmd.input, output, res.Table.NumRows(), res.Table.NumColumns(), humanize.Bytes(uint64(fi.Size())))
	for _, fb := range res.Fallbacks {
		fmt.Printf("  column %q stored as utf8: %v\n", fb.ColumnName, fb)
	}
	return nil
}

func addConvertCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &convertCommand{g: g}
	convert := app.Command("convert", "Convert a CSV file to a feather file.").Action(cmd.run)
	cmd.input = convert.Arg("csv", "The CSV file to convert.").Required().ExistingFile()
	cmd.output = convert.Arg("out", "The feather file to write.").Required().String()
	cmd.configFile = convert.Flag("config.file", "YAML file holding the writer configuration.").String()
	cmd.compression = convert.Flag("compression", "Block compression codec. Overrides the config file.").String()
	cmd.threshold = convert.Flag("categorical-threshold", "Store text columns as categories when distinct values are at most this fraction of values. 0 disables.").Default("0").Float64()
	cmd.sampleSize = convert.Flag("sample-size", "Number of rows used to infer column types.").Default("100").Int()
	cmd.unit = convert.Flag("timestamp-unit", "Unit of timestamp columns: s, ms, us or ns.").Default("ms").Enum("s", "ms", "us", "ns")
	cmd.description = convert.Flag("description", "Description stored in the file.").String()
}
