package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/ivan-cunha/feather-format/internal/storage"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// catCommand prints a projection of a feather file as a table.
type catCommand struct {
	g       *globalFlags
	file    *string
	columns *string
	rows    *string
}

func (cmd *catCommand) run(c *kingpin.ParseContext) error {
	rd, err := storage.OpenFile(*cmd.file, storage.DefaultConfig().Reader, storage.Options{Logger: cmd.g.logger()})
	if err != nil {
		exitWithErr(fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = rd.Close() }()

	var opts storage.ReadOptions
	if *cmd.columns != "" {
		for _, name := range strings.Split(*cmd.columns, ",") {
			opts.Columns = append(opts.Columns, strings.TrimSpace(name))
		}
	}
	if *cmd.rows != "" {
		r, err := parseRowRange(*cmd.rows, rd.NumRows())
		if err != nil {
			exitWithErr(err)
		}
		opts.Rows = r
	}

	tbl, err := rd.ReadTable(context.Background(), opts)
	if err != nil {
		exitWithErr(err)
	}
	printTable(tbl)
	return nil
}

// parseRowRange parses "start:end". Either bound may be omitted.
func parseRowRange(s string, numRows int64) (*storage.RowRange, error) {
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid row range %q: expected start:end", s)
	}
	r := &storage.RowRange{Start: 0, End: numRows}
	var err error
	if startStr != "" {
		if r.Start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid row range start %q: %w", startStr, err)
		}
	}
	if endStr != "" {
		if r.End, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid row range end %q: %w", endStr, err)
		}
	}
	return r, nil
}

func printTable(tbl *types.Table) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	header := color.New(color.Bold)
	for i, name := range tbl.Names() {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		header.Fprint(tw, name)
	}
	fmt.Fprintln(tw)

	for row := 0; row < tbl.NumRows(); row++ {
		for i, nc := range tbl.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, formatValue(nc.Column, row))
		}
		fmt.Fprintln(tw)
	}
}

func formatValue(col *types.Column, row int) string {
	if col.IsNull(row) {
		return "NA"
	}
	switch col.Type() {
	case types.Float32Type:
		return strconv.FormatFloat(col.Float64(row), 'g', -1, 32)
	case types.Float64Type:
		return strconv.FormatFloat(col.Float64(row), 'g', -1, 64)
	case types.BinaryType:
		return hex.EncodeToString(col.Bytes(row))
	case types.DateType:
		return col.Time(row).Format(time.DateOnly)
	case types.TimestampType:
		return col.Time(row).Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(col.Value(row))
	}
}

func addCatCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &catCommand{g: g}
	cat := app.Command("cat", "Print the rows of a feather file.").Action(cmd.run)
	cmd.file = cat.Arg("file", "The file to print.").Required().ExistingFile()
	cmd.columns = cat.Flag("columns", "Comma separated names of the columns to print.").String()
	cmd.rows = cat.Flag("rows", "Row range to print, as start:end.").String()
}
