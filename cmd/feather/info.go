package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ivan-cunha/feather-format/internal/storage"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// infoCommand prints the metadata of feather files.
type infoCommand struct {
	g     *globalFlags
	files *[]string
}

func (cmd *infoCommand) run(c *kingpin.ParseContext) error {
	for _, f := range *cmd.files {
		cmd.printInfo(f)
	}
	return nil
}

func (cmd *infoCommand) printInfo(name string) {
	rd, err := storage.OpenFile(name, storage.DefaultConfig().Reader, storage.Options{Logger: cmd.g.logger()})
	if err != nil {
		exitWithErr(fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = rd.Close() }()

	info := rd.Info()
	bold := color.New(color.Bold)
	bold.Printf("File: %s\n", filepath.Base(name))
	fmt.Printf("\tversion: %d, rows: %d, columns: %d, size: %v\n",
		info.Version, info.NumRows, len(info.Columns), humanize.Bytes(uint64(info.Size)))
	if info.Description != "" {
		fmt.Printf("\tdescription: %s\n", info.Description)
	}

	bold.Println("Columns:")
	for _, col := range info.Columns {
		var raw int64
		codecs := make([]string, 0, len(col.Blocks))
		for _, b := range col.Blocks {
			raw += b.RawLength
			codecs = append(codecs, b.Kind.String()+"="+b.Compression)
		}

		typ := col.Type.String()
		switch {
		case col.Category != nil:
			typ = fmt.Sprintf("%s(levels=%d, ordered=%v, code width=%d)", typ, col.Category.Levels, col.Ordered, col.Category.CodeWidth)
		case col.Type == types.TimestampType:
			typ = fmt.Sprintf("%s(unit=%s, tz=%q)", typ, col.Unit, col.Timezone)
		}

		color.New(color.FgCyan).Printf("\t%s", col.Name)
		fmt.Printf(" %s, nulls: %d, stored: %v, raw: %v, blocks: %s\n",
			typ, col.NullCount,
			humanize.Bytes(uint64(col.StoredSize())),
			humanize.Bytes(uint64(raw)),
			strings.Join(codecs, " "))
	}
}

func addInfoCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &infoCommand{g: g}
	info := app.Command("info", "Print the metadata of feather files.").Action(cmd.run)
	cmd.files = info.Arg("file", "The files to inspect.").Required().ExistingFiles()
}
