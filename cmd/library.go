package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/tasks"
)

// Libraries lists the libraries on the server, marking music libraries.
func (r *Runner) Libraries(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	libraries, err := catalog.ListLibraries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list libraries: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(libraries, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s libraries", catalog.Name()))
	for _, lib := range libraries {
		marker := " "
		if lib.Name == r.config.Plex.Library || lib.ID == r.config.Plex.Library {
			marker = "*"
		}
		r.writePlain("%s %-4s %-24s %s\n", marker, lib.ID, lib.Name, lib.Type)
	}
	return nil
}

// csvSource is the table named by --file or --text.
type csvSource struct {
	data     []byte
	text     string
	encoding string
	name     string
}

func readSource(cmd *cli.Command) (csvSource, error) {
	file, text := cmd.String("file"), cmd.String("text")
	switch {
	case file == "" && text == "":
		return csvSource{}, fmt.Errorf("%w: either --file or --text must be provided", shared.ErrMissingArgument)
	case file != "" && text != "":
		return csvSource{}, fmt.Errorf("%w: cannot specify both --file and --text", shared.ErrInvalidArgument)
	case text != "":
		return csvSource{text: text, name: "text"}, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return csvSource{}, fmt.Errorf("%w: failed to read %s: %v", shared.ErrInvalidInput, file, err)
	}
	return csvSource{data: data, encoding: cmd.String("encoding"), name: file}, nil
}

func previewSource(importer *tasks.Importer, src csvSource) (*tasks.Preview, error) {
	if src.data != nil {
		return importer.Preview(src.data, src.encoding)
	}
	return importer.PreviewText(src.text)
}

// Preview prints the normalized rows of a CSV. No server connection is needed.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	src, err := readSource(cmd)
	if err != nil {
		return err
	}

	importer := r.newImporter(nil)
	defer importer.Shutdown()

	preview, err := previewSource(importer, src)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(preview, true)
	}

	r.logger.Debug("preview", "source", src.name, "delimiter", preview.Delimiter, "encoding", preview.Encoding)
	r.writePlain("%s", preview.CSV)
	r.writePlainln("%d rows (%d dropped), delimiter %q, encoding %s", preview.Count, preview.Dropped, preview.Delimiter, preview.Encoding)
	return nil
}
