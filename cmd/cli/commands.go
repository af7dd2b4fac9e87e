package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type exportCommand struct {
	Output string `short:"o" long:"output" description:"file to write, stdout when empty"`
}

func (c *exportCommand) Execute(_ []string) error {
	ctx := context.Background()
	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := io.Writer(os.Stdout)
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return exportLinks(ctx, a.Repo, out)
}

type importCommand struct {
	File string `short:"f" long:"file" description:"JSON file to import" required:"true"`
}

func (c *importCommand) Execute(_ []string) error {
	ctx := context.Background()
	a, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	imported, skipped, err := importLinks(ctx, a.Links, f, logger)
	if err != nil {
		return err
	}
	logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("import finished")
	return nil
}

type sweepCommand struct{}

func (c *sweepCommand) Execute(_ []string) error {
	ctx := context.Background()
	a, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	archived, err := a.Sweeper.SweepExpired(ctx)
	logger.Info().Int("archived", archived).Msg("sweep finished")
	return err
}

func exportLinks(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

type linkImporter interface {
	ImportLink(ctx context.Context, link *domain.Link) error
}

// importLinks stores every decoded link that passes validation and whose short
// code is free. Rejected links are logged and counted as skipped; a storage
// failure aborts the run.
func importLinks(ctx context.Context, importer linkImporter, r io.Reader, logger zerolog.Logger) (imported, skipped int, err error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, 0, fmt.Errorf("decode failed: %w", err)
	}

	for i := range links {
		l := &links[i]
		if err := importer.ImportLink(ctx, l); err != nil {
			if errors.Is(err, domain.ErrStorage) {
				return imported, skipped, err
			}
			logger.Warn().Err(err).Int("index", i).Str("short_code", l.ShortCode).Msg("skipping link")
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}
