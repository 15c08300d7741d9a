package experiment

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"deslab/internal/cfg"
	"deslab/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Source says where a dataset came from.
type Source struct {
	Name   string // short name used in reports and run history
	Origin string // file path, URL or "synthetic"
}

// LoadDataset picks the dataset the settings point at: a local CSV file, a CSV
// downloaded into DataPath, or the built-in synthetic dataset.
func LoadDataset(ctx context.Context, config *cfg.Settings) (*dataset.Dataset, Source, error) {
	switch {
	case config.DatasetPath != "":
		d, err := dataset.LoadCSV(config.DatasetPath, config.LabelColumn)
		if err != nil {
			return nil, Source{}, err
		}
		return d, Source{Name: baseName(config.DatasetPath), Origin: config.DatasetPath}, nil

	case config.DatasetURL != "":
		name, err := fileNameFromURL(config.DatasetURL)
		if err != nil {
			return nil, Source{}, err
		}
		fetcher := dataset.NewFetcher(filepath.Join(config.DataPath, "datasets"), config.FetchTimeout)
		local, err := fetcher.Fetch(ctx, config.DatasetURL, name)
		if err != nil {
			return nil, Source{}, err
		}
		d, err := dataset.LoadCSV(local, config.LabelColumn)
		if err != nil {
			return nil, Source{}, err
		}
		return d, Source{Name: baseName(name), Origin: config.DatasetURL}, nil

	default:
		d, err := dataset.Synthetic(config.Synthetic)
		if err != nil {
			return nil, Source{}, err
		}
		log.Info().
			Int("samples", config.Synthetic.Samples).
			Int("features", config.Synthetic.Features).
			Int("classes", config.Synthetic.Classes).
			Msg("Generated synthetic dataset")
		return d, Source{Name: "synthetic", Origin: "synthetic"}, nil
	}
}

func baseName(p string) string {
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}

func fileNameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid dataset URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("dataset URL %q must be http or https", raw)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = u.Host + ".csv"
	}
	return name, nil
}
