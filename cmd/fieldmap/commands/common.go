package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/source"
	"github.com/rpattn/fieldmap/pkg/validator"
)

// bindFlag ties a flag to a viper key so config files and environment
// variables share one precedence chain with the command line.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}

// executorOptions derives the executor settings from configuration.
func (a *app) executorOptions(extra ...mapper.Option) []mapper.Option {
	opts := []mapper.Option{
		mapper.WithConcurrency(a.cfg.Executor.Concurrency),
		mapper.WithLogger(log.Logger),
	}
	if a.cfg.Executor.ValidateOutput {
		opts = append(opts, mapper.WithOutputValidation(validator.NewRowValidator()))
	}
	return append(opts, extra...)
}

// loadLookupFiles parses name=path pairs into an in-memory lookup source.
func loadLookupFiles(specs []string) (*lookup.MemorySource, error) {
	memory := lookup.NewMemorySource()
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid lookup %q: expected name=path", spec)
		}
		table, err := source.ParseFile(path, source.Options{TableName: name})
		if err != nil {
			return nil, fmt.Errorf("failed to load lookup %s: %w", name, err)
		}
		memory.AddRecords(name, table.Records)
		log.Debug().Str("lookup", name).Int("rows", len(table.Records)).Msg("lookup table loaded")
	}
	return memory, nil
}

func printJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
