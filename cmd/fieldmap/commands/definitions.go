package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/fieldmap/internal/config"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/repository"
)

func newDefinitionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Store and inspect mapping definitions in the database",
	}
	cmd.AddCommand(newDefinitionsSaveCmd(a))
	cmd.AddCommand(newDefinitionsListCmd(a))
	cmd.AddCommand(newDefinitionsShowCmd(a))
	cmd.AddCommand(newDefinitionsDeleteCmd(a))
	cmd.AddCommand(newDefinitionsLogsCmd(a))
	return cmd
}

// withRepositories opens the database for the duration of fn.
func (a *app) withRepositories(ctx context.Context, fn func(repository.MappingRepository, repository.RunLogRepository) error) error {
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(repository.NewMappingRepository(conn.Pool), repository.NewRunLogRepository(conn.Pool))
}

func newDefinitionsSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Compile a definition file and store it, replacing any definition with the same name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := config.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			if _, err := mapper.NewExecutor().Compile(def); err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			var saved domain.MappingDefinition
			err = conn.WithTx(ctx, func(tx pgx.Tx) error {
				var saveErr error
				saved, saveErr = saveDefinition(ctx, repository.NewMappingRepository(tx), def)
				return saveErr
			})
			if err != nil {
				return err
			}
			log.Info().Str("mapping", saved.Name).Str("id", saved.ID.String()).Msg("definition saved")
			return nil
		},
	}
}

// saveDefinition replaces the stored definition with the same name, or
// creates one when none exists.
func saveDefinition(ctx context.Context, mappings repository.MappingRepository, def domain.MappingDefinition) (domain.MappingDefinition, error) {
	existing, err := mappings.GetByName(ctx, def.Name)
	switch {
	case err == nil:
		def.ID = existing.ID
		def.CreatedAt = existing.CreatedAt
		return mappings.Update(ctx, def.WithDescription(def.Description))
	case errors.Is(err, repository.ErrNotFound):
		created := domain.NewMappingDefinition(def.Name, def.Source, def.Target, def.Fields).WithDescription(def.Description)
		return mappings.Create(ctx, created)
	default:
		return domain.MappingDefinition{}, err
	}
}

func newDefinitionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepositories(ctx, func(mappings repository.MappingRepository, _ repository.RunLogRepository) error {
				defs, err := mappings.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSOURCE\tTARGET\tFIELDS\tUPDATED")
				for _, def := range defs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", def.Name, def.Source.Name, def.Target.Name,
						len(def.Fields), def.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
}

func newDefinitionsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepositories(ctx, func(mappings repository.MappingRepository, _ repository.RunLogRepository) error {
				def, err := mappings.GetByName(ctx, args[0])
				if err != nil {
					return err
				}
				encoder := yaml.NewEncoder(os.Stdout)
				encoder.SetIndent(2)
				if err := encoder.Encode(def); err != nil {
					return err
				}
				return encoder.Close()
			})
		},
	}
}

func newDefinitionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepositories(ctx, func(mappings repository.MappingRepository, _ repository.RunLogRepository) error {
				def, err := mappings.GetByName(ctx, args[0])
				if err != nil {
					return err
				}
				if err := mappings.Delete(ctx, def.ID); err != nil {
					return err
				}
				log.Info().Str("mapping", def.Name).Msg("definition deleted")
				return nil
			})
		},
	}
}

func newDefinitionsLogsCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show recorded row failures of a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepositories(ctx, func(_ repository.MappingRepository, runLogs repository.RunLogRepository) error {
				entries, err := runLogs.ListByMapping(ctx, args[0], limit, offset)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}
