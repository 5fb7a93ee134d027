package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/kafka"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
)

var errNotConfigured = errors.New("component not configured")

func newBootstrapCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the source and target collections and seed a new source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				out, err := c.Migrator.Bootstrap(ctx)
				if err != nil {
					return err
				}
				cfg := c.Migrator.Config()
				fmt.Fprintf(cmd.OutOrStdout(), "collections %s and %s ready\n", cfg.Source.Name, cfg.Target.Name)
				return printOutcome(cmd.OutOrStdout(), "seed", out)
			})
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy the source collection into the target collection",
		Long: "migrate copies every record of the source collection into the target collection, keeping IDs, " +
			"properties and the selected vector. A pair that was migrated before is skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				out, err := c.Migrator.Migrate(ctx)
				if printErr := printOutcome(cmd.OutOrStdout(), "migrate", out); err == nil {
					err = printErr
				}
				return err
			})
		},
	}
}

// queryFlags are shared by query and generate.
type queryFlags struct {
	collection string
	mode       string
	limit      int
	filter     map[string]string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.collection, "collection", "", "collection to query (default: the target collection)")
	cmd.Flags().StringVar(&q.mode, "mode", string(vectordb.ModeSimilarity), "similarity or hybrid")
	cmd.Flags().IntVar(&q.limit, "limit", 2, "maximum number of results")
	cmd.Flags().StringToStringVar(&q.filter, "filter", nil, "equality filter on properties, e.g. --filter genre=drama")
}

func (q *queryFlags) validate() error {
	switch vectordb.QueryMode(q.mode) {
	case vectordb.ModeSimilarity, vectordb.ModeHybrid:
	default:
		return fmt.Errorf("%w: unknown mode %q", vectordb.ErrInvalidQuery, q.mode)
	}
	if q.limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", vectordb.ErrInvalidQuery)
	}
	return nil
}

func (q *queryFlags) params() map[string]any {
	if len(q.filter) == 0 {
		return nil
	}
	filter := make(map[string]any, len(q.filter))
	for k, v := range q.filter {
		filter[k] = v
	}
	return map[string]any{vectordb.ParamFilter: filter}
}

func (q *queryFlags) target(c components) string {
	if q.collection != "" {
		return q.collection
	}
	return c.Migrator.Config().Target.Name
}

func newQueryCmd(flags *rootFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query TEXT",
		Short: "Run a similarity or hybrid query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := q.validate(); err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				collection := q.target(c)
				results, err := c.Migrator.Query(ctx, vectordb.QueryRequest{
					Collection: collection,
					Mode:       vectordb.QueryMode(q.mode),
					Text:       strings.Join(args, " "),
					Limit:      q.limit,
					Params:     q.params(),
				})
				if err != nil {
					return err
				}
				printQueryResults(cmd.OutOrStdout(), fmt.Sprintf("%s query on %s", q.mode, collection), results)
				return nil
			})
		},
	}
	q.register(cmd)
	return cmd
}

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	q := &queryFlags{}
	var prompt string
	cmd := &cobra.Command{
		Use:   "generate TEXT",
		Short: "Retrieve objects and generate one answer per object",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := q.validate(); err != nil {
				return err
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("%w: --prompt is required", vectordb.ErrInvalidQuery)
			}
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				collection := q.target(c)
				results, err := c.Migrator.Generate(ctx, vectordb.GenerateRequest{
					Collection:     collection,
					Text:           strings.Join(args, " "),
					PromptTemplate: prompt,
					Limit:          q.limit,
					Mode:           vectordb.QueryMode(q.mode),
					Params:         q.params(),
				})
				if err != nil {
					return err
				}
				printGenerated(cmd.OutOrStdout(), fmt.Sprintf("generated on %s", collection), results)
				return nil
			})
		},
	}
	q.register(cmd)
	cmd.Flags().StringVar(&prompt, "prompt", "Categorize genre: {title}", "prompt template, properties referenced as {name}")
	return cmd
}

func newDemoCmd(flags *rootFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the configured sample queries against a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				name := collection
				if name == "" {
					name = c.Migrator.Config().Source.Name
				}
				res, err := c.Migrator.Demo(ctx, name)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				demo := c.Migrator.Config().Demo
				printQueryResults(w, fmt.Sprintf("similarity %q on %s", demo.SimilarityText, name), res.Similarity)
				printQueryResults(w, fmt.Sprintf("hybrid %q on %s", demo.HybridText, name), res.Hybrid)
				printGenerated(w, fmt.Sprintf("generate %q on %s", demo.PromptTemplate, name), res.Generated)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to query (default: the source collection)")
	return cmd
}

func newLoadCmd(flags *rootFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk load records from the Kafka topic into a collection",
		Long: "load consumes JSON records from the configured Kafka topic and writes them to a collection. " +
			"The run ends when the topic stays idle for kafka.idle_timeout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, []fx.Option{kafka.FXModule}, func(ctx context.Context, c components) error {
				if c.Source == nil {
					return fmt.Errorf("kafka source: %w", errNotConfigured)
				}
				name := collection
				if name == "" {
					name = c.Migrator.Config().Source.Name
				}
				return printOutcome(cmd.OutOrStdout(), "load", c.Migrator.Load(ctx, "kafka_load", c.Source, name))
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to load into (default: the source collection)")
	return cmd
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish every record of a collection to the Kafka topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, []fx.Option{kafka.FXModule}, func(ctx context.Context, c components) error {
				if c.Sink == nil {
					return fmt.Errorf("kafka sink: %w", errNotConfigured)
				}
				name := collection
				if name == "" {
					name = c.Migrator.Config().Target.Name
				}
				return printOutcome(cmd.OutOrStdout(), "export", c.Migrator.Export(ctx, name, c.Sink))
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to export (default: the target collection)")
	return cmd
}

func newRetryCmd(flags *rootFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "retry ARCHIVE_KEY",
		Short: "Load the failed records of an archived run into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, nil, func(ctx context.Context, c components) error {
				if c.Archive == nil {
					return fmt.Errorf("failure archive (archive.enabled): %w", errNotConfigured)
				}
				src, err := c.Archive.RetrySource(ctx, args[0])
				if err != nil {
					return err
				}
				name := collection
				if name == "" {
					name = c.Migrator.Config().Target.Name
				}
				return printOutcome(cmd.OutOrStdout(), "retry", c.Migrator.Load(ctx, "retry", src, name))
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to load into (default: the target collection)")
	return cmd
}
