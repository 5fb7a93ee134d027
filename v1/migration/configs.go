package migration

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
)

// Config describes the two collections of a migration and how records move between them.
type Config struct {
	// Source is the collection records are read from. It is created and seeded by
	// Bootstrap when missing.
	Source vectordb.CollectionSchema `yaml:"source"`

	// Target is the collection records are migrated to.
	Target vectordb.CollectionSchema `yaml:"target"`

	// Load drives bulk loads into a collection, including seeding.
	Load transfer.Config `yaml:"load"`

	// Migrate drives the copy from Source to Target.
	Migrate transfer.Config `yaml:"migrate"`

	// Vector selects the vector slot copied by a migration.
	Vector transfer.VectorSelection `yaml:"vector"`

	// SeedOnCreate loads Seed into Source right after Bootstrap created it.
	SeedOnCreate bool `yaml:"seed_on_create"`

	// Seed holds the records loaded into a freshly created Source.
	Seed []SeedRecord `yaml:"seed"`

	// ArchiveFailures stores the failed records of every run when an archive is configured.
	ArchiveFailures bool `yaml:"archive_failures"`

	// Demo holds the queries run by Demo.
	Demo DemoConfig `yaml:"demo"`
}

// SeedRecord is a record in the configuration file.
type SeedRecord struct {
	ID         string         `yaml:"id"`
	Properties map[string]any `yaml:"properties"`
}

// DemoConfig lists the sample queries run against a collection.
type DemoConfig struct {
	SimilarityText string `yaml:"similarity_text"`
	HybridText     string `yaml:"hybrid_text"`
	GenerateText   string `yaml:"generate_text"`
	PromptTemplate string `yaml:"prompt_template"`
	Limit          int    `yaml:"limit"`
}

// Logger is the subset of the vecmigrate/v1/logger.Logger interface used here. It is
// also handed to the transfer engine.
type Logger interface {
	transfer.Logger
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// DefaultConfig returns the movie collections, sample records and queries of the
// stock migration: OriginalCollection embeds titles, NewCollection embeds titles and
// descriptions, both with three replicas and hybrid search.
func DefaultConfig() Config {
	return Config{
		Source: vectordb.CollectionSchema{
			Name:              "OriginalCollection",
			ReplicationFactor: 3,
			Vectors: []vectordb.NamedVector{{
				Name:             "title_vector",
				SourceProperties: []string{"title"},
				Size:             1024,
				Distance:         vectordb.DistanceCosine,
			}},
			Hybrid: true,
		},
		Target: vectordb.CollectionSchema{
			Name:              "NewCollection",
			ReplicationFactor: 3,
			Vectors: []vectordb.NamedVector{{
				Name:             "title_vector",
				SourceProperties: []string{"title", "description"},
				Size:             1024,
				Distance:         vectordb.DistanceCosine,
			}},
			Hybrid: true,
		},
		Load:    transfer.DefaultConfig(),
		Migrate: transfer.DefaultConfig(),
		Vector: transfer.VectorSelection{
			Priority: []string{"title_vector"},
		},
		SeedOnCreate:    true,
		Seed:            defaultSeed(),
		ArchiveFailures: true,
		Demo: DemoConfig{
			SimilarityText: "Christmas",
			HybridText:     "Family friendly",
			GenerateText:   "A movie",
			PromptTemplate: "Categorize genre: {title}",
			Limit:          2,
		},
	}
}

func defaultSeed() []SeedRecord {
	movies := []struct{ title, description string }{
		{"The Shawshank Redemption", "A wrongfully imprisoned man forms an inspiring friendship while finding hope and redemption in the darkest of places."},
		{"The Godfather", "A powerful mafia family struggles to balance loyalty, power, and betrayal in this iconic crime saga."},
		{"The Dark Knight", "Batman faces his greatest challenge as he battles the chaos unleashed by the Joker in Gotham City."},
		{"Jingle All the Way", "A desperate father goes to hilarious lengths to secure the season's hottest toy for his son on Christmas Eve."},
		{"A Christmas Carol", "A miserly old man is transformed after being visited by three ghosts on Christmas Eve in this timeless tale of redemption."},
	}
	seed := make([]SeedRecord, len(movies))
	for i, m := range movies {
		seed[i] = SeedRecord{
			ID:         fmt.Sprintf("%d", i+1),
			Properties: map[string]any{"title": m.title, "description": m.description},
		}
	}
	return seed
}

// Validate checks both schemas and both transfer configs.
func (c Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source collection: %w", err)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target collection: %w", err)
	}
	if c.Source.Name == c.Target.Name {
		return fmt.Errorf("%w: source and target are both %q", ErrInvalidConfig, c.Source.Name)
	}
	if err := c.Load.Validate(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := c.Migrate.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedRecords converts the configured seed into transfer records.
func (c Config) SeedRecords() []transfer.Record {
	records := make([]transfer.Record, len(c.Seed))
	for i, s := range c.Seed {
		records[i] = transfer.Record{ID: s.ID, Properties: s.Properties}
	}
	return records
}
