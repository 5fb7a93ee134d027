// Package embedding computes dense text embeddings through an OpenAI compatible
// /embeddings endpoint.
//
// The qdrant package uses it to vectorize records that arrive without a vector for a
// slot with source properties, and to embed query text:
//
//	client, err := embedding.NewClient(embedding.Config{
//	    Endpoint: "https://api.openai.com/v1",
//	    APIKey:   os.Getenv("OPENAI_APIKEY"),
//	    Model:    "text-embedding-3-small",
//	})
//	vectors, err := client.Embed(ctx, []string{"Toy Story", "Jumanji"})
//
// Requests answered with 429 or 5xx are retried with exponential backoff, up to
// MaxRetries attempts.
package embedding
