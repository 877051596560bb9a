package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the configured embedder's output dimension.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements rag.Index backed by a Qdrant collection. The score
// threshold and result cap are pushed down to the server, so the ordering and
// cutoff semantics match the in-memory index exactly. Qdrant owns its own
// durability; Save is not supported and the service skips snapshotting.
type Qdrant struct {
	client *qdrant.Client
	cfg    *QdrantConfig
}

// NewQdrant connects to Qdrant, ensures the target collection exists with a
// cosine distance configuration, and returns a ready-to-use index.
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	q := &Qdrant{client: client, cfg: cfg}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Client exposes the underlying Qdrant client for health probing.
func (q *Qdrant) Client() *qdrant.Client {
	return q.client
}

// ensureCollection creates the collection if it does not already exist.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// Add upserts all entries into the collection as one request. Qdrant applies
// the batch atomically per request, preserving the all-or-nothing contract.
func (q *Qdrant) Add(ctx context.Context, entries []rag.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		payload := map[string]interface{}{
			"document_id": e.Segment.DocumentID,
			"text":        e.Segment.Text,
		}
		for k, v := range e.Segment.Metadata {
			payload["meta_"+k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search runs a cosine similarity query with the score threshold applied
// server-side and returns up to maxResults matches in descending score order.
func (q *Qdrant) Search(ctx context.Context, query []float32, maxResults int, minScore float64) ([]rag.Match, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	limit := uint64(maxResults)
	threshold := float32(minScore)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	matches := make([]rag.Match, 0, len(results))
	for _, r := range results {
		seg := rag.Segment{}
		if p := r.Payload; p != nil {
			if v, ok := p["document_id"]; ok {
				seg.DocumentID = v.GetStringValue()
			}
			if v, ok := p["text"]; ok {
				seg.Text = v.GetStringValue()
			}
			for k, v := range p {
				if len(k) > 5 && k[:5] == "meta_" {
					if seg.Metadata == nil {
						seg.Metadata = make(map[string]string)
					}
					seg.Metadata[k[5:]] = v.GetStringValue()
				}
			}
		}
		matches = append(matches, rag.Match{Segment: seg, Score: float64(r.Score)})
	}
	return matches, nil
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
