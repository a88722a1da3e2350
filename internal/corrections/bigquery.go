package corrections

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// correctionRow is the BigQuery schema for a correction record.
type correctionRow struct {
	CorrectionID   string    `bigquery:"correction_id"`
	CompanyID      string    `bigquery:"company_id"`
	DescriptionKey string    `bigquery:"description_normalized"`
	Category       string    `bigquery:"corrected_category"`
	Embedding      []float64 `bigquery:"embedding"`
	CreatedAt      time.Time `bigquery:"created_ts"`
}

// BigQueryStore persists corrections in a BigQuery table. Inserts use the
// streaming inserter; reads are a plain parameterized query, so recent
// inserts may lag behind (streaming-buffer visibility), which the Memory
// read path tolerates.
type BigQueryStore struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryStore creates a store over an existing client.
func NewBigQueryStore(client *bigquery.Client, dataset, table string) *BigQueryStore {
	return &BigQueryStore{client: client, dataset: dataset, table: table}
}

func (s *BigQueryStore) Insert(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	embedding := make([]float64, len(rec.Embedding))
	for i, v := range rec.Embedding {
		embedding[i] = float64(v)
	}
	row := &correctionRow{
		CorrectionID:   rec.ID,
		CompanyID:      rec.CompanyID,
		DescriptionKey: rec.DescriptionNormalized,
		Category:       rec.CorrectedCategory,
		Embedding:      embedding,
		CreatedAt:      rec.CreatedAt,
	}
	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return "", fmt.Errorf("insert correction row: %w", err)
	}
	return rec.ID, nil
}

func (s *BigQueryStore) ListByCompany(ctx context.Context, companyID string) ([]Record, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT correction_id, company_id, description_normalized,
		       corrected_category, embedding, created_ts
		FROM %s.%s
		WHERE company_id = @company_id
		ORDER BY created_ts DESC
	`, s.dataset, s.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "company_id", Value: companyID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}

	var records []Record
	for {
		var row correctionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate corrections: %w", err)
		}
		embedding := make([]float32, len(row.Embedding))
		for i, v := range row.Embedding {
			embedding[i] = float32(v)
		}
		records = append(records, Record{
			ID:                    row.CorrectionID,
			CompanyID:             row.CompanyID,
			DescriptionNormalized: row.DescriptionKey,
			CorrectedCategory:     row.Category,
			Embedding:             embedding,
			CreatedAt:             row.CreatedAt,
		})
	}
	return records, nil
}
