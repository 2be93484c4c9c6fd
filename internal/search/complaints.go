package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ESURL},
		Username:  cfg.ESUser,
		Password:  cfg.ESPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return client, nil
}

// ComplaintIndex mirrors complaint rows into a single index and serves
// full-text queries over them.
type ComplaintIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewComplaintIndex(es *elasticsearch.Client, index string) *ComplaintIndex {
	return &ComplaintIndex{ES: es, Index: index}
}

func (i *ComplaintIndex) IndexComplaint(ctx context.Context, c *models.Complaint) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}

	res, err := i.ES.Index(
		i.Index,
		bytes.NewReader(doc),
		i.ES.Index.WithDocumentID(c.ID.String()),
		i.ES.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index complaint: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index complaint: %s: %s", res.Status(), body)
	}
	return nil
}

func (i *ComplaintIndex) Search(ctx context.Context, query string, from, size int) (int64, []models.Complaint, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"type^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Index),
		i.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search complaints: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search complaints: %s: %s", res.Status(), bodyBytes)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Complaint `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	out := make([]models.Complaint, len(r.Hits.Hits))
	for idx, hit := range r.Hits.Hits {
		out[idx] = hit.Source
	}
	return r.Hits.Total.Value, out, nil
}
