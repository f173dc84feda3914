package graph

import "context"

// Counts is a cheap aggregate over the whole graph, for the HTTP
// facade's GET /stats endpoint.
type Counts struct {
	Entities  int64
	LiveEdges int64
	Documents int64
}

func (c *Client) Counts(ctx context.Context) (Counts, error) {
	query := `
		CALL {
			MATCH (e:Entity) RETURN count(e) AS entities
		}
		CALL {
			MATCH ()-[r:` + relationType + `]->() WHERE r.valid_to IS NULL RETURN count(r) AS live_edges
		}
		CALL {
			MATCH (d:Document) RETURN count(d) AS documents
		}
		RETURN entities, live_edges, documents
	`
	result, err := c.runRead(ctx, query, nil)
	if err != nil {
		return Counts{}, err
	}
	if len(result.Records) == 0 {
		return Counts{}, nil
	}
	m := result.Records[0].AsMap()
	return Counts{
		Entities:  asInt64(m["entities"]),
		LiveEdges: asInt64(m["live_edges"]),
		Documents: asInt64(m["documents"]),
	}, nil
}
