package salesforce

// Record is a single row returned by the query API, keyed by field name.
// Nested relationship collections decode as map[string]any / []any values.
type Record map[string]any

// attributesKey is the bookkeeping entry the query API attaches to every
// record. It never belongs in exported output.
const attributesKey = "attributes"

type QueryResult struct {
	TotalSize      int      `json:"totalSize"`
	Done           bool     `json:"done"`
	NextRecordsURL string   `json:"nextRecordsUrl"`
	Records        []Record `json:"records"`
}

// FlattenRelationship replaces each top-level record with the contents of its
// nested relationship collection. Records without the relationship key, or
// with an empty collection, are dropped.
func FlattenRelationship(records []Record, relationship string) []Record {
	var flattened []Record

	for _, record := range records {
		nested, ok := record[relationship].(map[string]any)
		if !ok {
			continue
		}

		subRecords, ok := nested["records"].([]any)
		if !ok {
			continue
		}

		for _, sub := range subRecords {
			if m, ok := sub.(map[string]any); ok {
				flattened = append(flattened, Record(m))
			}
		}
	}

	return flattened
}
