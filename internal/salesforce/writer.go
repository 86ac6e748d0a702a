package salesforce

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// FetchTimeField is the name of the column stamped onto every record when the
// fetch timestamp transform is enabled.
const FetchTimeField = "time_fetched_from_salesforce"

type WriteOptions struct {
	Format           string
	CoerceTimestamps bool
	IncludeFetchTime bool
}

// timestampLayouts are the date and datetime formats the query API emits.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
	"2006-01-02",
}

// WriteRecords serializes records to path in the requested format. The
// attributes bookkeeping entry is dropped from every record. Optional
// transforms: date/datetime values coerced to numeric UTC Unix timestamps,
// and a fetch-time field stamped on every record.
func WriteRecords(records []Record, path string, opts WriteOptions) error {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatCSV
	}

	fetchTime := time.Now().UTC().Unix()

	rows := make([]Record, len(records))
	for i, record := range records {
		row := make(Record, len(record)+1)
		for field, value := range record {
			if field == attributesKey {
				continue
			}
			if opts.CoerceTimestamps {
				value = coerceTimestamp(value)
			}
			row[field] = value
		}
		if opts.IncludeFetchTime {
			row[FetchTimeField] = fetchTime
		}
		rows[i] = row
	}

	switch format {
	case FormatCSV:
		return writeCSV(rows, path)
	case FormatJSON:
		return writeJSON(rows, path)
	case FormatNDJSON:
		return writeNDJSON(rows, path)
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

// coerceTimestamp converts string values that parse as a date or datetime to
// a UTC Unix timestamp. Anything else passes through unchanged.
func coerceTimestamp(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Unix()
		}
	}

	return value
}

// fieldNames returns the sorted union of field names across all rows, so the
// CSV header is deterministic even when records are sparse.
func fieldNames(rows []Record) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for field := range row {
			seen[field] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return fields
}

func writeCSV(rows []Record, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer file.Close()

	fields := fieldNames(rows)

	w := csv.NewWriter(file)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	cells := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			cells[i] = formatCell(row[field])
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv output: %w", err)
	}

	return nil
}

func formatCell(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

func writeJSON(rows []Record, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer file.Close()

	if rows == nil {
		rows = []Record{}
	}

	if err := json.NewEncoder(file).Encode(rows); err != nil {
		return fmt.Errorf("failed to write json output: %w", err)
	}

	return nil
}

func writeNDJSON(rows []Record, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write ndjson row: %w", err)
		}
	}

	return nil
}
