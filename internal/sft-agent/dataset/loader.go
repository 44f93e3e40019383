package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// ScreeningLoader reads delimited question/answer files.
type ScreeningLoader struct {
	delimiter string
	logger    logging.Interface
}

// NewScreeningLoader creates a loader splitting columns on delimiter.
func NewScreeningLoader(delimiter string, logger logging.Interface) *ScreeningLoader {
	if delimiter == "" {
		delimiter = ","
	}
	return &ScreeningLoader{delimiter: delimiter, logger: logger}
}

// LoadDataScreening reads every row of the file at path that has a
// non-empty question and answer, in file order. Columns other than
// question and answer are ignored.
func (l *ScreeningLoader) LoadDataScreening(ctx context.Context, path string) (RecordSet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("screening dataset %s: %w", path, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	query := fmt.Sprintf(`SELECT question, answer
FROM read_csv(%s, header = true, delim = %s, all_varchar = true)
WHERE question IS NOT NULL AND answer IS NOT NULL
  AND trim(question) <> '' AND trim(answer) <> ''`,
		quoteLiteral(path), quoteLiteral(l.delimiter))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedInput, path, err)
	}
	defer func() { _ = rows.Close() }()

	var records RecordSet
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Question, &r.Answer); err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %v", ErrMalformedInput, path, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedInput, path, err)
	}

	l.logger.WithField("path", path).
		WithField("records", len(records)).
		Info("Loaded screening dataset")
	return records, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
