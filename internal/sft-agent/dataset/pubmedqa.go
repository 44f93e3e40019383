package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// PubMedQAFiles are the corpus dumps read by default, in merge order.
var PubMedQAFiles = []string{"ori_pqal.json", "ori_pqaa.json", "ori_pqau.json"}

type pubMedQAEntry struct {
	Question   string `json:"QUESTION"`
	LongAnswer string `json:"LONG_ANSWER"`
}

// PubMedQARetriever reads the PubMedQA corpus.
type PubMedQARetriever struct {
	fs     afero.Fs
	dir    string
	files  []string
	logger logging.Interface
}

// NewPubMedQARetriever creates a retriever for files under dir. An empty
// files list means PubMedQAFiles.
func NewPubMedQARetriever(fs afero.Fs, dir string, files []string, logger logging.Interface) *PubMedQARetriever {
	if len(files) == 0 {
		files = PubMedQAFiles
	}
	return &PubMedQARetriever{fs: fs, dir: dir, files: files, logger: logger}
}

// RetrievePubMedQARecords merges the corpus files into one keyed mapping and
// returns a record per key. A key present in several files takes the entry
// of the last file but keeps the position where it was first seen.
func (p *PubMedQARetriever) RetrievePubMedQARecords() (RecordSet, error) {
	merged := newOrderedEntries()
	for _, name := range p.files {
		path := filepath.Join(p.dir, name)
		if err := p.readInto(path, merged); err != nil {
			return nil, err
		}
	}

	records := make(RecordSet, 0, len(merged.keys))
	dropped := 0
	for _, key := range merged.keys {
		e := merged.byKey[key]
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.LongAnswer) == "" {
			dropped++
			continue
		}
		records = append(records, Record{Question: e.Question, Answer: e.LongAnswer})
	}

	p.logger.WithField("records", len(records)).
		WithField("dropped", dropped).
		Info("Loaded PubMedQA records")
	return records, nil
}

func (p *PubMedQARetriever) readInto(path string, merged *orderedEntries) error {
	f, err := p.fs.Open(path)
	if err != nil {
		return fmt.Errorf("pubmedqa file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := decodeEntries(f, merged.put); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}
	return nil
}

// decodeEntries streams a top-level JSON object, calling visit for each
// member in document order.
func decodeEntries(r io.Reader, visit func(key string, e pubMedQAEntry)) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var e pubMedQAEntry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("entry %s: %w", key, err)
		}
		visit(key, e)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

type orderedEntries struct {
	keys  []string
	byKey map[string]pubMedQAEntry
}

func newOrderedEntries() *orderedEntries {
	return &orderedEntries{byKey: map[string]pubMedQAEntry{}}
}

func (o *orderedEntries) put(key string, e pubMedQAEntry) {
	if _, ok := o.byKey[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.byKey[key] = e
}
