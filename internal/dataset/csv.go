package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV reads one table from a headered CSV file.
func ReadCSV(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are padded, not fatal

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: %s is empty", path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	t := New(name, header)
	for _, rec := range records[1:] {
		t.Append(rec)
	}
	return t, nil
}

// ReadCSVDir loads the five source tables from <dir>/<Name>.csv.
func ReadCSVDir(dir string) (*Tables, error) {
	var ts Tables
	for _, name := range TableNames {
		t, err := ReadCSV(filepath.Join(dir, name+".csv"), name)
		if err != nil {
			return nil, err
		}
		*ts.byName(name) = t
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return &ts, nil
}
