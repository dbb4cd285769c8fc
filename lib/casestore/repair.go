package casestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Repair makes an interrupted output file parse as complete JSON by
// appending the missing closing bracket. It is the manual alternative
// to reopening the file with Open for readers that just need valid
// JSON. Already-valid files are left alone.
func Repair(path string) (repaired bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	trimmed := bytes.TrimRight(content, " \t\r\n")
	if len(trimmed) == 0 {
		return false, fmt.Errorf("%s is empty", path)
	}
	if trimmed[len(trimmed)-1] == ']' {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Write([]byte("\n]"))
	if err != nil {
		return false, fmt.Errorf("appending terminator: %w", err)
	}
	return true, nil
}

// Load reads a finalized output file back into records.
func Load(path string) ([]Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	err = json.Unmarshal(content, &records)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
