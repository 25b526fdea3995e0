package doccloud

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionResult is the validated intermediate representation of a
// completed extraction job. The provider enforces no fixed schema, so every
// field is checked during decoding; downstream code never touches raw JSON.
type ExtractionResult struct {
	Elements []Element
	Tables   []Table
}

// Element is one recognized text fragment with its structural path.
type Element struct {
	Path string
	Text string
}

// Table is a recognized table as rows of cell text.
type Table struct {
	Rows [][]string
}

// Text concatenates all recognized fragments into one blob for field-level
// regex search.
func (r *ExtractionResult) Text() string {
	var sb strings.Builder
	for i, el := range r.Elements {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(el.Text)
	}
	return sb.String()
}

// DecodeResult parses the downloaded job payload. Every nested access is
// individually presence- and type-checked; a broken link in the chain yields
// a MalformedResponseError naming the exact path rather than a panic.
func DecodeResult(raw []byte) (*ExtractionResult, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &MalformedResponseError{Path: "document root"}
	}

	result := &ExtractionResult{}

	elems, err := sliceField(root, "elements")
	if err != nil {
		return nil, err
	}
	for i, raw := range elems {
		el, ok := raw.(map[string]any)
		if !ok {
			return nil, &MalformedResponseError{Path: fmt.Sprintf("elements[%d]", i)}
		}
		// Text is required per element; Path is optional metadata.
		text, ok := el["Text"].(string)
		if !ok {
			return nil, &MalformedResponseError{Path: fmt.Sprintf("elements[%d].Text", i)}
		}
		path, _ := el["Path"].(string)
		result.Elements = append(result.Elements, Element{Path: path, Text: text})
	}

	// Tables are optional: documents without tabular data omit the key.
	if _, present := root["tables"]; present {
		tables, err := sliceField(root, "tables")
		if err != nil {
			return nil, err
		}
		for i, raw := range tables {
			tbl, ok := raw.(map[string]any)
			if !ok {
				return nil, &MalformedResponseError{Path: fmt.Sprintf("tables[%d]", i)}
			}
			rowsRaw, ok := tbl["rows"].([]any)
			if !ok {
				return nil, &MalformedResponseError{Path: fmt.Sprintf("tables[%d].rows", i)}
			}
			table := Table{}
			for j, rowRaw := range rowsRaw {
				cellsRaw, ok := rowRaw.([]any)
				if !ok {
					return nil, &MalformedResponseError{Path: fmt.Sprintf("tables[%d].rows[%d]", i, j)}
				}
				row := make([]string, 0, len(cellsRaw))
				for k, cellRaw := range cellsRaw {
					cell, ok := cellRaw.(string)
					if !ok {
						return nil, &MalformedResponseError{Path: fmt.Sprintf("tables[%d].rows[%d][%d]", i, j, k)}
					}
					row = append(row, cell)
				}
				table.Rows = append(table.Rows, row)
			}
			result.Tables = append(result.Tables, table)
		}
	}

	return result, nil
}

// sliceField fetches a required array field from a decoded JSON object.
func sliceField(m map[string]any, key string) ([]any, error) {
	v, present := m[key]
	if !present {
		return nil, &MalformedResponseError{Path: key}
	}
	s, ok := v.([]any)
	if !ok {
		return nil, &MalformedResponseError{Path: key}
	}
	return s, nil
}
