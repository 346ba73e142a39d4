package sync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// ImportJSONL reads a stream written by ExportJSONL. Unknown record types
// are skipped so that newer exports stay readable.
func ImportJSONL(r io.Reader) ([]model.Task, []model.Section, error) {
	var (
		tasks    []model.Task
		sections []model.Section
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Type {
		case "task":
			var t model.Task
			if err := json.Unmarshal(rec.Data, &t); err != nil {
				return nil, nil, fmt.Errorf("line %d: decode task: %w", line, err)
			}
			tasks = append(tasks, t)
		case "section":
			var s model.Section
			if err := json.Unmarshal(rec.Data, &s); err != nil {
				return nil, nil, fmt.Errorf("line %d: decode section: %w", line, err)
			}
			sections = append(sections, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read: %w", err)
	}
	return tasks, sections, nil
}
