package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qppath/qppath/pkg/core"
)

// CycleExport is the root JSON structure of an exported session
type CycleExport struct {
	StartedAt time.Time          `json:"startedAt"`
	EndedAt   time.Time          `json:"endedAt"`
	Cycles    int                `json:"cycles"`
	Results   map[string]int     `json:"results"`
	Records   []core.CycleRecord `json:"records"`
}

// exportJSON writes the session to the output directory. Caller holds b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	filename := fmt.Sprintf("cycles_%s.json", b.startedAt.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() CycleExport {
	export := CycleExport{
		StartedAt: b.startedAt,
		EndedAt:   b.now(),
		Cycles:    len(b.records),
		Results:   make(map[string]int),
		Records:   b.records,
	}
	if export.Records == nil {
		export.Records = []core.CycleRecord{}
	}
	for _, r := range b.records {
		export.Results[string(r.Result)]++
	}
	return export
}

func writeJSON(path string, data CycleExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data CycleExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
