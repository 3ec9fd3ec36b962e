// internal/output/manager.go
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/realyield/auctionwatch/internal/utils"
	"github.com/realyield/auctionwatch/pkg/types"
)

// Manager owns the export step: it dedupes and orders a run's records,
// names the artifact and fans the records out to the artifact writer plus
// any configured database sinks. A run that produced nothing still exports
// a header-only artifact, so downstream jobs always find a file.
type Manager struct {
	format Format
	dir    string
	sinks  []Writer
	log    utils.Logger

	// now is swapped in tests for deterministic artifact names.
	now func() time.Time
}

// NewManager creates a manager exporting artifacts of the given format into
// dir.
func NewManager(format Format, dir string, log utils.Logger) *Manager {
	if format == "" {
		format = FormatCSV
	}
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = utils.NewLogger()
	}
	return &Manager{format: format, dir: dir, log: log, now: time.Now}
}

// AddSink registers an additional destination receiving the same deduped
// records as the artifact.
func (m *Manager) AddSink(w Writer) {
	m.sinks = append(m.sinks, w)
}

// Export writes the run's records and returns the artifact path. Any
// destination failing yields an ExportError.
func (m *Manager) Export(result *types.RunResult) (string, error) {
	records := Dedupe(result.Records)
	if n := len(result.Records) - len(records); n > 0 {
		m.log.Infof("dropped %d duplicate listings", n)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", &ExportError{Dest: m.dir, Cause: err}
	}

	name := fmt.Sprintf("%s_auctions_%s.%s",
		result.Source, m.now().Format("2006-01-02_15-04-05"), m.format.Extension())
	path := filepath.Join(m.dir, name)

	writer, err := m.newArtifactWriter(path)
	if err != nil {
		return "", &ExportError{Dest: path, Cause: err}
	}
	if err := writer.Write(records); err != nil {
		writer.Close()
		return "", &ExportError{Dest: path, Cause: err}
	}
	if err := writer.Close(); err != nil {
		return "", &ExportError{Dest: path, Cause: err}
	}
	m.log.Infof("exported %d records to %s", len(records), path)

	for _, sink := range m.sinks {
		if err := sink.Write(records); err != nil {
			return path, &ExportError{Dest: fmt.Sprintf("%T", sink), Cause: err}
		}
	}
	return path, nil
}

// Close closes all registered sinks, keeping the first error.
func (m *Manager) Close() error {
	var first error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.sinks = nil
	return first
}

func (m *Manager) newArtifactWriter(path string) (Writer, error) {
	switch m.format {
	case FormatCSV:
		return NewCSVWriter(path)
	case FormatExcel:
		return NewExcelWriter(path)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", m.format)
	}
}

// Dedupe keeps one record per property_url, last write wins, and orders the
// result by property_url so artifacts are deterministic.
func Dedupe(records []types.Record) []types.Record {
	byURL := make(map[string]types.Record, len(records))
	for _, rec := range records {
		byURL[rec.PropertyURL] = rec
	}
	out := make([]types.Record, 0, len(byURL))
	for _, rec := range byURL {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropertyURL < out[j].PropertyURL })
	return out
}
