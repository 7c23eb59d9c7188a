package materials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
)

// SourceKind records where a Database came from.
type SourceKind string

const (
	SourceJSON     SourceKind = "json"
	SourceXLSX     SourceKind = "xlsx"
	SourceFallback SourceKind = "fallback"
	SourceMemory   SourceKind = "memory"
)

// Default database file names.
const (
	DefaultJSONPath = "teng_database.json"
	DefaultXLSXPath = "teng_database.xlsx"
)

// Sources lists the files Load tries, in order. Empty paths are skipped.
type Sources struct {
	JSONPath string
	XLSXPath string
}

// DefaultSources returns the default database files in the working directory.
func DefaultSources() Sources {
	return Sources{JSONPath: DefaultJSONPath, XLSXPath: DefaultXLSXPath}
}

// xlsxColumns is the column order written by SaveXLSX.
var xlsxColumns = []string{"ID", "Name", "Polymer", "Filler", "Loading", "Thickness", "Voc", "Isc", "Power", "Energy", "Ref"}

// Load reads the materials database. It tries the JSON file first, then
// the first sheet of the XLSX workbook, and finally falls back to the
// built-in CAMX rows. Only a cancelled context makes it fail.
func Load(ctx context.Context, src Sources) (*Database, error) {
	logger := log.GetLoggerWithName("materials")

	attempts := []struct {
		kind SourceKind
		path string
		load func(string) ([]Material, error)
	}{
		{SourceJSON, src.JSONPath, LoadJSON},
		{SourceXLSX, src.XLSXPath, LoadXLSX},
	}

	var lastErr error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "load materials")
		}
		if a.path == "" {
			continue
		}
		ms, err := a.load(a.path)
		if err != nil {
			logger.Debug("materials source unavailable",
				log.SourceKey, string(a.kind),
				log.PathKey, a.path,
				"error", err,
			)
			lastErr = err
			continue
		}
		logger.Info("materials loaded",
			log.OperationKey, log.OperationLoad,
			log.SourceKey, string(a.kind),
			log.PathKey, a.path,
			log.SamplesKey, len(ms),
		)
		return NewDatabase(ms, a.kind, a.path), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "load materials")
	}

	fields := []any{log.SourceKey, string(SourceFallback), log.SamplesKey, len(Fallback())}
	if lastErr != nil {
		fields = append(fields, "error", lastErr.Error())
	}
	logger.Warn("using built-in fallback materials", fields...)
	return NewDatabase(Fallback(), SourceFallback, ""), nil
}

// LoadJSON reads a JSON array of material objects.
func LoadJSON(path string) ([]Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	ms, err := ReadJSON(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return ms, nil
}

// ReadJSON decodes a JSON array of material objects. Keys are matched
// case-insensitively; numbers may be JSON numbers or numeric strings.
func ReadJSON(r io.Reader) ([]Material, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewInvalidInputErrorf("ReadJSON", "expected an array of material objects: %v", err)
	}

	ms := make([]Material, 0, len(raw))
	for _, obj := range raw {
		rec := make(map[string]string, len(obj))
		for k, v := range obj {
			rec[normalizeHeader(k)] = jsonText(v)
		}
		ms = append(ms, fromRecord(rec))
	}
	return ms, nil
}

func jsonText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// LoadXLSX reads the first sheet of a workbook. The first row is the
// header; columns are matched by name, case-insensitively.
func LoadXLSX(path string) ([]Material, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q of %s", sheet, path)
	}
	return materialsFromRows(rows)
}

func materialsFromRows(rows [][]string) ([]Material, error) {
	if len(rows) == 0 {
		return nil, errors.NewInvalidInputError("LoadXLSX", "sheet has no header row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
	}

	ms := make([]Material, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := make(map[string]string, len(headers))
		for j, cell := range row {
			if j < len(headers) && headers[j] != "" {
				rec[headers[j]] = cell
			}
		}
		ms = append(ms, fromRecord(rec))
	}
	return ms, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// SaveXLSX writes materials to a single-sheet workbook readable by LoadXLSX.
func SaveXLSX(path string, ms []Material) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, ms); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

// WriteXLSX streams the workbook produced by SaveXLSX to w.
func WriteXLSX(w io.Writer, ms []Material) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, ms); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func writeSheet(f *excelize.File, ms []Material) error {
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(xlsxColumns))
	for i, c := range xlsxColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for i, m := range ms {
		row := []interface{}{
			m.ID, m.Name, m.Polymer, m.Filler,
			cell(m.Loading), cell(m.Thickness), cell(m.Voc), cell(m.Isc),
			cell(m.Power), cell(m.Energy), m.Ref,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return errors.Wrapf(err, "write row %d", i+2)
		}
	}
	return nil
}

func cell(v Value) interface{} {
	if f, ok := v.Get(); ok {
		return f
	}
	return ""
}

// Fallback returns the built-in CAMX rows used when no database file loads.
func Fallback() []Material {
	return []Material{
		{ID: "CAMX_001", Name: "CA pristine", Polymer: "CA", Filler: NoFiller, Loading: Num(0), Thickness: Num(100), Voc: Num(90), Isc: Num(5.0), Power: Num(0.35), Ref: "Beycan 2025"},
		{ID: "CAMX_002", Name: "CAMX_a 70um", Polymer: "CA", Filler: "MXene", Loading: Num(5), Thickness: Num(70), Voc: Num(200), Isc: Num(12.0), Power: Num(1.20), Ref: "Beycan 2025"},
		{ID: "CAMX_003", Name: "CAMX_b 90um", Polymer: "CA", Filler: "MXene", Loading: Num(5), Thickness: Num(90), Voc: Num(220), Isc: Num(13.0), Power: Num(1.40), Ref: "Beycan 2025"},
		{ID: "CAMX_004", Name: "CAMX optimized", Polymer: "CA", Filler: "MXene", Loading: Num(8), Thickness: Num(80), Voc: Num(240), Isc: Num(14.0), Power: Num(1.60), Ref: "Beycan 2025"},
	}
}

// Database is an immutable, loaded materials table.
type Database struct {
	Materials []Material `json:"materials"`
	Source    SourceKind `json:"source"`
	Path      string     `json:"path,omitempty"`
	LoadedAt  time.Time  `json:"loaded_at"`
}

// NewDatabase wraps already loaded materials.
func NewDatabase(ms []Material, source SourceKind, path string) *Database {
	return &Database{
		Materials: ms,
		Source:    source,
		Path:      path,
		LoadedAt:  time.Now().UTC(),
	}
}

// Len returns the number of materials.
func (db *Database) Len() int {
	return len(db.Materials)
}

// Find returns the material with the given ID.
func (db *Database) Find(id string) (Material, bool) {
	for _, m := range db.Materials {
		if m.ID == id {
			return m, true
		}
	}
	return Material{}, false
}
