package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/xuri/excelize/v2"
)

// Column headers in the workbooks.
const (
	ColumnName           = "name"
	ColumnIdx            = "idx"
	ColumnSimilarIndices = "similar_indices"
	MetaSheet            = "meta"
)

// WorkbookOptions locates the features and neighbours workbooks.
// Empty sheet names mean the first sheet. Empty FeatureColumns means auto-detect.
type WorkbookOptions struct {
	FeaturesPath   string
	NeighborsPath  string
	FeaturesSheet  string
	NeighborsSheet string
	FeatureColumns []string
}

// Workbook loads entities and neighbour lists from .xlsx files.
type Workbook struct {
	opts WorkbookOptions
}

// NewWorkbook returns a Loader over the given workbook paths.
func NewWorkbook(opts WorkbookOptions) *Workbook {
	return &Workbook{opts: opts}
}

// LoadEntities reads the features workbook.
func (w *Workbook) LoadEntities(ctx context.Context) ([]*models.Entity, error) {
	return ReadEntities(w.opts.FeaturesPath, w.opts.FeaturesSheet, w.opts.FeatureColumns)
}

// LoadNeighbors reads the neighbours workbook.
func (w *Workbook) LoadNeighbors(ctx context.Context) (map[int][]int, error) {
	return ReadNeighbors(w.opts.NeighborsPath, w.opts.NeighborsSheet)
}

// Close is a no-op; workbooks are opened per load.
func (w *Workbook) Close() error {
	return nil
}

func readSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %q in %s has no header row", sheet, path)
	}
	return rows, nil
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// isIndexColumn reports a leftover positional index column, e.g. "Unnamed: 0" or a blank header.
func isIndexColumn(h string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	return h == "" || strings.HasPrefix(h, "unnamed")
}

// ReadEntities loads restaurants from the features sheet. Every data row becomes an entity
// whose Index is its position, so neighbour lists stay aligned even for rows with blank names.
func ReadEntities(path, sheet string, featureColumns []string) ([]*models.Entity, error) {
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	header := rows[0]
	cols := headerIndex(header)
	nameCol, ok := cols[ColumnName]
	if !ok {
		return nil, fmt.Errorf("features sheet has no %q column", ColumnName)
	}
	data := rows[1:]

	features, err := resolveFeatureColumns(header, data, featureColumns)
	if err != nil {
		return nil, err
	}

	entities := make([]*models.Entity, len(data))
	for i, row := range data {
		e := &models.Entity{
			Index:      i,
			Name:       cell(row, nameCol),
			Attributes: make(map[string]string, len(models.DisplayAttributes)),
			Features:   make([]float64, len(features)),
		}
		for _, attr := range models.DisplayAttributes {
			if c, ok := cols[attr]; ok {
				e.Attributes[attr] = cell(row, c)
			}
		}
		if raw := e.Attributes[models.AttrRating]; raw != "" {
			e.Rating, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s %q", i+2, models.AttrRating, raw)
			}
		}
		for j, c := range features {
			raw := cell(row, c)
			if raw == "" {
				continue
			}
			e.Features[j], err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value %q in feature column %q", i+2, raw, header[c])
			}
		}
		entities[i] = e
	}
	return entities, nil
}

// resolveFeatureColumns maps configured feature headers to column positions. With no
// configuration, every column outside name, display attributes, and index columns whose
// non-blank values are all numeric is a feature.
func resolveFeatureColumns(header []string, data [][]string, configured []string) ([]int, error) {
	cols := headerIndex(header)
	if len(configured) > 0 {
		out := make([]int, len(configured))
		for i, name := range configured {
			c, ok := cols[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, fmt.Errorf("feature column %q not found", name)
			}
			out[i] = c
		}
		return out, nil
	}
	reserved := map[string]bool{ColumnName: true}
	for _, attr := range models.DisplayAttributes {
		reserved[attr] = true
	}
	var out []int
	for c, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if reserved[key] || isIndexColumn(h) {
			continue
		}
		numeric, seen := true, false
		for _, row := range data {
			raw := cell(row, c)
			if raw == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && seen {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no numeric feature columns found")
	}
	return out, nil
}

// ReadNeighbors loads the idx -> similar_indices mapping.
func ReadNeighbors(path, sheet string) (map[int][]int, error) {
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	cols := headerIndex(rows[0])
	idxCol, ok := cols[ColumnIdx]
	if !ok {
		return nil, fmt.Errorf("neighbours sheet has no %q column", ColumnIdx)
	}
	simCol, ok := cols[ColumnSimilarIndices]
	if !ok {
		return nil, fmt.Errorf("neighbours sheet has no %q column", ColumnSimilarIndices)
	}
	out := make(map[int][]int, len(rows)-1)
	for i, row := range rows[1:] {
		raw := cell(row, idxCol)
		if raw == "" {
			continue
		}
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid idx %q", i+2, raw)
		}
		list, err := ParseIndices(cell(row, simCol))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out[idx] = list
	}
	return out, nil
}

func newWorkbookFile(sheet string) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			_ = f.Close()
			return nil, "", fmt.Errorf("rename sheet: %w", err)
		}
	}
	return f, sheet, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cellName, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cellName, &values)
}

func saveWorkbook(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create workbook directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// WriteNeighbors writes one row per entity (idx, similar_indices) and, when meta is
// non-empty, a key/value "meta" sheet describing the run.
func WriteNeighbors(path, sheet string, neighbors [][]int, meta map[string]string) error {
	f, sheet, err := newWorkbookFile(sheet)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := setRow(f, sheet, 1, []interface{}{ColumnIdx, ColumnSimilarIndices}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, list := range neighbors {
		if err := setRow(f, sheet, i+2, []interface{}{i, FormatIndices(list)}); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if len(meta) > 0 {
		if _, err := f.NewSheet(MetaSheet); err != nil {
			return fmt.Errorf("create meta sheet: %w", err)
		}
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if err := setRow(f, MetaSheet, i+1, []interface{}{k, meta[k]}); err != nil {
				return fmt.Errorf("write meta: %w", err)
			}
		}
	}
	return saveWorkbook(f, path)
}

// WriteEntities writes a features workbook: name, display attributes, then featureColumns.
// Every entity must carry len(featureColumns) features.
func WriteEntities(path, sheet string, entities []*models.Entity, featureColumns []string) error {
	f, sheet, err := newWorkbookFile(sheet)
	if err != nil {
		return err
	}
	defer f.Close()
	header := []interface{}{ColumnName}
	for _, attr := range models.DisplayAttributes {
		header = append(header, attr)
	}
	for _, c := range featureColumns {
		header = append(header, c)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range entities {
		if len(e.Features) != len(featureColumns) {
			return fmt.Errorf("entity %q has %d features, want %d", e.Name, len(e.Features), len(featureColumns))
		}
		row := []interface{}{e.Name}
		for _, attr := range models.DisplayAttributes {
			row = append(row, e.Attribute(attr))
		}
		for _, v := range e.Features {
			row = append(row, v)
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return saveWorkbook(f, path)
}
