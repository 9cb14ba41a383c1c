// Package dataset читает выгрузки показаний датчиков в CSV для офлайн-оценки.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"hydroguard/internal/analytics"
)

// TimeColumn обязательный столбец с отметкой времени
const TimeColumn = "Time"

// Table показания из CSV. Columns - найденные признаки схемы
// в каноническом порядке; пропуски и нечисловые ячейки хранятся как NaN.
type Table struct {
	Times   []string
	Columns []string
	Rows    [][]float64
}

// Option настраивает чтение CSV
type Option func(*csv.Reader)

// WithComma задает разделитель полей
func WithComma(c rune) Option {
	return func(r *csv.Reader) {
		r.Comma = c
	}
}

// LoadFile читает CSV файл
func LoadFile(path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}

// Load читает CSV с заголовком. Заголовки сопоставляются с именами признаков
// без учета регистра и пробелов ("Surrounding Temperature" -> surroundingTemperature),
// прочие столбцы пропускаются. Полностью пустые строки отбрасываются.
func Load(r io.Reader, opts ...Option) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	for _, opt := range opts {
		opt(reader)
	}

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv is empty", analytics.ErrData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	timeIdx := -1
	byFeature := make(map[string]int)
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), TimeColumn) {
			timeIdx = i
			continue
		}
		if name, ok := matchFeature(h); ok {
			byFeature[name] = i
		}
	}
	if timeIdx == -1 {
		return nil, fmt.Errorf("%w: missing %s column", analytics.ErrData, TimeColumn)
	}

	table := &Table{}
	var sourceIdx []int
	for _, name := range analytics.FeatureNames {
		if idx, ok := byFeature[name]; ok {
			table.Columns = append(table.Columns, name)
			sourceIdx = append(sourceIdx, idx)
		}
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("%w: no known feature columns in header", analytics.ErrData)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(record) {
			continue
		}

		row := make([]float64, len(sourceIdx))
		for j, idx := range sourceIdx {
			row[j] = parseCell(record, idx)
		}
		table.Times = append(table.Times, cell(record, timeIdx))
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: csv has no data rows", analytics.ErrData)
	}
	return table, nil
}

// Matrix матрица признаков с пропусками, замененными средним по столбцу
func (t *Table) Matrix() ([][]float64, error) {
	return analytics.Impute(t.Rows)
}

func matchFeature(header string) (string, bool) {
	key := normalize(header)
	for _, name := range analytics.FeatureNames {
		if normalize(name) == key {
			return name, true
		}
	}
	return "", false
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cell(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseCell число или NaN
func parseCell(record []string, idx int) float64 {
	v, err := strconv.ParseFloat(cell(record, idx), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
