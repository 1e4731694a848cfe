package utils

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `Unnamed: 0,Unnamed: 1,2024-07-26,2024-07-29,2024-07-30
11,TAEE11,34.10,34.52,
4,PETR4,38.00,NaN,37.1
,KLBN11,4.2,4.3,4.25
`

func TestReadTable(t *testing.T) {
	table, err := ReadTable(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC),
	}, table.Dates())
	assert.Equal(t, []domain.InstrumentID{
		{Class: "11", Code: "TAEE11"},
		{Class: "4", Code: "PETR4"},
		{Class: "11", Code: "KLBN11"},
	}, table.Instruments())

	row, ok := table.Row(domain.InstrumentID{Class: "11", Code: "TAEE11"})
	require.True(t, ok)
	assert.Equal(t, 34.10, row[0])
	assert.Equal(t, 34.52, row[1])
	assert.True(t, math.IsNaN(row[2]))

	row, _ = table.Row(domain.InstrumentID{Class: "4", Code: "PETR4"})
	assert.True(t, math.IsNaN(row[1]))
}

func TestReadTable_KeepsEmptyDateColumns(t *testing.T) {
	table, err := ReadTable(strings.NewReader("class,code,2024-07-26,2024-07-29\n11,TAEE11,,1.01\n11,KLBN11,NaN,0.99\n"))
	require.NoError(t, err)

	require.Len(t, table.Dates(), 2)
	assert.Equal(t, time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC), table.Dates()[0])
	assert.False(t, table.ColumnHasData(0))
	assert.True(t, table.ColumnHasData(1))
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "bad header date", input: "class,code,26/07/2024\n"},
		{name: "bad cell", input: "class,code,2024-07-26\n11,TAEE11,abc\n"},
		{name: "extra cells", input: "class,code,2024-07-26\n11,TAEE11,1,2\n"},
		{name: "missing code", input: "class,code,2024-07-26\n11,,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ports.ErrTableFormat)
		})
	}

	_, err := ReadTable(strings.NewReader("class,code,2024-07-26\n11,TAEE11,1\n11,TAEE11,2\n"))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
}

func TestWriteTable_RoundTripsCells(t *testing.T) {
	table, err := ReadTable(strings.NewReader(sampleTable))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(table, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "class,code,2024-07-26,2024-07-29,2024-07-30", lines[0])
	assert.Equal(t, "11,TAEE11,34.1,34.52,", lines[1])
	assert.Equal(t, "4,PETR4,38,,37.1", lines[2])
}

func TestWriteSeriesCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	day := time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC)

	err := WriteSeriesCSV([]*domain.PriceSeries{{
		ID:     domain.InstrumentID{Class: "PERP", Code: "ETHUSDT"},
		Points: []domain.PricePoint{{Date: day, Price: 3250.5}, {Date: day.AddDate(0, 0, 1), Price: 3301}},
	}}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "class,code,2024-07-26,2024-07-27\nPERP,ETHUSDT,3250.5,3301\n", string(data))

	table, err := ReadTableCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}
