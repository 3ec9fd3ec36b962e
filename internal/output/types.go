// internal/output/types.go
// Package output renders finished runs into artifacts and database sinks.
package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/realyield/auctionwatch/pkg/types"
)

// Format identifies an artifact format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// Extension returns the artifact filename extension for the format.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return "csv"
}

// Columns is the export schema, in order. Downstream consumers match the
// header byte for byte, so it never changes shape between runs.
var Columns = []string{
	"propertyName",
	"address",
	"biddingStarts",
	"biddingEnds",
	"startingBid",
	"propertyType",
	"yearBuilt",
	"broker1",
	"broker2",
	"broker3",
	"buildingSize",
	"property_url",
	"source",
}

// Writer renders one run's records into a single destination.
type Writer interface {
	Write(records []types.Record) error
	Close() error
}

// ExportError marks a failed export. Alongside session start failure it is
// the only run-fatal condition, mapped to a non-zero exit at the CLI
// boundary.
type ExportError struct {
	Dest  string
	Cause error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Dest, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Cause }

// Row renders a record in column order. Nil temporal and numeric fields
// carry the same sentinel as unavailable strings.
func Row(rec types.Record) []string {
	return []string{
		rec.PropertyName,
		rec.Address,
		formatTime(rec.BiddingStarts),
		formatTime(rec.BiddingEnds),
		formatBid(rec.StartingBid),
		rec.PropertyType,
		formatYear(rec.YearBuilt),
		rec.Broker1,
		rec.Broker2,
		rec.Broker3,
		rec.BuildingSize,
		rec.PropertyURL,
		rec.Source.String(),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return types.NotAvailable
	}
	return t.UTC().Format(time.RFC3339)
}

func formatBid(v *float64) string {
	if v == nil {
		return types.NotAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatYear(v *int) string {
	if v == nil {
		return types.NotAvailable
	}
	return strconv.Itoa(*v)
}
