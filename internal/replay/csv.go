// Package replay implements C13: a CSV-driven trade replay harness that
// drives the same detector/gate/dispatch pipeline C1-C11 use for live
// traffic, through a mock Stream Client Pool standing in for the real
// websocket shards, so property tests get deterministic, offline
// end-to-end coverage.
//
// Grounded on the teacher's internal/backtest/smoke90/runner.go
// Clock-injectable replay shape, adapted from a scored-candidate window
// walk to a single ordered event stream.
package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event is one recorded trade row: (ts, symbol, venue, market, side,
// price, size, isBuyerMaker) per SPEC_FULL.md §4.13.
type Event struct {
	Ts           time.Time
	Symbol       string
	Venue        string
	Market       string
	Side         string
	Price        float64
	Size         float64
	IsBuyerMaker bool
}

var csvColumns = []string{"ts", "symbol", "venue", "market", "side", "price", "size", "isbuyermaker"}

// LoadCSV reads a header-led CSV file into an ordered event slice. The
// header names the columns (order-independent); ts parses as RFC3339.
func LoadCSV(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open csv: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]Event, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("replay: read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range csvColumns {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("replay: csv missing required column %q", want)
		}
	}

	var events []Event
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay: read csv row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, rec[col["ts"]])
		if err != nil {
			return nil, fmt.Errorf("replay: parse ts %q: %w", rec[col["ts"]], err)
		}
		price, err := strconv.ParseFloat(rec[col["price"]], 64)
		if err != nil {
			return nil, fmt.Errorf("replay: parse price %q: %w", rec[col["price"]], err)
		}
		size, err := strconv.ParseFloat(rec[col["size"]], 64)
		if err != nil {
			return nil, fmt.Errorf("replay: parse size %q: %w", rec[col["size"]], err)
		}
		isBuyerMaker, err := strconv.ParseBool(rec[col["isbuyermaker"]])
		if err != nil {
			return nil, fmt.Errorf("replay: parse isBuyerMaker %q: %w", rec[col["isbuyermaker"]], err)
		}

		events = append(events, Event{
			Ts:           ts,
			Symbol:       rec[col["symbol"]],
			Venue:        rec[col["venue"]],
			Market:       rec[col["market"]],
			Side:         rec[col["side"]],
			Price:        price,
			Size:         size,
			IsBuyerMaker: isBuyerMaker,
		})
	}

	return events, nil
}
