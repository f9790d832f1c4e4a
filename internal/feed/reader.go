// Package feed frames the market-data CSV into typed records. Parsing runs
// on its own tomb-managed goroutine so file I/O overlaps the replay, but
// records are delivered strictly in file order over a single channel — the
// consumer stays sequential.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/market"
)

// Kind tags a market-data record.
type Kind string

const (
	KindTrade          Kind = "T"
	KindBidUpdate      Kind = "BID_UPDATE"
	KindAskUpdate      Kind = "ASK_UPDATE"
	KindBuySideUpdate  Kind = "BUY_SIDE_UPDATE"
	KindSellSideUpdate Kind = "SELL_SIDE_UPDATE"
)

var ErrBadRecord = errors.New("malformed market data record")

// Record is one parsed market-data row. Which of the price/size fields are
// meaningful depends on Kind: trades and depth updates use Price/Size, top
// of book updates use the Bid*/Ask* fields.
type Record struct {
	Timestamp  market.Timestamp
	Kind       Kind
	Symbol     string
	Exchange   string
	MarketType market.MarketType

	Price float64
	Size  float64

	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
}

// Reader streams records from a CSV file. The header row is skipped.
type Reader struct {
	path    string
	records chan Record
	t       tomb.Tomb
}

func NewReader(path string) *Reader {
	return &Reader{
		path:    path,
		records: make(chan Record, 256),
	}
}

// Start launches the reader goroutine. Records arrive on Records(); once
// the channel closes, Err reports how the read ended.
func (r *Reader) Start() {
	r.t.Go(r.run)
}

func (r *Reader) Records() <-chan Record {
	return r.records
}

// Stop aborts the read. Safe to call after the reader finished.
func (r *Reader) Stop() {
	r.t.Kill(nil)
}

// Err blocks until the reader goroutine has finished and returns its error,
// nil on a clean end of file.
func (r *Reader) Err() error {
	return r.t.Wait()
}

func (r *Reader) run() error {
	defer close(r.records)

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open market data: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	// Header row.
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read market data header: %w", err)
	}

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			log.Debug().Int("records", line-1).Str("path", r.path).Msg("market data exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read market data: %w", err)
		}
		line++

		rec, err := parseRow(row)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		select {
		case r.records <- rec:
		case <-r.t.Dying():
			return nil
		}
	}
}

func parseRow(row []string) (Record, error) {
	if len(row) < 6 {
		return Record{}, fmt.Errorf("%w: %d columns", ErrBadRecord, len(row))
	}

	ts, err := market.ParseTimestamp(row[0])
	if err != nil {
		return Record{}, err
	}

	var mt market.MarketType
	switch row[5] {
	case "S":
		mt = market.Spot
	case "F":
		mt = market.Futures
	default:
		return Record{}, fmt.Errorf("%w: market %q", ErrBadRecord, row[5])
	}

	rec := Record{
		Timestamp:  ts,
		Kind:       Kind(row[2]),
		Symbol:     row[3],
		Exchange:   row[4],
		MarketType: mt,
	}

	switch rec.Kind {
	case KindTrade, KindBuySideUpdate, KindSellSideUpdate:
		if len(row) < 8 {
			return Record{}, fmt.Errorf("%w: %s needs 8 columns", ErrBadRecord, rec.Kind)
		}
		if rec.Price, err = parseFloat(row[6]); err != nil {
			return Record{}, err
		}
		if rec.Size, err = parseFloat(row[7]); err != nil {
			return Record{}, err
		}
	case KindBidUpdate, KindAskUpdate:
		if len(row) < 16 {
			return Record{}, fmt.Errorf("%w: %s needs 16 columns", ErrBadRecord, rec.Kind)
		}
		if rec.BidPrice, err = parseFloat(row[8]); err != nil {
			return Record{}, err
		}
		if rec.BidSize, err = parseFloat(row[9]); err != nil {
			return Record{}, err
		}
		if rec.AskPrice, err = parseFloat(row[14]); err != nil {
			return Record{}, err
		}
		if rec.AskSize, err = parseFloat(row[15]); err != nil {
			return Record{}, err
		}
	default:
		return Record{}, fmt.Errorf("%w: kind %q", ErrBadRecord, row[2])
	}

	return rec, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrBadRecord, s)
	}
	return v, nil
}
