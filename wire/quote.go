package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

const quoteSplitter = '|'

const (
	priceFieldLen     = 8
	volumeFieldLen    = 4
	timestampFieldLen = 8
)

// Quote is a single stock quote. Values are immutable once constructed.
type Quote struct {
	// Ticker is the stock symbol. Non-empty and must not contain '|',
	// which delimits fields on the wire.
	Ticker string
	// Price is the last trade price
	Price float64
	// Volume is the traded volume in units
	Volume uint32
	// Timestamp is milliseconds since the Unix epoch
	Timestamp uint64
}

func (q Quote) String() string {
	return fmt.Sprintf("Quote %s price: %v, volume: %d, timestamp: %d", q.Ticker, q.Price, q.Volume, q.Timestamp)
}

// EncodeQuote renders q as the binary payload
// <ticker>|<price 8B BE>|<volume 4B BE>|<timestamp 8B BE>.
// Tickers containing the splitter byte are not representable.
func EncodeQuote(q Quote) ([]byte, error) {
	if q.Ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrParseQuote)
	}
	if bytes.ContainsRune([]byte(q.Ticker), quoteSplitter) {
		return nil, fmt.Errorf("%w: ticker %q contains splitter", ErrParseQuote, q.Ticker)
	}
	buf := make([]byte, 0, len(q.Ticker)+3+priceFieldLen+volumeFieldLen+timestampFieldLen)
	buf = append(buf, q.Ticker...)
	buf = append(buf, quoteSplitter)
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(q.Price))
	buf = append(buf, quoteSplitter)
	buf = binary.BigEndian.AppendUint32(buf, q.Volume)
	buf = append(buf, quoteSplitter)
	buf = binary.BigEndian.AppendUint64(buf, q.Timestamp)
	return buf, nil
}

// DecodeQuote parses the binary quote payload. The numeric fields have
// fixed widths and are located from the end of the payload, so their bytes
// may take any value, the splitter byte included. The ticker is everything
// before them; it must be non-empty and must not contain the splitter, and
// a splitter must stand between every two fields.
func DecodeQuote(data []byte) (Quote, error) {
	n := len(data) - (3 + priceFieldLen + volumeFieldLen + timestampFieldLen)
	if n < 1 || bytes.IndexByte(data[:n], quoteSplitter) >= 0 ||
		data[n] != quoteSplitter ||
		data[n+1+priceFieldLen] != quoteSplitter ||
		data[n+2+priceFieldLen+volumeFieldLen] != quoteSplitter {
		return Quote{}, fmt.Errorf("%w: incorrect data format", ErrParseQuote)
	}
	parts := [][]byte{
		data[:n],
		data[n+1 : n+1+priceFieldLen],
		data[n+2+priceFieldLen : n+2+priceFieldLen+volumeFieldLen],
		data[len(data)-timestampFieldLen:],
	}
	if !utf8.Valid(parts[0]) {
		return Quote{}, fmt.Errorf("%w: ticker is not valid UTF-8", ErrParseQuote)
	}

	return Quote{
		Ticker:    string(parts[0]),
		Price:     math.Float64frombits(binary.BigEndian.Uint64(parts[1])),
		Volume:    binary.BigEndian.Uint32(parts[2]),
		Timestamp: binary.BigEndian.Uint64(parts[3]),
	}, nil
}
