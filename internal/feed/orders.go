package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/simbroker/internal/schema"
)

// Instruction is a scripted order submission replayed alongside the
// market-data feed.
type Instruction struct {
	At    time.Time
	Order *schema.Order
}

// LoadInstructionsCSV reads scripted orders from a CSV file with a
// header row and columns
// timestamp,order_id,symbol,side,type,quantity,limit_price. The limit
// price column may be empty for market orders. Instructions are
// returned sorted by timestamp.
func LoadInstructionsCSV(filePath string) ([]Instruction, error) {
	// #nosec G304 -- file path is operator provided via CLI flags.
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open orders file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 7
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read orders header: %w", err)
	}

	var out []Instruction
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read orders record: %w", err)
		}
		line++

		inst, err := parseInstruction(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, inst)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}

func parseInstruction(record []string) (Instruction, error) {
	at, err := parseTimestamp(record[0])
	if err != nil {
		return Instruction{}, err
	}

	var side schema.TradeSide
	switch strings.ToLower(record[3]) {
	case "buy":
		side = schema.TradeSideBuy
	case "sell":
		side = schema.TradeSideSell
	default:
		return Instruction{}, fmt.Errorf("parse side %q", record[3])
	}

	var orderType schema.OrderType
	switch strings.ToLower(record[4]) {
	case "market":
		orderType = schema.OrderTypeMarket
	case "limit":
		orderType = schema.OrderTypeLimit
	default:
		return Instruction{}, fmt.Errorf("parse order type %q", record[4])
	}

	qty, err := decimal.NewFromString(record[5])
	if err != nil {
		return Instruction{}, fmt.Errorf("parse quantity %q: %w", record[5], err)
	}

	var limit *decimal.Decimal
	if raw := strings.TrimSpace(record[6]); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return Instruction{}, fmt.Errorf("parse limit price %q: %w", raw, err)
		}
		limit = &price
	}
	if orderType == schema.OrderTypeLimit && limit == nil {
		return Instruction{}, fmt.Errorf("limit order without limit price")
	}

	return Instruction{
		At:    at,
		Order: schema.NewOrder(record[1], record[2], side, orderType, qty, limit, at),
	}, nil
}
