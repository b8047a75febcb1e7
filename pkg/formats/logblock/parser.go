// Package logblock recovers access records from door-controller exports.
//
// Those exports are not line-delimited records: valid lines arrive in runs of
// BlockSize, each run followed by SkipSize footer lines that carry nothing.
// The parser walks the file in that cadence, tolerating individual lines that
// do not match and a final block that ends early.
package logblock

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/table"
)

const (
	// BlockSize is the number of record lines in one block
	BlockSize = 19
	// SkipSize is the number of separator lines after a full block
	SkipSize = 2
)

// Columns is the fixed output column list.
var Columns = []string{"Status", "Name", "Card", "Location", "IN/OUT", "Timestamp"}

// DefaultStatuses are the status prefixes the controller writes.
var DefaultStatuses = []string{"Admitted", "Rejected (Clearance)"}

// Record is one parsed access event.
type Record struct {
	Status    string
	Name      string
	Card      string
	Location  string
	Direction string
	Timestamp string
}

func (r Record) values() []table.Value {
	return []table.Value{r.Status, r.Name, r.Card, r.Location, r.Direction, r.Timestamp}
}

// Options tunes the cadence and accepted statuses. A zero BlockSize selects
// BlockSize. A negative SkipSize selects SkipSize, and so does a zero SkipSize
// when BlockSize is zero too, so the zero Options is the default cadence.
type Options struct {
	BlockSize int
	SkipSize  int
	Statuses  []string
}

// Stats reports what a parse did.
type Stats struct {
	Lines   int
	Matched int
	Skipped int
}

// Parser parses block-cadenced access logs.
type Parser struct {
	blockSize int
	skipSize  int
	pattern   *regexp.Regexp
	log       *zap.Logger
}

// NewParser builds a parser.
func NewParser(opts Options, log *zap.Logger) *Parser {
	if opts.SkipSize < 0 || (opts.BlockSize <= 0 && opts.SkipSize == 0) {
		opts.SkipSize = SkipSize
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = BlockSize
	}
	if len(opts.Statuses) == 0 {
		opts.Statuses = DefaultStatuses
	}

	return &Parser{
		blockSize: opts.BlockSize,
		skipSize:  opts.SkipSize,
		pattern:   compilePattern(opts.Statuses),
		log:       logger.OrNop(log).Named("logblock"),
	}
}

// compilePattern builds the record pattern:
//
//	<status> '<name> [Default]' (Card: <card>) at '<location> [ROK]' (<IN|OUT>).,<timestamp>
func compilePattern(statuses []string) *regexp.Regexp {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`^(` + strings.Join(quoted, "|") + `) '(.+?) \[Default\]' \(Card: ([^)]+)\) at '(.+?) \[ROK\]' \((IN|OUT)\)\.,(.+)$`)
}

// Match parses a single line.
func (p *Parser) Match(line string) (Record, bool) {
	m := p.pattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return Record{}, false
	}
	return Record{
		Status:    m[1],
		Name:      m[2],
		Card:      m[3],
		Location:  m[4],
		Direction: m[5],
		Timestamp: strings.TrimSpace(m[6]),
	}, true
}

// Records walks content in block/skip cadence and returns every matched record.
// The first line is a header and is skipped. Unmatched lines inside a block are
// logged and dropped; input ending mid-block returns what was collected.
func (p *Parser) Records(content string) ([]Record, Stats) {
	lines := splitLines(content)
	if len(lines) > 0 {
		lines = lines[1:]
	}

	stats := Stats{Lines: len(lines)}
	var records []Record

	cursor := 0
	for cursor < len(lines) {
		for i := 0; i < p.blockSize; i++ {
			if cursor >= len(lines) {
				return records, stats
			}

			rec, ok := p.Match(lines[cursor])
			if ok {
				records = append(records, rec)
				stats.Matched++
			} else {
				stats.Skipped++
				p.log.Warn("skipping line that does not match record pattern",
					zap.Int("line", cursor+2),
					zap.String("content", lines[cursor]))
			}
			cursor++
		}
		cursor += p.skipSize
	}

	return records, stats
}

// Parse is Records rendered as a table with Columns. The table exists, with no
// rows, even when nothing matched.
func (p *Parser) Parse(content string) (*table.Table, Stats) {
	records, stats := p.Records(content)

	rows := make([][]table.Value, len(records))
	for i, r := range records {
		rows[i] = r.values()
	}

	p.log.Info("log file processed",
		zap.Int("records", stats.Matched),
		zap.Int("skipped", stats.Skipped))

	return table.MustNew(Columns, rows), stats
}

// splitLines splits on newlines. A single trailing newline ends the last line
// rather than starting an empty one.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
