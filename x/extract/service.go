// Package extract drives schema-driven decoding over whole trace
// streams: it frames records, runs the args parser against the loaded
// descriptor pool, and fans emitted rows into a sink.
package extract

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracekit/protoargs/x/args"
	"github.com/tracekit/protoargs/x/framing"
	"github.com/tracekit/protoargs/x/schema"
)

// Override re-exports the parser override type for registration through
// the service.
type Override = args.Override

// Service decodes trace records into argument rows. Construction wires
// the pool, framing reader and per-type rules; a fresh parser is created
// per decode so concurrent callers never share path state.
type Service struct {
	pool      *schema.Pool
	reader    *framing.Reader
	cfg       Config
	log       zerolog.Logger
	metrics   *Metrics
	overrides map[string]Override

	allowedTags map[string][]uint32
}

// New creates the extraction service.
func New(pool *schema.Pool, cfg Config, log zerolog.Logger) (*Service, error) {
	if pool == nil {
		return nil, errors.New("extract: descriptor pool is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		pool:        pool,
		reader:      framing.NewReader(cfg.MaxRecordSize),
		cfg:         cfg,
		log:         log.With().Str("component", "extract").Logger(),
		overrides:   make(map[string]Override),
		allowedTags: make(map[string][]uint32, len(cfg.Types)),
	}
	for _, rule := range cfg.Types {
		if len(rule.AllowedTags) > 0 {
			s.allowedTags[rule.Type] = rule.AllowedTags
		}
	}
	if cfg.MetricsEnabled {
		s.metrics = NewMetrics()
	}
	return s, nil
}

// AddOverride registers a field override applied to every subsequent
// decode. Register before decoding starts.
func (s *Service) AddOverride(flatKey string, fn Override) {
	s.overrides[flatKey] = fn
}

// AllowedTags returns the configured allowlist for a type, nil when the
// type is unrestricted.
func (s *Service) AllowedTags(typeName string) []uint32 {
	return s.allowedTags[typeName]
}

// DecodeMessage decodes one message body of the named type into sink.
// allowedTags overrides the configured rule when non-nil.
func (s *Service) DecodeMessage(data []byte, typeName string, allowedTags []uint32, sink args.Delegate) (int, error) {
	if allowedTags == nil {
		allowedTags = s.allowedTags[typeName]
	}

	parser := args.New(s.pool, args.WithMaxNesting(s.cfg.MaxNesting))
	for key, fn := range s.overrides {
		parser.AddOverride(key, fn)
	}

	counter := &countingDelegate{next: sink}
	start := time.Now()
	err := parser.ParseMessage(data, typeName, allowedTags, counter)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordDecode(typeName, outcome, counter.rows, time.Since(start).Seconds())
	}
	if err != nil {
		return counter.rows, fmt.Errorf("extract: decode %s: %w", typeName, err)
	}

	s.log.Debug().
		Str("type", typeName).
		Int("rows", counter.rows).
		Int("bytes", len(data)).
		Msg("message decoded")

	return counter.rows, nil
}

// IngestStream reads length-prefixed records of the named type from src
// until EOF, decoding each into sink. Returns the number of records
// processed; the first fatal decode error stops ingestion.
func (s *Service) IngestStream(src io.Reader, typeName string, sink args.Delegate) (int, error) {
	records := 0
	for {
		record, err := s.reader.ReadRecord(src)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}

		if s.metrics != nil {
			s.metrics.RecordsTotal.Inc()
			s.metrics.RecordSize.Observe(float64(len(record)))
		}

		if _, err := s.DecodeMessage(record, typeName, nil, sink); err != nil {
			return records, err
		}
		records++
	}
}

// countingDelegate counts emissions on the way through to the sink.
type countingDelegate struct {
	next args.Delegate
	rows int
}

func (c *countingDelegate) AddInteger(key args.Key, v int64) {
	c.rows++
	c.next.AddInteger(key, v)
}

func (c *countingDelegate) AddUnsignedInteger(key args.Key, v uint64) {
	c.rows++
	c.next.AddUnsignedInteger(key, v)
}

func (c *countingDelegate) AddBoolean(key args.Key, v bool) {
	c.rows++
	c.next.AddBoolean(key, v)
}

func (c *countingDelegate) AddDouble(key args.Key, v float64) {
	c.rows++
	c.next.AddDouble(key, v)
}

func (c *countingDelegate) AddString(key args.Key, v string) {
	c.rows++
	c.next.AddString(key, v)
}
