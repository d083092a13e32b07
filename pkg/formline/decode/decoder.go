package decode

import (
	"log/slog"
	"strings"

	"github.com/cognicore/formline/pkg/formline/ingest"
)

// Config holds the document-format literals the decoder depends on.
type Config struct {
	TitleMarker        string
	TitleLength        int
	ContinuationMarker string
	DefaultCountry     string
}

// DefaultConfig returns the settings for the standard form book layout.
func DefaultConfig() Config {
	return Config{
		TitleMarker:        "FORMBOOK",
		TitleLength:        3,
		ContinuationMarker: "contd",
		DefaultCountry:     "GB",
	}
}

// EmitFunc receives each completed horse.
type EmitFunc func(Horse)

// Stats counts decoder outcomes for one or more documents.
type Stats struct {
	Tokens        int
	Horses        int
	Runs          int
	HorseFailures int
	RunFailures   int
	OrphanRuns    int
	Repairs       int
}

type mode int

const (
	idle mode = iota
	collectingHorse
	collectingRun
)

// Decoder is a state machine turning a token stream into horses. It holds no
// state across documents other than what Feed accumulates, so use one
// Decoder per document.
type Decoder struct {
	cfg    Config
	cls    ingest.Classifier
	emit   EmitFunc
	logger *slog.Logger

	mode     mode
	resuming bool // after a continuation marker, until the next race date
	repeated int  // words of the continued name seen since the marker
	skip     int
	epoch    int
	horseBuf []string
	runBuf   []string
	current  *Horse
	stats    Stats
}

// New creates a decoder that hands completed horses to emit.
func New(cfg Config, emit EmitFunc, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		cfg:    cfg,
		cls:    ingest.Classifier{TitleMarker: cfg.TitleMarker, ContinuationMarker: cfg.ContinuationMarker},
		emit:   emit,
		logger: logger.With("comp", "decoder"),
	}
}

// Feed processes one token.
func (d *Decoder) Feed(tok ingest.Token) {
	d.stats.Tokens++
	d.epoch = tok.Epoch

	if d.skip > 0 {
		d.skip--
		return
	}

	switch d.cls.Classify(tok.Text) {
	case ingest.TitleMarker:
		d.skip = d.cfg.TitleLength
		return
	case ingest.Continuation:
		d.mode = idle
		d.resuming = true
		d.repeated = 0
		return
	case ingest.RaceDate:
		d.enterRun()
		d.runBuf = append(d.runBuf, tok.Text)
		return
	case ingest.HorseName:
		if d.resuming {
			if d.repeatsName(tok.Text) {
				d.repeated++
				return
			}
			// a different horse follows the marker
			seen := d.continuedName()[:d.repeated]
			d.enterHorse()
			d.horseBuf = append(d.horseBuf, seen...)
			d.horseBuf = append(d.horseBuf, tok.Text)
			return
		}
		if d.mode != collectingHorse || d.pastName() {
			d.enterHorse()
		}
		d.horseBuf = append(d.horseBuf, tok.Text)
		return
	}

	switch d.mode {
	case collectingHorse:
		d.horseBuf = append(d.horseBuf, tok.Text)
	case collectingRun:
		d.runBuf = append(d.runBuf, tok.Text)
	}
}

// FeedAll processes a slice of tokens.
func (d *Decoder) FeedAll(toks []ingest.Token) {
	for _, t := range toks {
		d.Feed(t)
	}
}

// Close flushes buffered fields and emits the last horse.
func (d *Decoder) Close() {
	d.flushRun()
	d.flushHorse()
	d.emitCurrent()
	d.mode = idle
	d.resuming = false
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

func (d *Decoder) continuedName() []string {
	if d.current == nil {
		return nil
	}
	return strings.Fields(d.current.Name)
}

// repeatsName reports whether text is the next word of the continued horse's
// name.
func (d *Decoder) repeatsName(text string) bool {
	words := d.continuedName()
	return d.repeated < len(words) && words[d.repeated] == text
}

// pastName reports whether the horse buffer already holds a non-name token,
// so a further name token belongs to the next horse.
func (d *Decoder) pastName() bool {
	for _, t := range d.horseBuf {
		if !ingest.IsHorseName(t) {
			return true
		}
	}
	return false
}

func (d *Decoder) enterHorse() {
	d.flushRun()
	d.flushHorse()
	d.emitCurrent()
	d.mode = collectingHorse
	d.resuming = false
}

func (d *Decoder) enterRun() {
	d.flushHorse()
	d.flushRun()
	d.mode = collectingRun
	d.resuming = false
}

// flushHorse decodes the horse buffer into a fresh current horse.
func (d *Decoder) flushHorse() {
	if len(d.horseBuf) == 0 {
		return
	}
	toks := d.horseBuf
	d.horseBuf = nil

	h, err := DecodeHorse(toks, d.epoch, d.cfg.DefaultCountry)
	if err != nil {
		d.stats.HorseFailures++
		d.current = nil
		d.logger.Warn("horse decode failed", "err", err, "tokens", toks)
		return
	}
	d.current = &h
}

// flushRun decodes the run buffer and appends it to the current horse.
func (d *Decoder) flushRun() {
	if len(d.runBuf) == 0 {
		return
	}
	toks := d.runBuf
	d.runBuf = nil

	r, applied, err := decodeRun(toks)
	if len(applied) > 0 {
		d.stats.Repairs += len(applied)
		d.logger.Debug("run repaired", "repairs", applied, "tokens", toks)
	}
	if err != nil {
		d.stats.RunFailures++
		d.logger.Warn("run decode failed", "err", err, "tokens", toks)
		return
	}
	if d.current == nil {
		d.stats.OrphanRuns++
		d.logger.Warn("run without horse", "tokens", toks)
		return
	}
	d.current.Runs = append(d.current.Runs, r)
	d.stats.Runs++
}

func (d *Decoder) emitCurrent() {
	if d.current == nil {
		return
	}
	h := *d.current
	d.current = nil
	d.stats.Horses++
	if d.emit != nil {
		d.emit(h)
	}
}

// DecodeTokens runs a fresh decoder over toks and returns the horses in
// emission order.
func DecodeTokens(cfg Config, toks []ingest.Token, logger *slog.Logger) ([]Horse, Stats) {
	var horses []Horse
	d := New(cfg, func(h Horse) { horses = append(horses, h) }, logger)
	d.FeedAll(toks)
	d.Close()
	return horses, d.Stats()
}
