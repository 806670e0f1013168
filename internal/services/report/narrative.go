package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/digest/internal/models"
)

var narrativeSections = []models.NarrativeSection{models.NarrativeAnalysis, models.NarrativeInsights}

// BuildFindings reduces a report to the structured numbers the narrative
// collaborator is allowed to see
func BuildFindings(r *models.Report) models.Findings {
	f := models.Findings{
		AsOf:              r.AsOf.Format(time.RFC3339),
		ReportingCurrency: r.ReportingCurrency,
		AggregateDailyPL:  round2(r.AggregateDailyPL.InexactFloat64()),
		AggregateTotalPL:  round2(r.AggregateTotalPL.InexactFloat64()),
		Positions:         make([]models.FindingPosition, 0, len(r.Positions)),
		Gainers:           moverFindings(r.Gainers),
		Losers:            moverFindings(r.Losers),
	}
	for _, p := range r.Positions {
		fp := models.FindingPosition{
			Symbol:   p.Holding.ResolvedSymbol,
			Quantity: p.Holding.Quantity.InexactFloat64(),
			DailyPL:  round2(p.DailyPL.InexactFloat64()),
			DailyPct: round2(p.DailyPct.InexactFloat64()),
			TotalPL:  round2(p.TotalPL.InexactFloat64()),
			TotalPct: round2(p.TotalPct.InexactFloat64()),
		}
		for _, a := range p.Alerts {
			fp.Alerts = append(fp.Alerts, string(a))
		}
		f.Positions = append(f.Positions, fp)
	}
	for _, u := range r.Unavailable {
		f.Unavailable = append(f.Unavailable, u.Symbol)
	}
	for _, o := range r.Overview {
		f.Overview = append(f.Overview, models.FindingBenchmark{Symbol: o.Symbol, DailyPct: round2(o.DailyPct.InexactFloat64())})
	}
	return f
}

func moverFindings(movers []models.MarketMover) []models.FindingMover {
	out := make([]models.FindingMover, 0, len(movers))
	for _, m := range movers {
		out = append(out, models.FindingMover{
			Symbol:    m.Symbol,
			Name:      m.DisplayName,
			DailyPct:  round2(m.DailyPct),
			MarketCap: m.MarketCap,
		})
	}
	return out
}

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int64(-v*100+0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

// narrate asks the collaborator for each section independently. A failed
// section is noted and the report proceeds without it.
func (s *Service) narrate(ctx context.Context, report *models.Report) {
	if s.narrator == nil {
		return
	}
	findings, err := json.Marshal(BuildFindings(report))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode findings, skipping narrative")
		return
	}

	narrative := &models.Narrative{
		Sections:   make(map[models.NarrativeSection]string),
		Disclaimer: models.NarrativeDisclaimer,
	}
	for _, section := range narrativeSections {
		text, err := s.summarize(ctx, section, findings)
		if err != nil {
			s.logger.Warn().Err(err).Str("section", string(section)).Msg("Narrative section unavailable (continuing)")
			report.Notes = append(report.Notes, models.Note{
				Kind:    models.NoteNarrativeUnavailable,
				Subject: string(section),
				Message: err.Error(),
			})
			continue
		}
		narrative.Sections[section] = text
	}
	if len(narrative.Sections) > 0 {
		report.Narrative = narrative
	}
}

func (s *Service) summarize(ctx context.Context, section models.NarrativeSection, findings []byte) (string, error) {
	if s.cfg.NarrativeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NarrativeTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.narrator.Summarize(ctx, section, findings)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty response")
	}
	s.metrics.ObserveProvider("narrative", string(section), start, err)
	if err != nil {
		return "", fmt.Errorf("%s %w: %v", section, ErrNarrativeUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}
