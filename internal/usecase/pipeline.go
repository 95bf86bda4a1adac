package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TenderRadar/internal/digest"
	"TenderRadar/internal/dispatch"
	"TenderRadar/internal/domain"
	"TenderRadar/internal/matcher"
	"TenderRadar/internal/ports"
)

// PipelineDeps wires all driven adapters into the cycle orchestration.
type PipelineDeps struct {
	Source       ports.NoticeSource
	Parser       ports.NoticeParser
	Store        ports.SubscriberStore
	Matcher      *matcher.Matcher
	Builder      *digest.Builder
	Dispatcher   *dispatch.Dispatcher
	Archiver     ports.Archiver
	Logger       *slog.Logger
	FetchLimit   int
	ParseWorkers int
}

// Pipeline implements one fetch → parse → match → digest → dispatch pass.
type Pipeline struct {
	source       ports.NoticeSource
	parser       ports.NoticeParser
	store        ports.SubscriberStore
	matcher      *matcher.Matcher
	builder      *digest.Builder
	dispatcher   *dispatch.Dispatcher
	archiver     ports.Archiver
	logger       *slog.Logger
	fetchLimit   int
	parseWorkers int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:       deps.Source,
		parser:       deps.Parser,
		store:        deps.Store,
		matcher:      deps.Matcher,
		builder:      deps.Builder,
		dispatcher:   deps.Dispatcher,
		archiver:     deps.Archiver,
		logger:       deps.Logger,
		fetchLimit:   deps.FetchLimit,
		parseWorkers: deps.ParseWorkers,
	}
}

// RunCycle executes a single pass for the given day. Per-unit failures (one
// notice, one country, one subscriber) are contained and logged; only a dead
// search API across every country or a storage failure aborts the cycle.
func (p *Pipeline) RunCycle(ctx context.Context, day time.Time) error {
	countries, err := p.store.CountriesWithSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("load countries with subscribers: %w", err)
	}
	if len(countries) == 0 {
		p.info("no countries with subscribers, nothing to do")
		return nil
	}

	var summaries []domain.NoticeSummary
	failures := 0
	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.source.FetchTodaysNotices(ctx, country.ISOCode, p.fetchLimit)
		if err != nil {
			failures++
			p.warn("skipping country for this run", "country", country.ISOCode, "error", err)
			continue
		}
		p.info("notices fetched", "country", country.ISOCode, "count", len(batch))
		summaries = append(summaries, batch...)
	}
	if failures == len(countries) {
		return fmt.Errorf("notice source unreachable for all %d configured countries", failures)
	}

	docs := p.parseAll(ctx, summaries)
	p.info("notices parsed", "count", len(docs))

	if p.archiver != nil && len(docs) > 0 {
		if err := p.archiver.SaveRun(ctx, day, docs); err != nil {
			p.warn("archive run", "error", err)
		}
	}

	matches, err := p.matcher.Match(ctx, docs)
	if err != nil {
		return fmt.Errorf("match notices: %w", err)
	}
	if len(matches) == 0 {
		p.info("no matches found to send")
		return nil
	}

	digests := p.builder.Build(matches)
	sent := p.dispatcher.DispatchAll(ctx, digests)
	p.info("cycle complete", "matches", len(matches), "digests", len(digests), "sent", sent)
	return nil
}

type parseJob struct {
	summary domain.NoticeSummary
	url     string
}

// parseAll fetches and parses notice pages with a bounded worker pool.
// Notices are independent; the output order is irrelevant since consumers
// key on publication number. A failed parse skips that notice only.
func (p *Pipeline) parseAll(ctx context.Context, summaries []domain.NoticeSummary) []*domain.NoticeDocument {
	seen := map[string]struct{}{}
	var jobs []parseJob
	for _, summary := range summaries {
		if summary.PublicationNumber != "" {
			if _, dup := seen[summary.PublicationNumber]; dup {
				continue
			}
			seen[summary.PublicationNumber] = struct{}{}
		}

		url := summary.DirectLink()
		if url == "" {
			p.warn("no HTML version available", "publication", summary.PublicationNumber)
			continue
		}
		jobs = append(jobs, parseJob{summary: summary, url: url})
	}

	workers := p.parseWorkers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		return nil
	}

	jobCh := make(chan parseJob)
	var (
		mu   sync.Mutex
		docs []*domain.NoticeDocument
		wg   sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				doc, err := p.parser.Parse(ctx, job.url)
				if err != nil {
					p.warn("parse notice", "url", job.url, "publication", job.summary.PublicationNumber, "error", err)
					continue
				}

				// Summary fields are copied, not re-derived from
				// the page.
				doc.PublicationNumber = job.summary.PublicationNumber
				doc.BuyerCountries = job.summary.BuyerCountries
				doc.EstimatedValue = job.summary.EstimatedValue
				doc.HTMLDirectLinks = job.summary.HTMLDirectLinks
				doc.HTMLLinks = job.summary.HTMLLinks
				doc.PDFLinks = job.summary.PDFLinks

				mu.Lock()
				docs = append(docs, doc)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()

	return docs
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
