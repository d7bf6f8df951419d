// Package pipeline implements the scan-reconcile-process cycle: one worker,
// one candidate at a time, one remote mutation in flight. Progress is
// published to an observable State and to the event hub; durability lives in
// the ledger.
package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fluxlab/curator/internal/catalog"
	"github.com/fluxlab/curator/internal/config"
	"github.com/fluxlab/curator/internal/events"
	"github.com/fluxlab/curator/internal/extract"
	"github.com/fluxlab/curator/internal/history"
	"github.com/fluxlab/curator/internal/ledger"
	"github.com/fluxlab/curator/internal/log"
	"github.com/fluxlab/curator/internal/scan"
	"github.com/fluxlab/curator/internal/session"
	"github.com/zeebo/blake3"
)

// CycleStats summarizes one completed cycle.
type CycleStats struct {
	Total        int
	Succeeded    int
	Failed       int
	StoppedEarly bool
}

// Loop drives the per-cycle algorithm. Construct with NewLoop; run cycles via
// RunCycle. The loop never processes candidates concurrently.
type Loop struct {
	scanner    *scan.Scanner
	ledger     *ledger.Ledger
	extractors *extract.Registry
	client     catalog.Client
	session    *session.Session
	state      *State
	hub        *events.Hub
	history    *history.Store // optional
	logger     *slog.Logger

	repository string
	tags       []string
	entryDelay time.Duration

	cycleSeq atomic.Int64

	sleep func(ctx context.Context, d time.Duration) bool
}

// NewLoop wires a processing loop. history may be nil in batch mode.
func NewLoop(
	cfg *config.Config,
	scanner *scan.Scanner,
	led *ledger.Ledger,
	extractors *extract.Registry,
	client catalog.Client,
	sess *session.Session,
	state *State,
	hub *events.Hub,
	hist *history.Store,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		scanner:    scanner,
		ledger:     led,
		extractors: extractors,
		client:     client,
		session:    sess,
		state:      state,
		hub:        hub,
		history:    hist,
		logger:     logger.With("component", "pipeline"),
		repository: cfg.Catalog.Repository,
		tags:       cfg.Catalog.Tags,
		entryDelay: cfg.Service.EntryDelay,
		sleep:      sleepCtx,
	}
}

// State returns the loop's observable state.
func (l *Loop) State() *State { return l.state }

// RunCycle executes one scan-reconcile-process pass. A candidate failure never
// aborts the cycle; a scan failure does. Cancellation is honored at the top of
// the candidate loop, so the returned stats may be partial.
func (l *Loop) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	l.state.setStatus(StatusScanning)
	processed := l.ledger.Load()

	candidates, err := l.scanner.Scan(ctx)
	if err != nil {
		l.state.setStatus(StatusIdle)
		return stats, fmt.Errorf("scan: %w", err)
	}

	var fresh []scan.Candidate
	for _, c := range candidates {
		if _, done := processed[c.Name]; !done {
			fresh = append(fresh, c)
		}
	}
	stats.Total = len(fresh)

	names := make([]string, len(fresh))
	for i, c := range fresh {
		names[i] = c.Name
	}
	l.state.beginCycle(names)

	if len(fresh) == 0 {
		l.state.endCycle(StatusNoNewItems)
		l.hub.Publish(events.TypeCycleIdle, map[string]any{"total": 0})
		return stats, nil
	}

	cycleLog := log.WithCycle(l.cycleSeq.Add(1))

	l.hub.Publish(events.TypeCycleStarted, map[string]any{"total": len(fresh)})
	cycleLog.Info("cycle started", "total", len(fresh))

	cycleID := ""
	if l.history != nil {
		if id, err := l.history.BeginCycle(ctx, len(fresh)); err != nil {
			cycleLog.Warn("history unavailable for this cycle", "error", err)
		} else {
			cycleID = id
		}
	}

	for i, cand := range fresh {
		if ctx.Err() != nil {
			stats.StoppedEarly = true
			break
		}

		l.state.startEntry(cand.Name, i)
		l.hub.Publish(events.TypeEntryStarted, map[string]any{
			"name": cand.Name, "index": i, "total": len(fresh),
		})

		entryLog := log.WithEntry(cand.Name)
		res := l.processEntry(ctx, cand)
		if res.err != nil {
			stats.Failed++
			entryLog.Warn("entry failed", "error", res.err)
			l.hub.Publish(events.TypeEntryFailed, map[string]any{
				"name": cand.Name, "error": res.err.Error(),
			})
		} else {
			stats.Succeeded++
			l.ledger.Append(cand.Name)
			l.state.markProcessed(cand.Name)
			entryLog.Info("entry registered", "record", res.recordID)
			l.hub.Publish(events.TypeEntryProcessed, map[string]any{
				"name": cand.Name, "record": res.recordID, "task": res.taskID,
			})
		}

		if cycleID != "" {
			rec := history.Record{
				CycleID:   cycleID,
				EntryName: cand.Name,
				EntryPath: cand.Path,
				RecordID:  res.recordID,
				TaskID:    res.taskID,
				Status:    history.StatusRegistered,
			}
			if res.err != nil {
				rec.Status = history.StatusFailed
				rec.Error = res.err.Error()
			}
			if err := l.history.AddRecord(ctx, rec); err != nil {
				entryLog.Warn("history write failed", "error", err)
			}
		}

		if i < len(fresh)-1 && l.entryDelay > 0 {
			if !l.sleep(ctx, l.entryDelay) {
				stats.StoppedEarly = true
				break
			}
		}
	}

	if cycleID != "" {
		if err := l.history.FinishCycle(ctx, cycleID, stats.Succeeded, stats.Failed, stats.StoppedEarly); err != nil {
			cycleLog.Warn("history finish failed", "history_cycle", cycleID, "error", err)
		}
	}

	l.state.endCycle(StatusComplete)
	l.hub.Publish(events.TypeCycleComplete, map[string]any{
		"total": stats.Total, "succeeded": stats.Succeeded, "failed": stats.Failed,
	})
	cycleLog.Info("cycle complete",
		"total", stats.Total, "succeeded", stats.Succeeded, "failed", stats.Failed,
		"stopped_early", stats.StoppedEarly)
	return stats, nil
}

type entryResult struct {
	recordID string
	taskID   string
	err      error
}

// processEntry performs the single-candidate unit of work: derive a title,
// extract metadata, re-assert the session context, create the record, then
// start the upload. Record creation failure aborts the unit with no ledger
// write. Upload-start failure also aborts, leaving an empty record behind; the
// candidate is retried next cycle as a new record.
func (l *Loop) processEntry(ctx context.Context, cand scan.Candidate) entryResult {
	title := cand.Name
	if cand.Kind == scan.KindFile {
		title = strings.TrimSuffix(title, filepath.Ext(title))
	}

	meta, err := l.extractors.FileMetadata(cand.Path)
	if err != nil {
		return entryResult{err: fmt.Errorf("stat %s: %w", cand.Path, err)}
	}
	if cand.Kind == scan.KindFile {
		if sum, err := hashFile(cand.Path); err == nil {
			meta["content_hash"] = sum
		} else {
			l.logger.Warn("content hash skipped", "entry", cand.Name, "error", err)
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return entryResult{err: fmt.Errorf("encode metadata for %s: %w", cand.Name, err)}
	}

	// The selection is re-read per entry: an operator may have switched
	// projects since the previous candidate.
	sel := l.session.Snapshot()
	if sel.Context != "" {
		if err := l.client.SetContext(ctx, sel.Context); err != nil {
			return entryResult{err: fmt.Errorf("set context: %w", err)}
		}
	}

	recordID, err := l.client.CreateRecord(ctx, catalog.CreateRecordRequest{
		Title:      title,
		Metadata:   metaJSON,
		ParentID:   sel.Collection,
		Repository: l.repository,
		Tags:       l.tags,
	})
	if err != nil {
		return entryResult{err: fmt.Errorf("create record: %w", err)}
	}

	info, err := l.client.Put(ctx, recordID, cand.Path, false)
	if err != nil {
		return entryResult{recordID: recordID, err: fmt.Errorf("start upload: %w", err)}
	}

	return entryResult{recordID: recordID, taskID: info.ID}
}

// hashFile streams the file through BLAKE3. Data files can be large, so no
// whole-file read here.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sleepCtx sleeps for d unless ctx is cancelled first. Reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
