package runner

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/slosh/telemetry"
)

// windowReport carries everything produced when a stats window closes.
type windowReport struct {
	stats     telemetry.WindowStats
	perf      telemetry.PerfStats
	bookmarks []telemetry.Bookmark
	snapshots []*telemetry.Snapshot
}

// flushTelemetry closes the stats window if it is due and checks for
// bookmarks. Snapshots are captured here so the writer never touches
// live solver buffers.
func (r *Runner) flushTelemetry() (windowReport, bool) {
	if !r.collector.ShouldFlush(r.sim.Tick) {
		return windowReport{}, false
	}

	r.speeds = r.sim.Particles.Speeds(r.speeds[:0])
	rep := windowReport{
		stats: r.collector.Flush(r.lastDiag, r.speeds),
		perf:  r.perf.Stats(),
	}

	if r.logStats {
		rep.stats.LogStats()
		rep.perf.LogStats()
	}

	rep.bookmarks = r.bookmarks.Check(rep.stats)
	for i := range rep.bookmarks {
		bm := &rep.bookmarks[i]
		if r.logStats {
			bm.LogBookmark()
		}
		if r.snapshotDir != "" {
			snap := telemetry.Capture(r.sim, r.cfg.Seed)
			snap.Bookmark = bm
			rep.snapshots = append(rep.snapshots, snap)
		}
	}
	return rep, true
}

// write drains reports into the output files until the channel closes.
func (r *Runner) write(reports <-chan windowReport) error {
	for rep := range reports {
		if err := r.output.WriteTelemetry(rep.stats); err != nil {
			return err
		}
		if err := r.output.WritePerf(rep.perf, rep.stats.WindowEndTick); err != nil {
			return err
		}
		for _, bm := range rep.bookmarks {
			if err := r.output.WriteBookmark(bm); err != nil {
				return err
			}
		}
		for _, snap := range rep.snapshots {
			path, err := telemetry.SaveSnapshot(snap, r.snapshotDir)
			if err != nil {
				return fmt.Errorf("bookmark snapshot: %w", err)
			}
			slog.Info("snapshot saved", "path", path, "tick", snap.Tick, "bookmark", string(snap.Bookmark.Type))
		}
	}
	return nil
}
