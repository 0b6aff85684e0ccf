package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkDivergenceSpike BookmarkType = "divergence_spike"
	BookmarkSplash          BookmarkType = "splash"
	BookmarkSettled         BookmarkType = "settled"
	BookmarkTerrainBreach   BookmarkType = "terrain_breach"
)

// Thresholds below which a spike is treated as noise.
const (
	minSpikeDiv    = 1e-3
	minSplashSpeed = 1.0
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int64        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	stableWindowsCount int  // consecutive windows with steady kinetic energy
	breaching          bool // terrain was lost in the previous window
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for settled detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkDivergenceSpike,
			bd.checkSplash,
			bd.checkSettled,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	// Breach does not need history: the first window losing solid cells counts.
	if b := bd.checkTerrainBreach(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns past windows oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	ordered := make([]WindowStats, 0, bd.historySize)
	ordered = append(ordered, bd.history[bd.historyIdx:]...)
	return append(ordered, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkDivergenceSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.DivMean
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.DivMean > avg*3.0 && stats.DivMean > minSpikeDiv {
		return &Bookmark{
			Type:        BookmarkDivergenceSpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean divergence %.4g is %.1fx average (%.4g)", stats.DivMean, stats.DivMean/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSplash(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.SpeedMax
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.SpeedMax > avg*2.0 && stats.SpeedMax > minSplashSpeed {
		return &Bookmark{
			Type:        BookmarkSplash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Max particle speed %.2f is %.1fx average (%.2f)", stats.SpeedMax, stats.SpeedMax/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if stats.WaterCells == 0 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}
	recent := history[len(history)-4:]

	var sum float64
	for _, h := range recent {
		sum += h.KineticEnergy
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := h.KineticEnergy - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.0025 means the energy varies by less than 5%
	if mean > 0 && variance/(mean*mean) < 0.0025 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once per settled stretch
		return &Bookmark{
			Type:        BookmarkSettled,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Kinetic energy steady near %.3g over 5+ windows", mean),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkTerrainBreach(stats WindowStats) *Bookmark {
	if stats.TerrainDestroyed == 0 {
		bd.breaching = false
		return nil
	}
	if bd.breaching {
		return nil
	}
	bd.breaching = true
	return &Bookmark{
		Type:        BookmarkTerrainBreach,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d solid cells destroyed, %d remain", stats.TerrainDestroyed, stats.SolidCells),
	}
}
