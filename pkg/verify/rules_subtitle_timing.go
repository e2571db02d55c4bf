package verify

import (
	"sort"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/dcp"
)

const (
	subtitleFirstEventMinSeconds = 4
	subtitleMinDurationFrames    = 15
	subtitleMinGapFrames         = 2
	subtitleMaxConcurrentLines   = 3
	subtitleWarnLineLength       = 52
	subtitleErrLineLength        = 79
	closedCaptionMaxLineLength   = 32
)

// subtitleTimingNotes implements the subtitle-timing heuristics of
// spec.md §4.8: first-event delay, minimum event duration, minimum gap
// between consecutive events, and the sweep-line concurrency/length
// bounds. Event times are converted to frames at each timecode's own
// Rate; the first-event threshold is subtitleFirstEventMinSeconds*fps.
func subtitleTimingNotes(pkg *dcp.Package, fps int) []Note {
	var notes []Note
	for _, c := range pkg.CPLs {
		for _, reel := range c.Reels {
			if reel.MainSubtitle != nil && reel.MainSubtitle.Resolved != nil {
				if sub, ok := reel.MainSubtitle.Resolved.(*asset.SubtitleAsset); ok && len(sub.Events) > 0 {
					notes = append(notes, subtitleEventNotes(reel.MainSubtitle.ID.String(), sub.Events, fps, false)...)
				}
			}
			for _, cc := range reel.ClosedCaptions {
				if cc == nil || cc.Resolved == nil {
					continue
				}
				if ccAsset, ok := cc.Resolved.(*asset.ClosedCaptionAsset); ok && len(ccAsset.Events) > 0 {
					notes = append(notes, subtitleEventNotes(cc.ID.String(), ccAsset.Events, fps, true)...)
				}
			}
		}
	}
	return notes
}

// subtitleEventNotes sweeps sorted in/out boundaries, tracking the
// number of simultaneously-visible lines and each line's character
// length (spec.md Design Note 5 / §4.8's event-sweep concurrency model).
func subtitleEventNotes(assetID string, events []asset.SubtitleEvent, fps int, closedCaption bool) []Note {
	var notes []Note
	sorted := append([]asset.SubtitleEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].In.ToFrames() < sorted[j].In.ToFrames() })

	first := sorted[0]
	if first.In.ToFrames() < subtitleFirstEventMinSeconds*fps {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSubtitleFirstTextTime, Text: assetID})
	}

	for i, ev := range sorted {
		duration := ev.Out.ToFrames() - ev.In.ToFrames()
		if duration < subtitleMinDurationFrames {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSubtitleDuration, Text: assetID})
		}
		if i > 0 {
			gap := ev.In.ToFrames() - sorted[i-1].Out.ToFrames()
			if gap >= 0 && gap < subtitleMinGapFrames {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSubtitleSpacing, Text: assetID})
			}
		}
	}

	notes = append(notes, sweepConcurrencyNotes(assetID, sorted, closedCaption)...)
	return notes
}

// sweepConcurrencyNotes walks in/out boundaries left to right, keeping a
// live set keyed by vertical position so two lines at different screen
// positions never count against each other's concurrency or length.
func sweepConcurrencyNotes(assetID string, events []asset.SubtitleEvent, closedCaption bool) []Note {
	var notes []Note
	type boundary struct {
		frame int
		enter bool
		ev    asset.SubtitleEvent
	}
	var bounds []boundary
	for _, ev := range events {
		bounds = append(bounds, boundary{ev.In.ToFrames(), true, ev})
		bounds = append(bounds, boundary{ev.Out.ToFrames(), false, ev})
	}
	sort.SliceStable(bounds, func(i, j int) bool {
		if bounds[i].frame != bounds[j].frame {
			return bounds[i].frame < bounds[j].frame
		}
		return bounds[i].enter && !bounds[j].enter
	})

	live := map[float64]int{} // vertical position -> character count
	flaggedCount, flaggedLength := false, false

	for _, b := range bounds {
		if b.ev.Kind != asset.SubtitleEventText {
			continue
		}
		if b.enter {
			live[b.ev.VPosition] = len([]rune(b.ev.Text))
		} else {
			delete(live, b.ev.VPosition)
		}

		if !flaggedCount && len(live) > subtitleMaxConcurrentLines {
			code := InvalidSubtitleLineCount
			if closedCaption {
				code = InvalidClosedCaptionLineCount
			}
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: code, Text: assetID})
			flaggedCount = true
		}

		if !flaggedLength {
			for _, length := range live {
				if closedCaption {
					if length > closedCaptionMaxLineLength {
						notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidClosedCaptionLineLength, Text: assetID})
						flaggedLength = true
						break
					}
					continue
				}
				if length > subtitleErrLineLength {
					notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSubtitleLineLength, Text: assetID})
					flaggedLength = true
					break
				}
				if length > subtitleWarnLineLength {
					notes = append(notes, Note{Severity: SeverityWarning, Code: NearlyInvalidSubtitleLineLength, Text: assetID})
					flaggedLength = true
					break
				}
			}
		}
	}

	return notes
}
