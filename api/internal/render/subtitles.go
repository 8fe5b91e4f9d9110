package render

import (
	"fmt"
	"strings"
	"time"
)

// Script is the full narration, one scene per paragraph.
func Script(sb Storyboard) string {
	parts := make([]string, 0, len(sb.Scenes))
	for _, sc := range sb.Scenes {
		parts = append(parts, sc.Narration)
	}
	return strings.Join(parts, "\n\n")
}

// SRT renders the narration as SubRip subtitles, one cue per scene.
func SRT(sb Storyboard) string {
	var b strings.Builder
	for i, sc := range sb.Scenes {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(sc.Start), srtTime(sc.Start+sc.Duration), sc.Narration)
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
