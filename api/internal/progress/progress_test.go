package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	var rec Recorder
	s := Scale(&rec, 25, 80)
	s.Report(0, "start")
	s.Report(50, "half")
	s.Report(100, "done")
	s.Report(150, "over")

	got := rec.Events()
	assert.Equal(t, []Event{{25, "start"}, {52, "half"}, {80, "done"}, {80, "over"}}, got)
	assert.Equal(t, []string{"start", "half", "done", "over"}, rec.Messages())
}

func TestScaleNilParent(t *testing.T) {
	assert.NotPanics(t, func() { Scale(nil, 0, 100).Report(10, "x") })
}
