package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOrder(t *testing.T) {
	assert.Equal(t, "R1\n\nG1", Merge([]string{"R1"}, []string{"G1"}, "", nil))
}

func TestMergeNormalizesEachPart(t *testing.T) {
	got := Merge([]string{"  line one \n\n\n line two  "}, []string{"", "\n \n", "G"}, "ignored", nil)

	assert.Equal(t, "line one\nline two\n\nG", got)
}

func TestMergeFallsBackToAutomation(t *testing.T) {
	assert.Equal(t, "All 2 actions completed.", Merge(nil, nil, "All 2 actions completed.", nil))
	assert.Equal(t, "Done.", Merge(nil, []string{" "}, "", nil))
}

func TestMergeImageNote(t *testing.T) {
	got := Merge(nil, []string{"Here you go."}, "", []string{"a.png", "", "b.png"})

	assert.Equal(t, "Here you go.\n\nGenerated 2 image(s).", got)
	assert.Equal(t, "Done.\n\nGenerated 1 image(s).", Merge(nil, nil, "", []string{"a.png"}))
}
