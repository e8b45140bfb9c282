package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Code", "Course", "Grade"},
		Rows: []map[string]string{
			{"Code": "CS101", "Course": "Programming", "Grade": "A"},
			{"Code": "MA201", "Course": "Calculus", "Grade": "B"},
		},
		Summary: []string{"Cumulative GPA: 3.50"},
	}
}

func TestCSVRender(t *testing.T) {
	raw, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "Code,Course,Grade")
	assert.Contains(t, out, "CS101,Programming,A")
	assert.Contains(t, out, "Cumulative GPA: 3.50")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	raw, err := NewPDFExporter().Render(sampleDataset(), "Transcript")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestPDFRenderRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "Transcript")
	require.Error(t, err)
}
