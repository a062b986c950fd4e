package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "Class teachers - Term 1",
		Headers: []string{"Class", "Class Teacher"},
		Rows: []map[string]string{
			{"Class": "9A", "Class Teacher": "Grace Achieng"},
			{"Class": "9B", "Class Teacher": "Peter Otieno"},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Class,Class Teacher\n9A,Grace Achieng\n9B,Peter Otieno\n", string(out))
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	empty := rosterDataset()
	empty.Rows = nil
	out, err = Render(FormatPDF, empty)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := Render(Format("xlsx"), rosterDataset())
	assert.Error(t, err)

	_, err = Render(FormatCSV, Dataset{})
	assert.Error(t, err)

	assert.True(t, FormatPDF.Valid())
	assert.False(t, Format("doc").Valid())
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}
