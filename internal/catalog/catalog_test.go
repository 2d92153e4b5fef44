package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

func line(desc string) procurement.OrderLine {
	return procurement.NewOrderLine(desc, decimal.NewFromInt(1), 1, "pieces")
}

func TestDefault_Groups(t *testing.T) {
	c := Default()
	groups := c.Groups()
	require.Len(t, groups, 4)
	assert.Equal(t, "031", groups[0].ID)
	assert.Equal(t, "IT - Software", groups[0].Name)

	name, ok := c.Group("051")
	assert.True(t, ok)
	assert.Equal(t, "Office Equipment & Supplies", name)

	_, ok = c.Group("999")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	c := Default()
	cases := []struct {
		title string
		lines []procurement.OrderLine
		want  string
	}{
		{"Adobe Creative Cloud", []procurement.OrderLine{line("Creative Cloud licenses")}, "031"},
		{"New laptops for onboarding", []procurement.OrderLine{line("Dell Latitude Laptops"), line("HP Monitors 27 inch")}, "032"},
		{"Q3 workshop", []procurement.OrderLine{line("Consulting Hours"), line("Training Sessions")}, "041"},
		{"Office refresh", []procurement.OrderLine{line("Office Chairs"), line("Printer Paper A4")}, "051"},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			id, _, ok := c.Classify(tc.title, tc.lines)
			require.True(t, ok)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestClassify_NoMatch(t *testing.T) {
	_, _, ok := Default().Classify("Catering", []procurement.OrderLine{line("Sandwich platters")})
	assert.False(t, ok)
}

func TestLoad_FileOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
groups:
  - id: "099"
    category: Facilities
    group: Catering
    keywords: [Catering, Sandwich]
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	id, name, ok := c.Classify("Team lunch", []procurement.OrderLine{line("Sandwich platters")})
	require.True(t, ok)
	assert.Equal(t, "099", id)
	assert.Equal(t, "Catering", name)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("groups: []"))
	assert.Error(t, err)

	_, err = Parse([]byte(`groups: [{id: "1", group: A}, {id: "1", group: B}]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`groups: [{id: "", group: A}]`))
	assert.Error(t, err)

	_, err = Parse([]byte(":not yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Groups(), 4)
}
