package tablehtml

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const investmentsTable = `
<table id="investments-table-object" class="datasource-table">
  <thead>
    <tr><th>UII</th><th>Bureau</th><th>Investment Title</th><th>Total FY2021 Spending ($M)</th></tr>
  </thead>
  <tbody>
    <tr>
      <td><a href="/drupal/summary/005/005-000001234">005-000001234</a></td>
      <td>Forest Service</td>
      <td>Integrated   Financial
          Management</td>
      <td>12.4</td>
    </tr>
    <tr>
      <td>005-000005678</td>
      <td>Rural Development</td>
      <td>Loan Servicing</td>
      <td>3.2</td>
    </tr>
  </tbody>
</table>`

func TestParseWithHeader(t *testing.T) {
	rows, err := Parse(investmentsTable)
	require.NoError(t, err)

	want := [][]string{
		{"UII", "Bureau", "Investment Title", "Total FY2021 Spending ($M)"},
		{"005-000001234", "Forest Service", "Integrated Financial Management", "12.4"},
		{"005-000005678", "Rural Development", "Loan Servicing", "3.2"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWithoutThead(t *testing.T) {
	rows, err := Parse(`<table><tr><th>Investment Title</th><th>UII</th></tr><tr><td>Alpha</td><td>123-456</td></tr></table>`)
	require.NoError(t, err)

	want := [][]string{{"Investment Title", "UII"}, {"Alpha", "123-456"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseColspan(t *testing.T) {
	rows, err := Parse(`<table><thead><tr><th colspan="2">Spending</th><th>UII</th></tr></thead>
		<tbody><tr><td>1</td><td>2</td><td>3</td></tr></tbody></table>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spending", "Spending", "UII"}, rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestParseNoTable(t *testing.T) {
	_, err := Parse(`<div>nothing</div>`)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestLinks(t *testing.T) {
	html := investmentsTable + `
		<a href="/drupal/summary/005/005-000001234#top">dup</a>
		<a href="#">skip</a>
		<a href="mailto:ops@example.gov">skip</a>
		<a href="https://other.example.gov/doc">abs</a>`

	links, err := Links(html, "https://itdashboard.gov/drupal/summary/005")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://itdashboard.gov/drupal/summary/005/005-000001234",
		"https://other.example.gov/doc",
	}, links)
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://itdashboard.gov/drupal/summary/005", "/api/v1/pdf/1234")
	require.NoError(t, err)
	assert.Equal(t, "https://itdashboard.gov/api/v1/pdf/1234", got)
}
