package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAbsent(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAbsent(""))
	assert.True(t, IsAbsent("   "))
	assert.True(t, IsAbsent("N/A"))
	assert.True(t, IsAbsent(" n/a "))
	assert.False(t, IsAbsent("NA Foods"))
	assert.False(t, IsAbsent("acme.fr"))
}

func TestCompanyInfoMerge(t *testing.T) {
	t.Parallel()

	c := CompanyInfo{Industry: "Traiteur"}
	c.Merge(map[string]any{
		"domain":         "acme-traiteur.fr",
		"website":        "N/A",
		"industry":       "n/a",
		"employee_count": float64(120),
		"headquarters":   "Lyon, France",
		"unrelated":      "ignored",
	})

	assert.Equal(t, "acme-traiteur.fr", c.Domain)
	assert.Empty(t, c.Website)
	assert.Equal(t, "Traiteur", c.Industry, "N/A must not overwrite an existing value")
	assert.Equal(t, "120", c.EmployeeCount)
	assert.Equal(t, "Lyon, France", c.Headquarters)
}

func TestCompanyInfoMerge_Aliases(t *testing.T) {
	t.Parallel()

	var c CompanyInfo
	c.Merge(map[string]any{"site_web": "https://acme.fr", "effectif": "50-99", "siège": "Paris"})

	assert.Equal(t, "https://acme.fr", c.Website)
	assert.Equal(t, "50-99", c.EmployeeCount)
	assert.Equal(t, "Paris", c.Headquarters)
	assert.False(t, c.IsEmpty())
	assert.True(t, CompanyInfo{}.IsEmpty())
}

func TestCompanyInfoMerge_Nil(t *testing.T) {
	t.Parallel()

	c := CompanyInfo{Domain: "acme.fr"}
	c.Merge(nil)
	assert.Equal(t, CompanyInfo{Domain: "acme.fr"}, c)
}
