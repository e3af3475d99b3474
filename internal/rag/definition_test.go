package rag

import (
	"testing"

	"docmind/internal/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDefinition(t *testing.T) {
	pages := []extract.Page{
		{Number: 1, Text: "This agreement references collateralized obligations.\nNothing defined here."},
		{Number: 4, Text: "Definitions.\nCollateral means any asset pledged to secure the loan."},
	}

	def, ok := FindDefinition(pages, "collateral", nil)
	require.True(t, ok)
	assert.Equal(t, "Collateral means any asset pledged to secure the loan.", def.Text)
	assert.Equal(t, 4, def.Page)
}

func TestFindDefinitionWholeWordOnly(t *testing.T) {
	pages := []extract.Page{
		{Number: 2, Text: "Collateralization means the act of pledging assets."},
	}
	_, ok := FindDefinition(pages, "collateral", nil)
	assert.False(t, ok, "substring of a longer word must not match")
}

func TestFindDefinitionVerbs(t *testing.T) {
	pages := []extract.Page{
		{Number: 3, Text: "Borrower shall mean the party receiving funds."},
		{Number: 5, Text: "Lender is defined as the party advancing funds."},
	}
	def, ok := FindDefinition(pages, "borrower", nil)
	require.True(t, ok)
	assert.Equal(t, 3, def.Page)

	def, ok = FindDefinition(pages, "LENDER", nil)
	require.True(t, ok, "matching is case-insensitive")
	assert.Equal(t, 5, def.Page)
}

func TestFindDefinitionEmptyTerm(t *testing.T) {
	_, ok := FindDefinition([]extract.Page{{Number: 1, Text: "x means y"}}, "  ", nil)
	assert.False(t, ok)
}

func TestDefinitionTerm(t *testing.T) {
	assert.Equal(t, "collateral", DefinitionTerm("What is defined as collateral?"))
	assert.Equal(t, "lien", DefinitionTerm("definition of lien"))
	assert.Equal(t, "", DefinitionTerm("   "))
}
