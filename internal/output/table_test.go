package output_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/pharos-avatars/internal/output"
)

func TestTable_Render(t *testing.T) {
	t.Parallel()

	table := output.NewTable("ID", "NAME", "STATE")
	table.AddRow("0", "Azure Fox", "minted")
	table.AddRow("12", "Ember", "mintable")

	expected := "" +
		"ID  NAME       STATE\n" +
		"--  ---------  --------\n" +
		"0   Azure Fox  minted\n" +
		"12  Ember      mintable\n"
	assert.Equal(t, expected, table.String())
	assert.Equal(t, 2, table.Len())
}

func TestTable_NoHeaderAndSeparator(t *testing.T) {
	t.Parallel()
	table := output.NewTable("A", "B")
	table.SetNoHeader(true)
	table.SetSeparator(" | ")
	table.AddRow("x", "y")
	assert.Equal(t, "x | y\n", table.String())
}

func TestTable_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, output.NewTable().String())

	headersOnly := output.NewTable("ID", "NAME")
	assert.Equal(t, "ID  NAME\n--  ----\n", headersOnly.String())
}

func TestTable_RaggedRows(t *testing.T) {
	t.Parallel()
	table := output.NewTable("A")
	table.AddRow("1", "extra")
	table.AddRow()

	assert.Equal(t, "A\n-  -----\n1  extra\n\n", table.String())
}

func TestTable_MaxWidth(t *testing.T) {
	t.Parallel()
	table := output.NewTable("URI")
	table.SetMaxWidth(10)
	table.AddRow("ipfs://bafybeigdyrzt/7.json")
	table.AddRow("short")

	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	assert.Equal(t, "ipfs://...", lines[2])
	assert.Equal(t, "short", lines[3])
}

func TestTable_UnicodeWidth(t *testing.T) {
	t.Parallel()
	table := output.NewTable("NAME", "X")
	table.AddRow("Été", "1")
	table.AddRow("Zo", "2")
	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	assert.Equal(t, "Été   1", lines[2])
	assert.Equal(t, "Zo    2", lines[3])
}
