package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "fetch", "import"})
}

func TestFetchCmd_RequiresTarget(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"fetch"})

	assert.Error(t, root.Execute())
}

func TestImportCmd_RequiresDatabase(t *testing.T) {
	t.Setenv("DB_HOST", "")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"import", "reviews.csv"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
}

func TestServeCmd_RejectsInvalidPort(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--port", "70000"})

	assert.Error(t, root.Execute())
}
