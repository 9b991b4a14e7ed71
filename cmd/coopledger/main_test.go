package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/app"
	_ "github.com/odyssey-erp/coopledger/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())

	args := os.Args
	t.Cleanup(func() { os.Args = args })
	os.Args = []string{"coopledger", "serve"}

	require.NotPanics(t, main)
}
