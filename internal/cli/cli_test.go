package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

func init() {
	color.NoColor = true
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := RootCmd()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"admin", "create"},
		{"debts", "reconcile"},
		{"tracking", "new"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	reconcile, _, err := root.Find([]string{"debts", "reconcile"})
	require.NoError(t, err)
	assert.NotNil(t, reconcile.Flags().Lookup("fix"))
}

func TestTrackingNew(t *testing.T) {
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"tracking", "new", "-n", "3"})

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, tn := range lines {
		assert.True(t, strings.HasPrefix(tn, "GE"), tn)
		assert.True(t, domain.IsWellFormedTrackingNumber(tn), tn)
		assert.Equal(t, strings.ToUpper(tn), tn)
	}
}

func TestTrackingNew_RejectsZeroCount(t *testing.T) {
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"tracking", "new", "--count", "0"})

	assert.Error(t, root.Execute())
}

func TestAdminCreate_RequiresFlags(t *testing.T) {
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"admin", "create", "--name", "Root"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestPrintDrifts(t *testing.T) {
	t.Run("no drift", func(t *testing.T) {
		var out bytes.Buffer
		printDrifts(&out, nil, false)
		assert.Contains(t, out.String(), "all debt balances match")
	})

	drifts := []domain.DebtDrift{
		{DriverID: "u1", DriverName: "Awa", Stored: decimal.NewFromInt(5000), Computed: decimal.NewFromInt(3000)},
		{DriverID: "u2", DriverName: "Paul", Stored: decimal.Zero, Computed: decimal.NewFromInt(1500)},
	}

	t.Run("report", func(t *testing.T) {
		var out bytes.Buffer
		printDrifts(&out, drifts, false)
		s := out.String()
		assert.Contains(t, s, "DRIFT Awa (u1): stored 5000, pending 3000")
		assert.Contains(t, s, "DRIFT Paul (u2): stored 0, pending 1500")
		assert.Contains(t, s, "2 courier(s) out of balance")
	})

	t.Run("fixed", func(t *testing.T) {
		var out bytes.Buffer
		printDrifts(&out, drifts, true)
		assert.Contains(t, out.String(), "FIXED Awa (u1)")
	})
}
