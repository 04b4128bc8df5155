package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/rtsne/tsne"
)

func TestApplyParamFlags(t *testing.T) {
	defaults := tsne.Params{TargetDims: 2, Perplexity: 30, Theta: 0.5, NumThreads: 4, MaxIter: 1000}

	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().AddFlagSet(RunCmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--theta", "0", "-d", "3"}))

	got := applyParamFlags(cmd, defaults)
	assert.Equal(t, tsne.Params{TargetDims: 3, Perplexity: 30, Theta: 0, NumThreads: 4, MaxIter: 1000}, got)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, int64(8770), parseValue("8770"))
	assert.Equal(t, int64(1), parseValue("1"))
	assert.Equal(t, 0.25, parseValue("0.25"))
	assert.Equal(t, "native", parseValue("native"))
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	VersionCmd.SetOut(&buf)
	VersionCmd.Run(VersionCmd, nil)
	assert.Contains(t, buf.String(), "rtsne")
	assert.Contains(t, buf.String(), "Native:")
}
