package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/rtsne/bhtsne"
	"github.com/teranos/rtsne/internal/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show rtsne version information",
	Long:  `Display version, build time, commit hash, platform and native library information for the rtsne binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := struct {
			version.Info
			Native string `json:"native,omitempty"`
		}{Info: version.Get(), Native: nativeVersion()}

		out := cmd.OutOrStdout()
		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Fprintln(out, string(output))
		} else {
			fmt.Fprintln(out, info.String())
			fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
			if info.Native != "" {
				fmt.Fprintf(out, "Native: %s\n", info.Native)
			} else {
				fmt.Fprintln(out, "Native: not built (use -tags nativetsne)")
			}
		}
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}

func nativeVersion() string {
	if !bhtsne.Available {
		return ""
	}
	v, err := bhtsne.Version()
	if err != nil {
		return "unknown (" + err.Error() + ")"
	}
	return v
}
