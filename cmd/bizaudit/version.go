package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/bizaudit/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := common.GetVersionInfo()
		fmt.Printf("BizAudit version %s\n", common.GetFullVersion())
		fmt.Printf("Go: %s\n", info.GoVersion)
	},
}
