package cmd

import (
	"EmberFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动EmberFM服务器",
	Long:  `启动EmberFM音乐发现系统的HTTP服务器，提供账号生命周期与试听投票API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
