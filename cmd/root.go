package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/robalobadob/hiddenpicture/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hiddenpicture",
	Short: "Hidden picture game server",
	Long: `hiddenpicture serves a hidden-object game: upload a picture, hide points in it
and find them again by clicking. Game state is saved per player in memory,
SQLite or Redis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		setupLogging(cfg)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "hiddenpicture.yml", "config file path")
}
