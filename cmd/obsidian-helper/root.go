package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "obsidian-helper",
	Short: "Telegram assistant for an Obsidian vault",
	Long: `obsidian-helper connects a Telegram bot to the Gemini API and turns
natural-language messages into file operations against a Markdown vault.
It also derives recurring events from note frontmatter and delivers them
back through the bot.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
