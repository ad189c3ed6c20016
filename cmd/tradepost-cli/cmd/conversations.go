package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradepost/pkg/models"
)

func init() {
	rootCmd.AddCommand(conversationsCmd)
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List the acting user's conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		views, err := c.ListConversations(ctx)
		if err != nil {
			return err
		}
		if len(views) == 0 {
			fmt.Println("no conversations")
			return nil
		}
		for _, v := range views {
			printConversation(v, c.UserID())
		}
		return nil
	},
}

func printConversation(v models.ConversationView, self string) {
	other := "?"
	for _, p := range v.Participants {
		if p.ID != self {
			if p.Name != "" {
				other = p.Name
			} else {
				other = p.ID
			}
			break
		}
	}
	line := fmt.Sprintf("%s  with %s", v.ID, other)
	if v.Item != nil {
		line += fmt.Sprintf("  [%s]", v.Item.Title)
	}
	if v.UnreadCount > 0 {
		line += fmt.Sprintf("  (%d unread)", v.UnreadCount)
	}
	if v.LastMessage != nil {
		line += fmt.Sprintf("  last: %q", truncate(v.LastMessage.Content, 40))
	}
	fmt.Println(line)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
