package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagReceiver string
	flagItem     string
)

func init() {
	sendCmd.Flags().StringVar(&flagReceiver, "to", "", "receiver user id (starts a conversation instead of replying)")
	sendCmd.Flags().StringVar(&flagItem, "item", "", "item id to scope a new conversation to")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send [conversation-id] <message>",
	Short: "Send a message to a conversation, or start one with --to",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if flagReceiver != "" {
			if len(args) != 1 {
				return fmt.Errorf("with --to, pass only the message text")
			}
			conv, msg, err := c.CreateConversation(ctx, flagReceiver, flagItem, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("conversation %s, message %s sent\n", conv.ID, msg.ID)
			return nil
		}

		if len(args) != 2 {
			return fmt.Errorf("usage: send <conversation-id> <message>")
		}
		m, err := c.SendMessage(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("message %s sent\n", m.ID)
		return nil
	},
}
