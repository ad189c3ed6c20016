package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradepost/pkg/models"
	"tradepost/pkg/sync"
)

var flagThreadInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&flagThreadInterval, "interval", 0, "poll interval (default 7s)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Watch a conversation, polling for new messages until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		p := sync.NewThreadPoller(c, args[0], flagThreadInterval)
		p.OnConversation = func(v models.ConversationView) {
			printConversation(v, c.UserID())
			fmt.Println("---")
		}
		p.OnMessages = func(msgs []models.Message) {
			for _, m := range msgs {
				printMessage(m, c.UserID())
			}
			fmt.Println("---")
		}
		p.OnState = func(state sync.ThreadState, err error) {
			if state == sync.ThreadError {
				errCh <- err
			}
		}
		p.Start()
		defer p.Stop()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigc:
			return nil
		case err := <-errCh:
			return err
		}
	},
}

func printMessage(m models.Message, self string) {
	who := m.Sender
	if m.Sender == self {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", time.Unix(0, m.TS).Format("15:04:05"), who, m.Content)
}
