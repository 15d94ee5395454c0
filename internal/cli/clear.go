package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jchatbot/jchat/internal/conversation"
	"github.com/spf13/cobra"
)

var (
	clearForce bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the stored conversation",
	Long: `Clear the stored conversation for this profile.

The chat thread and its request history are deleted. Your identity and the
session window survive, so the next chat starts blank but is still yours.
Requires confirmation unless --force is used.

Examples:
  jchat clear
  jchat clear --force`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "skip confirmation")
}

func runClear(cmd *cobra.Command, args []string) error {
	identity := sessions.GetOrCreateIdentity()
	if identity == "" {
		return fmt.Errorf("could not establish a user identity")
	}

	state := conversation.New(st, sessions, logger)
	state.Load(identity, sessions.NewSessionID())

	if state.Len() == 0 {
		fmt.Println("Nothing to clear.")
		return nil
	}

	if !clearForce {
		fmt.Printf("About to delete %d messages.\n", state.Len())
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	state.Clear()
	fmt.Println("Conversation cleared.")
	return nil
}
