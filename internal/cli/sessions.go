package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show stored session windows",
	Long: `Show every identity the store knows about and how long its session
window has left. Expired sessions are purged automatically the next time
jchat starts.`,
	RunE: runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	current := sessions.GetOrCreateIdentity()
	all := sessions.Sessions()

	if len(all) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	identities := make([]string, 0, len(all))
	for id := range all {
		identities = append(identities, id)
	}
	sort.Strings(identities)

	now := time.Now()
	for _, id := range identities {
		data := all[id]
		marker := " "
		if id == current {
			marker = "*"
		}

		remaining := data.Expiration.Sub(now).Round(time.Minute)
		status := fmt.Sprintf("expires in %s", remaining)
		if remaining <= 0 {
			status = "expired"
		}

		fmt.Printf("%s %s\n", marker, id)
		fmt.Printf("    last active %s, %s\n",
			data.LastAccess.Format("2006-01-02 15:04"), status)
	}

	fmt.Println("\n* = this profile")
	return nil
}
