package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/distworks/mutexkit/dme/fabric"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulated cluster for a number of logical instants",
	Run:   run,
}

func init() {
	RootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("peers", 3, "Number of agents in the cluster")
	runCmd.Flags().Int("instants", 60, "Number of logical instants to run")
	runCmd.Flags().Int("idle", 2, "Base client idle delay in instants (staggered by agent ID)")
	runCmd.Flags().Int("hold", 2, "Client hold delay in instants")
	runCmd.Flags().Bool("trace", false, "Print a per-instant trace")
}

func run(cmd *cobra.Command, _ []string) {
	peers, _ := cmd.Flags().GetInt("peers")
	instants, _ := cmd.Flags().GetInt("instants")
	idle, _ := cmd.Flags().GetInt("idle")
	hold, _ := cmd.Flags().GetInt("hold")
	trace, _ := cmd.Flags().GetBool("trace")

	c, err := fabric.NewCluster(fabric.Config{
		Peers:  peers,
		Logger: log.New(os.Stderr, "", log.LstdFlags),
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Stagger the client cycles so the request pattern stays irregular.
	for i := 0; i < peers; i++ {
		_, err := c.AttachClient(i, fabric.ClientConfig{
			IdleInstants: idle + i,
			HoldInstants: hold,
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	var diverged bool
	for _, rec := range c.Run(instants) {
		if !rec.Agreed {
			diverged = true
		}

		if trace {
			printInstant(rec)
		}
	}

	fmt.Printf("\n%d agents, %d instants\n", peers, instants)
	for id, s := range c.Stats() {
		fmt.Printf("agent %d: requests=%d grants=%d releases=%d dropped=%d ignored=%d\n",
			id, s.RequestsIssued, s.Grants, s.ReleasesIssued,
			s.DroppedRedundant+s.DroppedFull, s.ReleasesIgnored+s.MultipleReleases)
	}

	for id, outstanding := range c.Close() {
		if outstanding > 0 {
			fmt.Printf("agent %d: %d local requests never granted\n", id, outstanding)
		}
	}

	if diverged {
		fmt.Println("replica queues diverged")
		os.Exit(1)
	}

	fmt.Println("replica queues agreed after every instant")
}

func printInstant(rec fabric.Instant) {
	fmt.Printf("instant %3d: requests=%v releases=%v grants=%v queue=%v\n",
		rec.Instant, rec.Requests, rec.Releases, rec.Grants, rec.Queue)
}
