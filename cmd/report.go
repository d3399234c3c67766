package cmd

import (
	"fmt"
	"sort"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/db"
	"github.com/jsphweid/harmonia/util"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
)

var checkArchive bool

func init() {
	reportCmd.Flags().BoolVar(&checkArchive, "archived", false, "look the compositions up in the DynamoDB archive")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <snapshot>...",
	Short: "Creates a report",
	Long:  `Summarizes saved compositions: chord usage and modulations.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snaps []composition.Composition
		for _, path := range args {
			snap, err := composition.Load(path)
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}

		archived := map[string]db.Record{}
		if checkArchive {
			archive, err := db.New(cfg)
			if err != nil {
				return err
			}
			ids := make([]string, len(snaps))
			for i, s := range snaps {
				ids[i] = s.ID
			}
			archived, err = archive.Get(cmd.Context(), ids)
			if err != nil {
				return err
			}
		}
		report(snaps, archived)
		return nil
	},
}

type chordsReport struct {
	numMeasures    int
	numSections    int
	numModulations int
	counts         map[string]int
}

func analyze(snaps []composition.Composition) chordsReport {
	r := chordsReport{counts: make(map[string]int)}
	for _, s := range snaps {
		r.numMeasures += len(s.Measures)
		r.numSections += len(s.Sections)
		r.numModulations += s.Modulations()
		for name, n := range s.ChordCounts() {
			r.counts[name] += n
		}
	}
	return r
}

func report(snaps []composition.Composition, archived map[string]db.Record) {
	r := analyze(snaps)
	fmt.Printf("compositions: %v\n", len(snaps))
	fmt.Printf("measures: %v\n", r.numMeasures)
	fmt.Printf("sections: %v\n", r.numSections)
	fmt.Printf("modulations: %v\n", r.numModulations)

	names := util.SortedKeys(r.counts)
	sort.SliceStable(names, func(i, j int) bool {
		return r.counts[names[i]] > r.counts[names[j]]
	})
	total := util.Sum(maps.Values(r.counts))
	for _, name := range names {
		fmt.Printf("  %-6s %5d  %5.1f%%\n", name, r.counts[name], 100*float64(r.counts[name])/float64(total))
	}

	if checkArchive {
		for _, s := range snaps {
			_, ok := archived[s.ID]
			fmt.Printf("%s archived: %v\n", s.ID, ok)
		}
	}
}
