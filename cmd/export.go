package cmd

import (
	"fmt"

	"github.com/jsphweid/harmonia/composition"
	hmidi "github.com/jsphweid/harmonia/midi"
	"github.com/spf13/cobra"
)

var includeQueued bool

func init() {
	exportCmd.Flags().BoolVar(&includeQueued, "queued", false, "also export measures composed but never played")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <snapshot> <out.mid>",
	Short: "Exports a saved composition as a MIDI file",
	Long:  `Exports a saved composition as a Standard MIDI File.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := composition.Load(args[0])
		if err != nil {
			return err
		}
		measures := snap.Measures
		if !includeQueued {
			measures = measures[:snap.Played]
		}
		if err := hmidi.WriteFile(args[1], measures, cfg.Tempo); err != nil {
			return err
		}
		fmt.Printf("wrote %d measures to %s\n", len(measures), args[1])
		return nil
	},
}
