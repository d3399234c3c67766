package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jsphweid/harmonia/composer"
	hmidi "github.com/jsphweid/harmonia/midi"
	"github.com/jsphweid/harmonia/model"
	"github.com/spf13/cobra"
)

var (
	numMeasures  int
	snapshotPath string
	midiPath     string
)

var (
	numberStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Width(5)
	notesStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e6edf3"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")).PaddingLeft(2)
)

func init() {
	composeCmd.Flags().IntVarP(&numMeasures, "measures", "n", 32, "number of measures to compose")
	composeCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "save the finished composition to this file")
	composeCmd.Flags().StringVar(&midiPath, "midi", "", "also write a MIDI file")
	rootCmd.AddCommand(composeCmd)
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Composes measures and prints them",
	Long:  `Composes measures offline as fast as possible and prints them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return compose(numMeasures)
	},
}

func newComposer() *composer.Composer {
	if cfg.Seed != 0 {
		return composer.New(cfg, composer.WithSeed(cfg.Seed))
	}
	return composer.New(cfg)
}

func printMeasure(n int, m *model.Measure) {
	var parts []string
	for _, inst := range m.Instruments() {
		parts = append(parts, fmt.Sprintf("%s%v", inst, m.PitchesAt(inst, model.NewFraction(0, 1))))
	}
	fmt.Println(numberStyle.Render(fmt.Sprint(n)) +
		notesStyle.Render(strings.Join(parts, " ")) +
		noteStyle.Render(m.Annotation))
}

func compose(n int) error {
	kind, err := configuredKind()
	if err != nil {
		return err
	}
	c := newComposer()
	first, err := c.BeginComposing(kind)
	if err != nil {
		return err
	}
	printMeasure(1, first)

	for i := 2; i <= n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		m, err := waitForMeasure(ctx, c)
		cancel()
		if err != nil {
			_, _ = c.FinishComposing()
			return err
		}
		printMeasure(i, m)
	}

	snap, err := c.FinishComposing()
	if err != nil {
		return err
	}
	fmt.Printf("%d measures, %d sections, %d modulations\n", snap.Played, len(snap.Sections), snap.Modulations())

	if snapshotPath != "" {
		if err := snap.Save(snapshotPath); err != nil {
			return err
		}
	}
	if midiPath != "" {
		return hmidi.WriteFile(midiPath, snap.Measures[:snap.Played], cfg.Tempo)
	}
	return nil
}
