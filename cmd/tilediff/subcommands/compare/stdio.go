package compare

import (
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/charmbracelet/lipgloss"
)

var (
	checkMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).SetString("✓")
	crossMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).SetString("✘")
)

func eventsProcessorStdio(ctx *context.Context, verbose bool) chan struct{} {
	done := make(chan struct{})
	listener := ctx.Events().Listen()
	go func() {
		for event := range listener {
			switch event := event.(type) {
			case events.ChunkDiffers:
				ctx.Logger.Info("%s %s: content differs", crossMark, event.Coord)
			case events.ChunkMissing:
				ctx.Logger.Info("%s %s: missing in %s", crossMark, event.Coord, event.Side)
			case events.ChunkIdentical:
				if verbose {
					ctx.Logger.Info("%s %s", checkMark, event.Coord)
				}
			case events.Done:
				ctx.Logger.Trace("compare", "%s done", event.Operation)
			default:
			}
		}
		done <- struct{}{}
	}()
	return done
}
