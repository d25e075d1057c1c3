// Command spectator is a terminal visualizer: it joins a running server
// exactly like any other client, but never sends an active direction,
// and renders every connected player's position on a tcell screen
// instead of driving gameplay. It demonstrates §2 item 10 of
// SPEC_FULL.md — an external collaborator that proves the reconciliation
// engine is producing a consistent, confirmable view of the world.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"

	"github.com/tomster12/lockstep-netcode/internal/client"
	"github.com/tomster12/lockstep-netcode/internal/sim"
)

func main() {
	serverAddr := "127.0.0.1:32000"
	if len(os.Args) > 1 {
		serverAddr = os.Args[1]
	}

	if err := run(serverAddr); err != nil {
		fmt.Fprintln(os.Stderr, "spectator:", err)
		os.Exit(1)
	}
}

func run(serverAddr string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return eris.Wrap(err, "new screen")
	}
	if err := screen.Init(); err != nil {
		return eris.Wrap(err, "init screen")
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))

	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return eris.Wrapf(err, "dial server %q", serverAddr)
	}
	defer conn.Close()

	view := &spectatorView{screen: screen, palette: slotPalette()}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine := client.New(log, nil, conn, func() sim.PlayerInput { return sim.PlayerInput{} }, view.onFrame)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watchQuitKey(screen, stop)

	return engine.Run(ctx, 60)
}

// watchQuitKey polls for 'q' or Escape and cancels the spectator.
func watchQuitKey(screen tcell.Screen, stop context.CancelFunc) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		if key, ok := ev.(*tcell.EventKey); ok {
			if key.Key() == tcell.KeyEscape || key.Rune() == 'q' {
				stop()
				return
			}
		}
	}
}

// slotPalette assigns each of sim.MaxClients slots a distinct,
// perceptually-spaced color using go-colorful's HSV wheel.
func slotPalette() [sim.MaxClients]tcell.Color {
	var palette [sim.MaxClients]tcell.Color
	for i := 0; i < sim.MaxClients; i++ {
		hue := 360.0 * float64(i) / float64(sim.MaxClients)
		c := colorful.Hsv(hue, 0.65, 0.95)
		r, g, b := c.RGB255()
		palette[i] = tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}
	return palette
}

type spectatorView struct {
	screen  tcell.Screen
	palette [sim.MaxClients]tcell.Color

	mu sync.Mutex
}

func (v *spectatorView) onFrame(state sim.GameState) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.screen.Clear()
	w, h := v.screen.Size()

	for i, player := range state.Players {
		if !player.Active {
			continue
		}
		x := int(player.Position.X) % w
		y := int(player.Position.Y) % h
		if x < 0 {
			x += w
		}
		if y < 0 {
			y += h
		}
		style := tcell.StyleDefault.Foreground(v.palette[i])
		v.screen.SetContent(x, y, rune('0'+i%10), nil, style)
	}

	v.screen.Show()
}
