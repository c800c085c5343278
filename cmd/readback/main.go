// Command readback is a terminal client for ATC communication practice:
// record a transmission, send it for analysis, read the controller's reply.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nmoreno/readback/internal/api"
	"github.com/nmoreno/readback/internal/app"
	"github.com/nmoreno/readback/internal/audio"
	"github.com/nmoreno/readback/internal/config"
	"github.com/nmoreno/readback/internal/db"
	"github.com/nmoreno/readback/internal/logging"
)

func main() {
	var (
		sessionID = flag.String("session", "", "practice session id")
		frequency = flag.Float64("frequency", 121.5, "radio frequency in MHz")
		resume    = flag.Bool("resume", false, "rehydrate the last reply for this session from local history")
		review    = flag.Bool("review", false, "review each take before sending")
		sessions  = flag.Bool("sessions", false, "list recently practiced sessions and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if *sessions {
		if err := listSessions(cfg.DBPath); err != nil {
			fmt.Fprintf(os.Stderr, "list sessions: %v\n", err)
			os.Exit(1)
		}
		return
	}

	lg, err := logging.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		lg = logging.Discard()
	}

	deps := app.Deps{
		Client: api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
			api.NewTokenSource(cfg.Backend.Token)),
		Recorder: audio.NewRecorder(audio.Config{
			RecorderCommand: cfg.Audio.RecorderCommand,
			InputFormat:     cfg.Audio.InputFormat,
			InputDevice:     cfg.Audio.InputDevice,
			SampleRate:      cfg.Audio.SampleRate,
			Channels:        cfg.Audio.Channels,
		}),
		Player: audio.NewPlayer(cfg.Audio.PlayerCommand),
		Probe: func() error {
			return audio.Probe(cfg.Audio.RecorderCommand, cfg.Audio.PlayerCommand)
		},
		Log: lg,
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		lg.Warn("open history store", "err", err)
	} else {
		deps.Store = store
		defer store.Close()
	}

	params := app.Params{
		SessionID:     *sessionID,
		Frequency:     *frequency,
		Resume:        *resume,
		ReviewEnabled: *review || cfg.Review.EnableAudioReview,
	}

	p := tea.NewProgram(app.New(params, deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		lg.Error("program exited", "err", err)
		fmt.Fprintf(os.Stderr, "readback: %v\n", err)
		os.Exit(1)
	}
}

// listSessions prints a summary of recently practiced sessions.
func listSessions(dbPath string) error {
	store, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sums, err := store.RecentSessions(20)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Println("No practice sessions recorded yet.")
		return nil
	}
	for _, sum := range sums {
		status := "in progress"
		if sum.Completed {
			status = "completed"
		}
		fmt.Printf("%-36s  %3d turns  %-11s  %s\n",
			sum.SessionID, sum.Turns, status, sum.LastAt.Format("2006-01-02 15:04"))
	}
	return nil
}
