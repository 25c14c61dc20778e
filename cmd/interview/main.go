package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/mlenarte/interview-core/core"
	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/audio/miniaudio"
	"github.com/mlenarte/interview-core/core/connection"
	"github.com/mlenarte/interview-core/core/realtime/deepgram"
	"github.com/mlenarte/interview-core/core/recovery"
	"github.com/mlenarte/interview-core/core/storage"
)

func main() {
	var (
		title       = flag.String("title", "", "session title")
		participant = flag.String("participant", "", "participant name")
		project     = flag.String("project", "", "project name")
		mode        = flag.String("mode", "discovery", "interview mode: discovery, usability or follow_up")
		topics      = flag.String("topics", "", "comma-separated topic list")
		prompt      = flag.String("prompt", "", "system prompt for the coaching service")
		dataDir     = flag.String("data-dir", defaultDataDir(), "directory for session documents and recovery state")
		duration    = flag.Duration("duration", 0, "planned session duration")
		diarize     = flag.Bool("diarize", true, "attribute utterances to speakers")
		interim     = flag.Bool("interim", true, "stream interim transcription results")
	)
	flag.Parse()

	config := session.Config{
		APIKey:          os.Getenv("DEEPGRAM_API_KEY"),
		SystemPrompt:    *prompt,
		Mode:            session.InterviewMode(*mode),
		Title:           *title,
		ParticipantName: *participant,
		ProjectName:     *project,
		PlannedDuration: *duration,
		InterimResults:  *interim,
		Diarize:         *diarize,
	}
	if *topics != "" {
		for _, topic := range strings.Split(*topics, ",") {
			config.Topics = append(config.Topics, strings.TrimSpace(topic))
		}
	}

	store, err := storage.NewFileStore(filepath.Join(*dataDir, "sessions"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open session store:", err)
		os.Exit(1)
	}
	recoveryStore, err := recovery.NewFileStore(filepath.Join(*dataDir, "recovery.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open recovery store:", err)
		os.Exit(1)
	}

	manager := session.NewManager(
		session.WithCaptureFactory(func() (audio.Capture, error) {
			return miniaudio.NewClient()
		}),
		session.WithRealtimeClient(deepgram.NewClient()),
		session.WithDataManager(store),
		session.WithRecoveryStore(recoveryStore),
	)

	prober := connection.NewProber(manager.Monitor(), connection.WithProbeInterval(5*time.Second))
	program := tea.NewProgram(newModel(manager, config, prober), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".interview"
	}
	return filepath.Join(home, ".interview")
}
