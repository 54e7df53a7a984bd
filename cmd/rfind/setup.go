package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mgomes/resumefind/internal/config"
	"github.com/mgomes/resumefind/internal/gateway"
	"github.com/mgomes/resumefind/internal/tui"
	"github.com/spf13/cobra"
)

const setupProbeTimeout = 5 * time.Second

var errSetupCancelled = errors.New("setup cancelled")

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runSetup()
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup() error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		// A broken config is what setup is for.
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}

	program := tea.NewProgram(newSetupRunner(cfg))

	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	runner, ok := finalModel.(setupRunner)
	if !ok || !runner.done {
		return errSetupCancelled
	}

	cfg.APIURL = runner.apiURL
	cfg.WatchDir = runner.watchDir

	if cfgFile != "" {
		err = cfg.SaveTo(cfgFile)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Saved. %s has %d resumes indexed.\n", runner.apiURL, runner.indexed)
	return nil
}

type setupRunner struct {
	setupModel tui.SetupModel
	apiURL     string
	watchDir   string
	indexed    int
	done       bool
}

func newSetupRunner(cfg *config.Config) setupRunner {
	return setupRunner{
		setupModel: tui.NewSetupModel(cfg.APIURL, cfg.WatchDir),
	}
}

func (m setupRunner) Init() tea.Cmd {
	return tea.Batch(m.setupModel.Init(), tea.EnableBracketedPaste)
}

func (m setupRunner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.SetupSubmitMsg:
		status, err := probe(msg.APIURL)
		if err != nil {
			return m.fail("Cannot reach the API: " + err.Error())
		}

		if msg.WatchDir != "" {
			if info, err := os.Stat(msg.WatchDir); err != nil || !info.IsDir() {
				return m.fail("Directory does not exist")
			}
		}

		m.apiURL = msg.APIURL
		m.watchDir = msg.WatchDir
		m.indexed = status.IndexedCount
		m.done = true
		return m, tea.Quit

	default:
		newModel, cmd := m.setupModel.Update(msg)
		if sm, ok := newModel.(tui.SetupModel); ok {
			m.setupModel = sm
		}
		return m, cmd
	}
}

func (m setupRunner) fail(text string) (tea.Model, tea.Cmd) {
	newModel, _ := m.setupModel.Update(tui.SetupErrorMsg{Error: text})
	if sm, ok := newModel.(tui.SetupModel); ok {
		m.setupModel = sm
	}
	return m, nil
}

func (m setupRunner) View() string {
	return m.setupModel.View()
}

func probe(apiURL string) (gateway.Status, error) {
	client, err := gateway.New(apiURL)
	if err != nil {
		return gateway.Status{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupProbeTimeout)
	defer cancel()

	return client.FetchStatus(ctx)
}
