package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CandidateListView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx           context.Context
	view          ViewState
	history       *repositories.HistoryRepository
	engine        *tasks.LikerEngine
	minPlays      int
	width         int
	height        int
	candidateList list.Model
	candidates    []*models.HistoryTrack
	progressChan  chan tasks.ProgressUpdate
	doneChan      chan runCompleteMsg
	progress      tasks.ProgressUpdate
	result        *tasks.LikerResult
	err           error
	help          help.Model
	keys          keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, history *repositories.HistoryRepository, engine *tasks.LikerEngine, minPlays int) *Model {
	return &Model{
		ctx:      ctx,
		view:     CandidateListView,
		history:  history,
		engine:   engine,
		minPlays: minPlays,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching like candidates from play history.
func (m *Model) Init() tea.Cmd {
	return m.fetchCandidates()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.candidateList.Width() == 0 {
			m.candidateList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CandidateListView:
			return m.handleCandidateListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case candidatesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.candidates = msg.candidates
		items := make([]list.Item, len(msg.candidates))
		for i, track := range msg.candidates {
			items[i] = candidateItem{track: track}
		}
		m.candidateList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.candidateList.Title = fmt.Sprintf("Frequently Played (≥ %d plays)", m.minPlays)
		m.candidateList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CandidateListView:
		return m.renderCandidateList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleCandidateListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchCandidates()
	case "enter":
		if len(m.candidates) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.candidateList, cmd = m.candidateList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = CandidateListView
		return m, nil
	case "y":
		m.view = RunView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = CandidateListView
		m.result = nil
		m.err = nil
		return m, m.fetchCandidates()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == CandidateListView {
		m.candidateList, cmd = m.candidateList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchCandidates() tea.Cmd {
	return func() tea.Msg {
		candidates, err := m.history.FrequentlyPlayed(m.minPlays)
		return candidatesFetchedMsg{candidates: candidates, err: err}
	}
}

// startRun launches the liker engine in a goroutine. The engine writes to the
// progress channel and the final result arrives on the done channel once the
// progress channel closes, so the model is only mutated from Update.
func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan runCompleteMsg, 1)

	progress := m.progressChan
	done := m.doneChan

	go func() {
		result, err := m.engine.Run(m.ctx, m.minPlays, progress)
		close(progress)
		done <- runCompleteMsg{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	done := m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return runCompleteMsg{}
		}

		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderCandidateList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.again, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candidateList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Like %d frequently played tracks?", len(m.candidates)))
	info := fmt.Sprintf("\nEvery track with %d or more plays will be saved to your Spotify library.\n", m.minPlays)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Liking Tracks")

	var phase string
	switch m.progress.Phase {
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.LikeBatch:
		phase = fmt.Sprintf("Liking tracks (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Run Complete")
	info := fmt.Sprintf(
		"\nCandidates: %d\nLiked: %d\nAlready liked: %d\nUnmatched: %d\nFailed: %d",
		m.result.Candidates,
		m.result.Liked,
		m.result.AlreadyLiked,
		m.result.Unmatched,
		m.result.Failed,
	)

	var failed string
	if len(m.result.Errors) > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("%d items failed:", len(m.result.Errors))))
		for _, err := range m.result.Errors {
			failed += fmt.Sprintf("\n  • %v", err)
		}
	}

	helpKeys := []key.Binding{m.keys.again, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
