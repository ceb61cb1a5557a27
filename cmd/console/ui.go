package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "What do you do?"
)

// setupFields indexes the session settings form.
const (
	fieldWorld = iota
	fieldStartLocation
	fieldArtStyle
	fieldObjective
	fieldTone
	fieldCount
)

var setupLabels = [fieldCount]string{
	"World",
	"Starting location",
	"Art style",
	"Objective",
	"Tone",
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	gameState    *state.GameState
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Session setup form state
	showSetupModal bool
	setupInputs    [fieldCount]textinput.Model
	setupFocus     int

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type sessionStartedMsg struct {
	gameState *state.GameState
	err       error
}

type turnMsg struct {
	gameState *state.GameState
	err       error
}

type refreshMsg struct {
	gameState *state.GameState
	err       error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	m := ConsoleUI{
		config:         cfg,
		client:         client,
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		ready:          false,
		showSetupModal: true,
	}

	placeholders := [fieldCount]string{
		"a haunted seaside town",
		"the old lighthouse",
		"ink and watercolor",
		"find out what happened to the keeper",
		"melancholy, a little funny",
	}
	for i := range m.setupInputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 200
		ti.Width = 50
		m.setupInputs[i] = ti
	}
	m.setupInputs[fieldWorld].Focus()

	return m
}

func (m ConsoleUI) Init() tea.Cmd {
	return textinput.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showSetupModal {
		return m.updateSetupModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizePanels()
		m.writeChatContent()
		if m.gameState != nil {
			m.metaViewport.SetContent(writeMetadata(m.gameState))
		}
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			// Copy the latest narration for sharing.
			if m.gameState != nil && m.gameState.Narrative != "" {
				_ = clipboard.WriteAll(m.gameState.Narrative)
			}
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.err = nil
			m.progressTick = 0

			// Echo the action immediately; the server's reply replaces the
			// whole state anyway.
			m.gameState.History = append(m.gameState.History, chat.Message{
				Role:    chat.RoleUser,
				Content: input,
			})
			m.writeChatContent()

			return m, tea.Batch(m.submitAction(input), progressTick())
		}

	case turnMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeChatContent()
			m.chatViewport.GotoBottom()
			// Re-sync in case the server advanced the session anyway.
			return m, m.refreshSession()
		}
		m.gameState = msg.gameState
		m.metaViewport.SetContent(writeMetadata(m.gameState))
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, nil

	case refreshMsg:
		if msg.err == nil && msg.gameState != nil {
			m.gameState = msg.gameState
			m.metaViewport.SetContent(writeMetadata(m.gameState))
			m.writeChatContent()
		}
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resizePanels() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// writeChatContent rebuilds the chat panel from the session history for the
// current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURE") + "\n\n")
	content.WriteString("Type your actions below to play.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	if m.gameState != nil {
		for _, msg := range m.gameState.History {
			switch msg.Role {
			case chat.RoleNarrator:
				prefix := narratorStyle.Render(AgentName + ": ")
				content.WriteString(prefix + wordwrap.String(msg.Content, max(chatWidth-len(AgentName)-2, 10)) + "\n\n")
			case chat.RoleUser:
				content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Content, max(chatWidth-6, 10)) + "\n\n")
			}
		}
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func writeMetadata(gs *state.GameState) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("Session ID:\n")
	content.WriteString(gs.ID.String()[:8] + "...\n\n")

	content.WriteString("Location:\n")
	content.WriteString(gs.Location + "\n\n")

	if len(gs.AvailableExits) > 0 {
		content.WriteString("Exits:\n")
		for _, exit := range gs.AvailableExits {
			content.WriteString("• " + exit + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Inventory:\n")
	if len(gs.Inventory) == 0 {
		content.WriteString("Empty\n")
	} else {
		for _, item := range gs.Inventory {
			content.WriteString("• " + item.Name + "\n")
		}
	}
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Places seen: %d\n\n", len(gs.KnownLocations)))

	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Act\n")
	content.WriteString("• Ctrl+Y: Copy narration\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) submitAction(action string) tea.Cmd {
	return func() tea.Msg {
		gs, err := sendAction(m.client, m.config.APIBaseURL, m.gameState.ID, action)
		return turnMsg{gs, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		gs, err := getSession(m.client, m.config.APIBaseURL, m.gameState.ID)
		return refreshMsg{gs, err}
	}
}

func (m ConsoleUI) startSessionCmd(settings state.Settings) tea.Cmd {
	return func() tea.Msg {
		gs, err := startSession(m.client, m.config.APIBaseURL, settings)
		return sessionStartedMsg{gs, err}
	}
}

func (m ConsoleUI) updateSetupModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionStartedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.gameState = msg.gameState
		m.showSetupModal = false
		if m.width > 0 && m.height > 0 {
			m.resizePanels()
			m.ready = true
		}
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.gameState))
		m.textarea.Focus()
		return m, textarea.Blink

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			return m, progressTick()
		}
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil

		case tea.KeyUp, tea.KeyShiftTab:
			m.focusSetupField(m.setupFocus - 1)
			return m, textinput.Blink

		case tea.KeyDown, tea.KeyTab:
			m.focusSetupField(m.setupFocus + 1)
			return m, textinput.Blink

		case tea.KeyEnter:
			if m.setupFocus < fieldCount-1 {
				m.focusSetupField(m.setupFocus + 1)
				return m, textinput.Blink
			}
			settings := state.Settings{
				World:         strings.TrimSpace(m.setupInputs[fieldWorld].Value()),
				StartLocation: strings.TrimSpace(m.setupInputs[fieldStartLocation].Value()),
				ArtStyle:      strings.TrimSpace(m.setupInputs[fieldArtStyle].Value()),
				Objective:     strings.TrimSpace(m.setupInputs[fieldObjective].Value()),
				Tone:          strings.TrimSpace(m.setupInputs[fieldTone].Value()),
			}
			if settings.World == "" || settings.StartLocation == "" {
				m.err = fmt.Errorf("world and starting location are required")
				return m, nil
			}
			m.err = nil
			m.loading = true
			m.progressTick = 0
			return m, tea.Batch(m.startSessionCmd(settings), progressTick())
		}
	}

	var cmd tea.Cmd
	m.setupInputs[m.setupFocus], cmd = m.setupInputs[m.setupFocus].Update(msg)
	return m, cmd
}

func (m *ConsoleUI) focusSetupField(idx int) {
	if idx < 0 {
		idx = fieldCount - 1
	}
	if idx >= fieldCount {
		idx = 0
	}
	m.setupInputs[m.setupFocus].Blur()
	m.setupFocus = idx
	m.setupInputs[m.setupFocus].Focus()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showSetupModal {
					return m, textinput.Blink
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderSetupModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loading {
		content.WriteString(modalTitleStyle.Render("Conjuring the world..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure. This can take a minute."))
	} else {
		content.WriteString(modalTitleStyle.Render("New Adventure"))
		content.WriteString("\n\n")

		for i := range m.setupInputs {
			label := setupLabels[i]
			if i == m.setupFocus {
				content.WriteString(titleStyle.Render(label) + "\n")
			} else {
				content.WriteString(promptStyle.Render(label) + "\n")
			}
			content.WriteString(m.setupInputs[i].View() + "\n\n")
		}

		if m.err != nil {
			content.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
		}
		content.WriteString(promptStyle.Render("Tab/↑/↓ to move, Enter on the last field to begin, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showSetupModal {
		return m.renderSetupModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}

	label := m.loadingLabel()
	return loadingStyle.Render(label) + "\n" + separatorStyle.Render(bar.String())
}

func (m ConsoleUI) loadingLabel() string {
	if m.gameState != nil && m.gameState.LoadingStatus != "" {
		return m.gameState.LoadingStatus
	}
	return "The narrator considers your move..."
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
