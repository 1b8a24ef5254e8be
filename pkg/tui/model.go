package tui

import (
	"context"
	"time"

	"cosmterm/pkg/chat"
	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
	"cosmterm/pkg/wallet"
	"cosmterm/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Version is set by Start()
var Version = "dev"

type viewMode int

const (
	viewWallet viewMode = iota
	viewStaking
	viewExplorer
	viewChat
	viewNetwork
	viewCount
)

var viewNames = [viewCount]string{"Wallet", "Staking", "Explorer", "Chat", "Network"}

// formKind is the active input form, if any.
type formKind int

const (
	formNone formKind = iota
	formSend
	formDelegate
	formUndelegate
	formCompose
	formAddContact
)

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time
type privacyTimeoutMsg struct{}

type walletConnectedMsg struct {
	session *wallet.Session
	err     error
}

type txResultMsg struct {
	action string
	result models.TxResult
	err    error
}

type blockDetailMsg struct {
	block models.BlockSummary
	err   error
}

type chatIncomingMsg models.ChatMessage

type chatSentMsg struct {
	msg models.ChatMessage
	err error
}

type configSavedMsg struct {
	err error
}

// --- Model ---

type model struct {
	ctx        context.Context
	chain      config.ChainConfig
	cfg        *config.Config
	configPath string
	logger     zerolog.Logger

	watcher  *watcher.Watcher
	sub      watcher.Subscriber
	provider wallet.Provider
	session  *wallet.Session
	book     *chat.Book
	daemon   *chat.DaemonClient

	view          viewMode
	width         int
	height        int
	loading       bool
	connecting    bool
	broadcasting  bool
	lastUpdate    time.Time
	spinner       spinner.Model
	statusMessage string

	status     models.NodeStatus
	overview   models.NetworkOverview
	validators []models.Validator
	blocks     []models.BlockSummary
	portfolio  *models.Portfolio
	lastError  *watcher.ErrorData

	validatorIdx    int
	blockIdx        int
	showBlockDetail bool
	blockDetail     *models.BlockSummary
	contactIdx      int

	form       formKind
	formInputs []textinput.Model
	formFocus  int

	viewport          viewport.Model
	rpcLatencies      map[string]time.Duration
	rpcLatencyHistory map[string][]time.Duration

	showHelp        bool
	privacyMode     bool
	lastInteraction time.Time
	config          config.GlobalConfig
}

// Options wires the terminal to the rest of the application.
type Options struct {
	Watcher    *watcher.Watcher
	Config     *config.Config
	ConfigPath string
	Provider   wallet.Provider
	Book       *chat.Book
	Daemon     *chat.DaemonClient
	Logger     zerolog.Logger
	Version    string
}

func initialModel(ctx context.Context, opts Options) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	book := opts.Book
	if book == nil {
		book = chat.NewBook(nil)
	}

	return model{
		ctx:               ctx,
		connecting:        opts.Provider != nil && opts.Provider.Available(ctx),
		chain:             opts.Watcher.Chain(),
		cfg:               opts.Config,
		configPath:        opts.ConfigPath,
		logger:            opts.Logger,
		watcher:           opts.Watcher,
		sub:               opts.Watcher.Subscribe(),
		provider:          opts.Provider,
		book:              book,
		daemon:            opts.Daemon,
		loading:           true,
		spinner:           s,
		viewport:          viewport.New(0, 0),
		rpcLatencies:      make(map[string]time.Duration),
		rpcLatencyHistory: make(map[string][]time.Duration),
		lastInteraction:   time.Now(),
		config:            opts.Config.Global,
	}
}

// newForm builds one focused-first input per placeholder.
func newForm(placeholders ...string) []textinput.Model {
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = p
		inputs[i].Width = 50
	}
	if len(inputs) > 0 {
		inputs[0].Focus()
	}
	return inputs
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	// Subscribe to watcher events
	cmds = append(cmds, listenForWatcher(m.sub))
	if m.daemon != nil {
		cmds = append(cmds, listenForChat(m.daemon.Incoming()))
	}
	cmds = append(cmds, m.spinner.Tick)

	if m.connecting {
		cmds = append(cmds, connectWalletCmd(m.ctx, m.provider, m.chain, m.config, m.logger))
	}

	if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
		cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
			return privacyTimeoutMsg{}
		}))
	}
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}
