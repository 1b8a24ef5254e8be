package tui

import (
	"fmt"
	"strings"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/logging"
	"cosmterm/pkg/models"
	"cosmterm/pkg/utils"
	"cosmterm/pkg/wallet"
	"cosmterm/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

const latencyHistoryLen = 15

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height / 2
		m.updateChatViewport()

	case watcher.Event:
		// Re-subscribe to next event
		cmds = append(cmds, listenForWatcher(m.sub))
		m.applyEvent(msg)
		m.lastUpdate = time.Now()

	case walletConnectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Msg("Wallet connect failed")
			cmds = append(cmds, m.toast(fmt.Sprintf("Wallet: %v", msg.err)))
			break
		}
		m.session = msg.session
		m.watcher.SetAddress(msg.session.Address())
		m.logger.Info().Str(logging.FieldAddress, msg.session.Address()).Msg("Wallet connected")
		if msg.session.BalanceErr != nil {
			cmds = append(cmds, m.toast("Connected, balances unavailable"))
		} else {
			cmds = append(cmds, m.toast("Connected as "+m.maskString(msg.session.Key.Name)))
		}

	case txResultMsg:
		m.broadcasting = false
		if msg.err != nil {
			m.logger.Error().Err(msg.err).Str("action", msg.action).Msg("Transaction failed")
			cmds = append(cmds, m.toast(fmt.Sprintf("%s failed: %v", msg.action, msg.err)))
			break
		}
		m.logger.Info().Str(logging.FieldTxHash, msg.result.TxHash).Str("action", msg.action).Msg("Transaction broadcast")
		cmds = append(cmds, m.toast(fmt.Sprintf("%s sent: %s", msg.action, utils.TruncateMiddle(msg.result.TxHash, 16))))
		m.watcher.Refresh()

	case blockDetailMsg:
		if msg.err != nil {
			cmds = append(cmds, m.toast(fmt.Sprintf("Block: %v", msg.err)))
			break
		}
		b := msg.block
		m.blockDetail = &b
		m.showBlockDetail = true

	case chatIncomingMsg:
		if m.daemon != nil {
			cmds = append(cmds, listenForChat(m.daemon.Incoming()))
		}
		peer := msg.From
		if m.view == viewChat && peer == m.selectedContact().Address {
			m.book.MarkRead(peer)
		} else {
			name := peer
			if c, ok := m.book.Contact(peer); ok {
				name = c.Name
			}
			cmds = append(cmds, m.toast("New message from "+m.maskString(name)))
		}
		m.updateChatViewport()

	case chatSentMsg:
		if msg.err != nil {
			cmds = append(cmds, m.toast(fmt.Sprintf("Send failed: %v", msg.err)))
		}
		m.updateChatViewport()

	case configSavedMsg:
		if msg.err != nil {
			m.logger.Error().Err(msg.err).Msg("Saving config failed")
			cmds = append(cmds, m.toast(fmt.Sprintf("Save failed: %v", msg.err)))
		}

	case models.RPCLatencyData:
		val := msg.Latency
		if msg.Err != nil {
			m.rpcLatencies[msg.RPCURL] = -1
			val = -1
		} else {
			m.rpcLatencies[msg.RPCURL] = msg.Latency
		}
		hist := append(m.rpcLatencyHistory[msg.RPCURL], val)
		if len(hist) > latencyHistoryLen {
			hist = hist[len(hist)-latencyHistoryLen:]
		}
		m.rpcLatencyHistory[msg.RPCURL] = hist

	case privacyTimeoutMsg:
		if m.config.PrivacyTimeoutSeconds <= 0 {
			break
		}
		timeoutDuration := time.Duration(m.config.PrivacyTimeoutSeconds) * time.Second
		if !m.privacyMode {
			if time.Since(m.lastInteraction) >= timeoutDuration {
				m.privacyMode = true
				cmds = append(cmds, m.toast("Privacy Mode enabled due to inactivity"))
			} else {
				remaining := timeoutDuration - time.Since(m.lastInteraction)
				cmds = append(cmds, tea.Tick(remaining, func(t time.Time) tea.Msg {
					return privacyTimeoutMsg{}
				}))
			}
		}

	case tea.KeyMsg:
		m.lastInteraction = time.Now()
		if m.form != formNone {
			return m.updateForm(msg)
		}
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.showBlockDetail {
			return m.updateBlockDetail(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.view = (m.view + 1) % viewCount
			m.onViewChange()
			return m, nil
		case "shift+tab":
			m.view = (m.view + viewCount - 1) % viewCount
			m.onViewChange()
			return m, nil
		case "P":
			m.privacyMode = !m.privacyMode
			if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
				cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
					return privacyTimeoutMsg{}
				}))
			}
			m.updateChatViewport()
			return m, tea.Batch(cmds...)
		case "r":
			m.loading = true
			m.watcher.Refresh()
			cmds = append(cmds, m.toast("Refreshing data..."), m.spinner.Tick)
			return m, tea.Batch(cmds...)
		}

		switch m.view {
		case viewWallet:
			cmds = append(cmds, m.updateWalletKeys(msg))
		case viewStaking:
			cmds = append(cmds, m.updateStakingKeys(msg))
		case viewExplorer:
			cmds = append(cmds, m.updateExplorerKeys(msg))
		case viewChat:
			cmds = append(cmds, m.updateChatKeys(msg))
		case viewNetwork:
			cmds = append(cmds, m.updateNetworkKeys(msg))
		}

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""

	case spinner.TickMsg:
		if m.loading || m.connecting || m.broadcasting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) applyEvent(ev watcher.Event) {
	switch ev.Type {
	case watcher.EventStatusUpdated:
		if data, ok := ev.Data.(models.NodeStatus); ok {
			m.status = data
			m.loading = false
		}
	case watcher.EventBlocksUpdated:
		if data, ok := ev.Data.([]models.BlockSummary); ok {
			m.blocks = data
			if m.blockIdx >= len(m.blocks) {
				m.blockIdx = lo.Max([]int{len(m.blocks) - 1, 0})
			}
		}
	case watcher.EventOverviewUpdated:
		if data, ok := ev.Data.(models.NetworkOverview); ok {
			m.overview = data
		}
	case watcher.EventValidatorsUpdated:
		if data, ok := ev.Data.([]models.Validator); ok {
			m.validators = data
			if m.validatorIdx >= len(m.validators) {
				m.validatorIdx = lo.Max([]int{len(m.validators) - 1, 0})
			}
		}
	case watcher.EventPortfolioUpdated:
		if data, ok := ev.Data.(models.Portfolio); ok {
			m.portfolio = &data
			m.loading = false
		}
	case watcher.EventError:
		if data, ok := ev.Data.(watcher.ErrorData); ok {
			m.lastError = &data
		}
	}
}

func (m *model) onViewChange() {
	if m.view == viewChat {
		m.updateChatViewport()
	}
}

func (m *model) updateWalletKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "w":
		if m.session != nil {
			return m.toast("Wallet already connected")
		}
		if m.connecting {
			return nil
		}
		if m.provider == nil {
			return m.toast("No wallet provider configured")
		}
		m.connecting = true
		return tea.Batch(connectWalletCmd(m.ctx, m.provider, m.chain, m.config, m.logger), m.spinner.Tick)
	case "s":
		if m.session == nil {
			return m.toast("Connect a wallet first (w)")
		}
		m.openForm(formSend, "Recipient address", "Amount ("+utils.FormatDenom(m.chain.Denom)+")")
	case "c":
		addr := m.currentAddress()
		if addr == "" {
			return nil
		}
		if err := clipboard.WriteAll(addr); err != nil {
			return m.toast("Failed to copy to clipboard")
		}
		if m.privacyMode {
			return m.toast("Full address copied (Privacy Mode active)!")
		}
		return m.toast("Full address copied to clipboard!")
	case "o":
		addr := m.currentAddress()
		if addr == "" {
			return nil
		}
		return m.open("account", addr)
	}
	return nil
}

func (m *model) updateStakingKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if m.validatorIdx > 0 {
			m.validatorIdx--
		}
	case "down", "j":
		if m.validatorIdx < len(m.validators)-1 {
			m.validatorIdx++
		}
	case "d", "u":
		if m.session == nil {
			return m.toast("Connect a wallet first (w)")
		}
		kind := formDelegate
		if msg.String() == "u" {
			kind = formUndelegate
		}
		m.openForm(kind, "Validator operator address", "Amount ("+utils.FormatDenom(m.chain.Denom)+")")
		if m.validatorIdx < len(m.validators) {
			m.formInputs[0].SetValue(m.validators[m.validatorIdx].OperatorAddress)
		}
	case "x":
		if m.portfolio == nil {
			return m.toast("No rewards loaded yet")
		}
		msgs, err := buildClaimAll(m.session, *m.portfolio)
		if err != nil {
			return m.toast(err.Error())
		}
		return m.broadcast("Claim rewards", msgs)
	case "o":
		if m.validatorIdx < len(m.validators) {
			return m.open("validators", m.validators[m.validatorIdx].OperatorAddress)
		}
	}
	return nil
}

func (m *model) updateExplorerKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if m.blockIdx > 0 {
			m.blockIdx--
		}
	case "down", "j":
		if m.blockIdx < len(m.blocks)-1 {
			m.blockIdx++
		}
	case "enter":
		if m.blockIdx < len(m.blocks) {
			b := m.blocks[m.blockIdx]
			if len(b.TxHashes) > 0 || b.Hash != "" {
				m.blockDetail = &b
				m.showBlockDetail = true
				return nil
			}
			return fetchBlockCmd(m.ctx, m.chain, b.Height)
		}
	case "o":
		if m.blockIdx < len(m.blocks) {
			return m.open("block", fmt.Sprintf("%d", m.blocks[m.blockIdx].Height))
		}
	}
	return nil
}

func (m model) updateBlockDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "backspace":
		m.showBlockDetail = false
		m.blockDetail = nil
	case "o":
		if m.blockDetail != nil {
			cmd := m.open("block", fmt.Sprintf("%d", m.blockDetail.Height))
			return m, cmd
		}
	case "R":
		if m.blockDetail != nil {
			return m, fetchBlockCmd(m.ctx, m.chain, m.blockDetail.Height)
		}
	}
	return m, nil
}

func (m *model) updateChatKeys(msg tea.KeyMsg) tea.Cmd {
	contacts := m.book.Contacts()
	switch msg.String() {
	case "up", "k":
		if m.contactIdx > 0 {
			m.contactIdx--
			m.updateChatViewport()
		}
	case "down", "j":
		if m.contactIdx < len(contacts)-1 {
			m.contactIdx++
			m.updateChatViewport()
		}
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	case "enter":
		if len(contacts) == 0 {
			return m.toast("Add a contact first (a)")
		}
		if m.daemon == nil {
			return m.toast("No wallet address to chat as")
		}
		m.book.MarkRead(contacts[m.contactIdx].Address)
		m.openForm(formCompose, "Message")
		m.formInputs[0].Width = 70
	case "a":
		m.openForm(formAddContact, "Address", "Name (optional)")
	case "x":
		if len(contacts) == 0 {
			return nil
		}
		c := contacts[m.contactIdx]
		m.book.RemoveContact(c.Address)
		if m.contactIdx > 0 && m.contactIdx >= len(contacts)-1 {
			m.contactIdx--
		}
		m.updateChatViewport()
		return tea.Batch(m.toast("Removed "+m.maskString(c.Name)), m.persistContacts())
	}
	return nil
}

func (m *model) updateNetworkKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "l":
		return tea.Batch(m.toast("Checking RPC latency..."), checkRPCLatencyCmd(m.ctx, m.chain.RPCURLs))
	}
	return nil
}

func (m *model) openForm(kind formKind, placeholders ...string) {
	m.form = kind
	m.formFocus = 0
	m.formInputs = newForm(placeholders...)
}

func (m *model) closeForm() {
	m.form = formNone
	m.formInputs = nil
	m.formFocus = 0
}

func (m *model) focusInput(i int) {
	m.formInputs[m.formFocus].Blur()
	m.formFocus = i
	m.formInputs[m.formFocus].Focus()
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		m.focusInput((m.formFocus + 1) % len(m.formInputs))
		return m, nil
	case "shift+tab", "up":
		m.focusInput((m.formFocus + len(m.formInputs) - 1) % len(m.formInputs))
		return m, nil
	case "enter":
		if m.formFocus < len(m.formInputs)-1 {
			m.focusInput(m.formFocus + 1)
			return m, nil
		}
		cmd := m.submitForm()
		return m, cmd
	}

	var cmd tea.Cmd
	m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
	return m, cmd
}

func (m *model) submitForm() tea.Cmd {
	values := lo.Map(m.formInputs, func(in textinput.Model, _ int) string {
		return strings.TrimSpace(in.Value())
	})

	switch m.form {
	case formSend:
		msgs, err := buildSendMsgs(m.session, values[0], values[1])
		if err != nil {
			return m.toast(err.Error())
		}
		m.closeForm()
		return m.broadcast("Send", msgs)

	case formDelegate, formUndelegate:
		undelegate := m.form == formUndelegate
		msgs, err := buildStakeMsgs(m.session, values[0], values[1], undelegate)
		if err != nil {
			return m.toast(err.Error())
		}
		action := "Delegate"
		if undelegate {
			action = "Undelegate"
		}
		m.closeForm()
		return m.broadcast(action, msgs)

	case formCompose:
		m.closeForm()
		if values[0] == "" {
			return nil
		}
		return sendChatCmd(m.ctx, m.daemon, m.selectedContact().Address, values[0])

	case formAddContact:
		if err := wallet.ValidateAddress(values[0], m.chain.Bech32Prefix); err != nil {
			return m.toast(err.Error())
		}
		if err := m.book.AddContact(models.Contact{Address: values[0], Name: values[1]}); err != nil {
			return m.toast(err.Error())
		}
		m.closeForm()
		m.updateChatViewport()
		return tea.Batch(m.toast("Contact saved"), m.persistContacts())
	}
	m.closeForm()
	return nil
}

func (m *model) broadcast(action string, msgs []wallet.Msg) tea.Cmd {
	if m.broadcasting {
		return m.toast("A transaction is already in flight")
	}
	m.broadcasting = true
	m.statusMessage = action + ": waiting for signature..."
	return tea.Batch(broadcastCmd(m.ctx, m.session, action, msgs), m.spinner.Tick)
}

// persistContacts writes the address book back to the config file.
func (m *model) persistContacts() tea.Cmd {
	if m.cfg == nil || m.configPath == "" {
		return nil
	}
	m.cfg.Contacts = lo.Map(m.book.Contacts(), func(c models.Contact, _ int) config.ContactConfig {
		return config.ContactConfig{Address: c.Address, Name: c.Name}
	})
	return saveConfigCmd(m.cfg, m.configPath)
}

func (m *model) open(kind, id string) tea.Cmd {
	url, err := explorerURL(m.chain, kind, id)
	if err != nil {
		return m.toast(err.Error())
	}
	if err := openBrowser(url); err != nil {
		return m.toast(fmt.Sprintf("Failed to open browser: %v", err))
	}
	return m.toast("Opened in browser")
}

func (m model) currentAddress() string {
	if m.session != nil {
		return m.session.Address()
	}
	return m.watcher.Address()
}

func (m model) selectedContact() models.Contact {
	contacts := m.book.Contacts()
	if m.contactIdx < len(contacts) {
		return contacts[m.contactIdx]
	}
	return models.Contact{}
}
