package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"
	"cosmterm/pkg/utils"
	"cosmterm/pkg/wallet"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.form != formNone {
		return m.viewForm()
	}
	if m.showBlockDetail && m.blockDetail != nil {
		return m.viewBlockDetail()
	}

	var body string
	switch m.view {
	case viewWallet:
		body = m.viewWallet()
	case viewStaking:
		body = m.viewStaking()
	case viewExplorer:
		body = m.viewExplorer()
	case viewChat:
		body = m.viewChat()
	case viewNetwork:
		body = m.viewNetwork()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		"",
		body,
		"",
		m.viewFooter(),
	)
}

func (m model) viewHeader() string {
	title := titleStyle.Render(fmt.Sprintf("Cosmos Terminal %s", Version))
	chain := subtleStyle.Render(fmt.Sprintf(" %s (%s)", m.chain.Name, m.chainID()))

	var tabs []string
	for i, name := range viewNames {
		if viewMode(i) == m.view {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}

	var flags []string
	if m.loading || m.connecting || m.broadcasting {
		flags = append(flags, m.spinner.View())
	}
	if m.privacyMode {
		flags = append(flags, warnStyle.Render("[privacy]"))
	}
	if m.overview.Mock {
		flags = append(flags, warnStyle.Render("[mock data]"))
	}
	if m.daemon != nil {
		if m.daemon.Online() {
			flags = append(flags, infoStyle.Render("[chat online]"))
		} else {
			flags = append(flags, subtleStyle.Render("[chat offline]"))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, title, chain, " ", strings.Join(flags, " ")),
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
	)
}

func (m model) viewFooter() string {
	var lines []string
	if m.statusMessage != "" {
		lines = append(lines, infoStyle.Render(m.statusMessage))
	} else if m.lastError != nil {
		lines = append(lines, errStyle.Render(fmt.Sprintf("%s: %s", m.lastError.Source, utils.TruncateString(m.lastError.Message, 80))))
	}
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = fmt.Sprintf("%ds ago", int(time.Since(m.lastUpdate).Seconds()))
	}
	lines = append(lines, subtleStyle.Render(fmt.Sprintf("updated %s • tab/shift+tab views • r refresh • P privacy • ? help • q quit", updated)))
	return strings.Join(lines, "\n")
}

func (m model) chainID() string {
	if m.status.ChainID != "" {
		return m.status.ChainID
	}
	return m.chain.ChainID
}

// --- Wallet ---

func (m model) viewWallet() string {
	addr := m.currentAddress()
	if addr == "" {
		hint := "No wallet connected. Press w to connect."
		if m.connecting {
			hint = "Connecting wallet..."
		}
		return boxStyle.Render(hint)
	}

	header := fmt.Sprintf("Address: %s", m.maskAddress(addr))
	if m.session != nil {
		header += subtleStyle.Render(fmt.Sprintf("  (%s via %s)", m.maskString(m.session.Key.Name), m.session.Provider.Name()))
	} else {
		header += subtleStyle.Render("  (watch only)")
	}

	var balances []models.Coin
	switch {
	case m.portfolio != nil:
		balances = m.portfolio.Balances
	case m.session != nil:
		balances = m.session.Balances
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-12s %24s", "DENOM", "AMOUNT"))}
	for _, c := range balances {
		rows = append(rows, fmt.Sprintf("  %-12s %24s", utils.FormatDenom(c.Denom), m.displayAmount(c.Amount)))
	}
	if len(balances) == 0 {
		rows = append(rows, subtleStyle.Render("  No balances"))
	}

	var summary []string
	if m.portfolio != nil {
		denom := m.chain.Denom
		sym := utils.FormatDenom(denom)
		summary = append(summary,
			fmt.Sprintf("Staked:    %s %s", m.displayMicro(totalDelegated(*m.portfolio, denom)), sym),
			fmt.Sprintf("Unbonding: %s %s", m.displayMicro(totalUnbonding(*m.portfolio, denom)), sym),
			fmt.Sprintf("Rewards:   %s %s", m.displayMicro(sumDenom(m.portfolio.TotalRewards, denom)), sym),
		)
	}

	help := "c copy address • o open in explorer"
	if m.session != nil {
		help = "s send • " + help
	} else {
		help = "w connect • " + help
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			strings.Join(rows, "\n"),
			"",
			strings.Join(summary, "\n"),
		)),
		subtleStyle.Render(help),
	)
}

// --- Staking ---

func (m model) viewStaking() string {
	var sections []string
	denom := m.chain.Denom

	if m.portfolio != nil && len(m.portfolio.Delegations) > 0 {
		rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-24s %20s %20s", "VALIDATOR", "STAKED", "REWARDS"))}
		for _, d := range m.portfolio.Delegations {
			rows = append(rows, fmt.Sprintf("  %-24s %20s %20s",
				utils.TruncateString(monikerOf(m.validators, d.ValidatorAddress), 24),
				m.displayAmount(d.Balance.Amount),
				m.displayMicro(rewardFrom(*m.portfolio, d.ValidatorAddress, denom))))
		}
		sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "Delegations", strings.Join(rows, "\n"))))
	}

	if m.portfolio != nil && len(m.portfolio.Unbonding) > 0 {
		rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-24s %20s %s", "VALIDATOR", "AMOUNT", "COMPLETES"))}
		for _, u := range m.portfolio.Unbonding {
			rows = append(rows, fmt.Sprintf("  %-24s %20s %s",
				utils.TruncateString(monikerOf(m.validators, u.ValidatorAddress), 24),
				m.displayAmount(u.Balance),
				u.CompletionTime.Local().Format("2006-01-02 15:04")))
		}
		sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "Unbonding", strings.Join(rows, "\n"))))
	}

	sections = append(sections, m.viewValidatorTable())
	sections = append(sections, subtleStyle.Render("↑/↓ select • d delegate • u undelegate • x claim all rewards • o open validator"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewValidatorTable() string {
	if len(m.validators) == 0 {
		return boxStyle.Render("Loading validators...")
	}

	limit := 15
	if m.height > 20 {
		limit = m.height - 20
	}
	start := 0
	if m.validatorIdx >= limit {
		start = m.validatorIdx - limit + 1
	}
	end := start + limit
	if end > len(m.validators) {
		end = len(m.validators)
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-4s %-24s %20s %10s", "#", "MONIKER", "VOTING POWER", "COMMISSION"))}
	for i := start; i < end; i++ {
		v := m.validators[i]
		line := fmt.Sprintf("%-4d %-24s %20s %9.2f%%",
			i+1,
			utils.TruncateString(v.Moniker, 24),
			utils.AddCommas(fmt.Sprintf("%.0f", utils.MicroToFloat(v.Tokens))),
			commissionPercent(v.CommissionRate))
		if v.Jailed {
			line += errStyle.Render(" jailed")
		}
		if i == m.validatorIdx {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}

	title := fmt.Sprintf("Validators (%d bonded)", len(m.validators))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")))
}

func commissionPercent(rate string) float64 {
	var f float64
	if _, err := fmt.Sscanf(rate, "%g", &f); err != nil {
		return 0
	}
	return f * 100
}

// --- Explorer ---

func (m model) viewExplorer() string {
	if len(m.blocks) == 0 {
		return boxStyle.Render("Waiting for blocks...")
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-12s %-20s %-10s %4s %s", "HEIGHT", "HASH", "AGE", "TXS", "PROPOSER"))}
	for i, b := range m.blocks {
		line := fmt.Sprintf("%-12s %-20s %-10s %4d %s",
			utils.AddCommas(fmt.Sprintf("%d", b.Height)),
			utils.TruncateMiddle(b.Hash, 20),
			age(b.Time),
			b.TxCount,
			utils.TruncateMiddle(b.Proposer, 16))
		if i == m.blockIdx {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}

	sections := []string{boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "Recent Blocks", strings.Join(rows, "\n")))}
	if graph := m.blockTimeGraph(); graph != "" {
		sections = append(sections, boxStyle.Render(graph))
	}
	sections = append(sections, subtleStyle.Render("↑/↓ select • enter details • o open in explorer"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) blockTimeGraph() string {
	times := rpc.BlockTimes(m.blocks)
	if len(times) < 2 {
		return ""
	}
	width := 60
	if m.width > 20 && m.width-10 < width {
		width = m.width - 10
	}
	return asciigraph.Plot(times,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.Caption("Block time (s)"),
	)
}

func (m model) viewBlockDetail() string {
	b := m.blockDetail
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Block %s", utils.AddCommas(fmt.Sprintf("%d", b.Height)))),
		"",
		fmt.Sprintf("Hash:     %s", b.Hash),
		fmt.Sprintf("Chain:    %s", b.ChainID),
		fmt.Sprintf("Time:     %s (%s)", b.Time.Local().Format(time.RFC3339), age(b.Time)),
		fmt.Sprintf("Proposer: %s", b.Proposer),
		fmt.Sprintf("Txs:      %d", b.TxCount),
	}
	for _, h := range b.TxHashes {
		lines = append(lines, "  "+h)
	}
	lines = append(lines, "", subtleStyle.Render("esc back • R reload • o open in explorer"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(strings.Join(lines, "\n")))
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// --- Chat ---

func (m *model) updateChatViewport() {
	c := m.selectedContact()
	if c.Address == "" {
		m.viewport.SetContent(subtleStyle.Render("No contact selected."))
		return
	}
	history := m.book.History(c.Address)
	if len(history) == 0 {
		m.viewport.SetContent(subtleStyle.Render("No messages yet. Press enter to write one."))
		return
	}
	var lines []string
	for _, msg := range history {
		who := m.maskString(c.Name)
		style := infoStyle
		if msg.Outgoing {
			who = "you"
			style = selectedStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			subtleStyle.Render(msg.Timestamp.Local().Format("15:04")),
			style.Render(who+":"),
			m.maskString(msg.Body)))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) viewChat() string {
	contacts := m.book.Contacts()
	var list []string
	for i, c := range contacts {
		line := m.maskString(c.Name)
		if n := m.book.Unread(c.Address); n > 0 {
			line += warnStyle.Render(fmt.Sprintf(" (%d)", n))
		}
		if i == m.contactIdx {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		list = append(list, line)
	}
	if len(list) == 0 {
		list = append(list, subtleStyle.Render("No contacts"))
	}

	left := boxStyle.Width(28).Render(lipgloss.JoinVertical(lipgloss.Left, "Contacts", strings.Join(list, "\n")))

	title := "Conversation"
	if c := m.selectedContact(); c.Address != "" {
		title = fmt.Sprintf("%s  %s", m.maskString(c.Name), subtleStyle.Render(m.maskAddress(c.Address)))
	}
	right := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View()))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		subtleStyle.Render("↑/↓ select • enter compose • a add contact • x remove contact • pgup/pgdown scroll"),
	)
}

// --- Network ---

func (m model) viewNetwork() string {
	st := m.status
	node := []string{
		fmt.Sprintf("Chain ID:   %s", m.chainID()),
		fmt.Sprintf("Node:       %s %s", st.Moniker, subtleStyle.Render(st.Version)),
		fmt.Sprintf("RPC:        %s", st.RPCURL),
		fmt.Sprintf("Height:     %s", utils.AddCommas(fmt.Sprintf("%d", st.LatestHeight))),
		fmt.Sprintf("Block time: %s", age(st.LatestBlockTime)),
	}
	if st.CatchingUp {
		node = append(node, warnStyle.Render("Node is catching up"))
	}

	ov := m.overview
	sym := utils.FormatDenom(m.chain.Denom)
	overview := []string{
		fmt.Sprintf("Bonded:            %s %s", utils.AddCommas(fmt.Sprintf("%.0f", utils.MicroToFloat(ov.BondedTokens))), sym),
		fmt.Sprintf("Not bonded:        %s %s", utils.AddCommas(fmt.Sprintf("%.0f", utils.MicroToFloat(ov.NotBondedTokens))), sym),
		fmt.Sprintf("Active validators: %d", ov.ActiveValidators),
		fmt.Sprintf("Inflation:         %s", formatInflation(ov.Inflation)),
	}
	for _, c := range ov.CommunityPool {
		if c.Denom == m.chain.Denom {
			overview = append(overview, fmt.Sprintf("Community pool:    %s %s", utils.AddCommas(fmt.Sprintf("%.0f", utils.MicroToFloat(c.Amount))), sym))
		}
	}
	if ov.Mock {
		overview = append(overview, warnStyle.Render("Showing sample data, live query failed"))
	}

	sections := []string{
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "Node", strings.Join(node, "\n"))),
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "Network", strings.Join(overview, "\n"))),
		m.viewLatency(),
		subtleStyle.Render("l check RPC latency"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func formatInflation(s string) string {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil || s == "" {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}

func (m model) viewLatency() string {
	var rows []string
	for _, u := range m.chain.RPCURLs {
		lat, ok := m.rpcLatencies[u]
		status := subtleStyle.Render("not checked")
		switch {
		case ok && lat < 0:
			status = errStyle.Render("unreachable")
		case ok:
			status = infoStyle.Render(lat.Round(time.Millisecond).String())
		}
		rows = append(rows, fmt.Sprintf("%-48s %s %s", utils.TruncateString(u, 48), status, sparkline(m.rpcLatencyHistory[u])))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, "RPC Latency", strings.Join(rows, "\n")))
}

var sparkChars = []rune("▁▂▃▄▅▆▇█")

// sparkline renders latency history; failed checks show as ×.
func sparkline(hist []time.Duration) string {
	if len(hist) == 0 {
		return ""
	}
	var peak time.Duration
	for _, d := range hist {
		if d > peak {
			peak = d
		}
	}
	var b strings.Builder
	for _, d := range hist {
		if d < 0 {
			b.WriteRune('×')
			continue
		}
		idx := 0
		if peak > 0 {
			idx = int(float64(d) / float64(peak) * float64(len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[idx])
	}
	return subtleStyle.Render(b.String())
}

// --- Overlays ---

func (m model) viewForm() string {
	titles := map[formKind]string{
		formSend:       "Send " + utils.FormatDenom(m.chain.Denom),
		formDelegate:   "Delegate",
		formUndelegate: "Undelegate",
		formCompose:    "Message " + m.maskString(m.selectedContact().Name),
		formAddContact: "Add Contact",
	}
	var inputs []string
	for _, in := range m.formInputs {
		inputs = append(inputs, in.View())
	}
	extra := ""
	if m.form == formDelegate || m.form == formUndelegate || m.form == formSend {
		fee := m.displayMicro(sumDenom(wallet.FeeForChain(m.chain).Amount, m.chain.Denom))
		extra = subtleStyle.Render(fmt.Sprintf("Fee: %s %s", fee, utils.FormatDenom(m.chain.Denom)))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(titles[m.form]),
			"",
			strings.Join(inputs, "\n"),
			"",
			extra,
			m.statusMessage,
			subtleStyle.Render("Enter to next/submit • Esc to cancel"),
		)),
	)
}

func (m model) viewHelp() string {
	help := []string{
		titleStyle.Render("Keys"),
		"",
		"tab / shift+tab   switch view",
		"r                 refresh now",
		"P                 toggle privacy mode",
		"?                 toggle help",
		"q                 quit",
		"",
		subtleStyle.Render("Wallet"),
		"w connect • s send • c copy address • o open in explorer",
		subtleStyle.Render("Staking"),
		"↑/↓ select • d delegate • u undelegate • x claim rewards • o open",
		subtleStyle.Render("Explorer"),
		"↑/↓ select • enter details • o open in explorer",
		subtleStyle.Render("Chat"),
		"↑/↓ select • enter compose • a add • x remove",
		subtleStyle.Render("Network"),
		"l check RPC latency",
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(strings.Join(help, "\n")))
}
