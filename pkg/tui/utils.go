package tui

import (
	"math/big"
	"os/exec"
	"runtime"
	"time"

	"cosmterm/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) displayMicro(v *big.Int) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatMicroInt(v)
}

func (m model) displayAmount(amount string) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatMicroAmount(amount)
}

func (m model) maskString(s string) string {
	if m.privacyMode {
		return "****"
	}
	return s
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return m.chain.Bech32Prefix + "1**...**"
	}
	return addr
}

// toast sets the status line and schedules its removal.
func (m *model) toast(msg string) tea.Cmd {
	m.statusMessage = msg
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
