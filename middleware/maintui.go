package middleware

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/muesli/termenv"
	"github.com/refconnect/refterm/cli"
	"github.com/refconnect/refterm/ui"
)

const credentialsHint = "Send credentials with: ssh -o SendEnv=REFTERM_TOKEN -o SendEnv=REFTERM_USER_ID ..."

func MainTui() wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		a := AppFromSession(s)
		if a == nil {
			wish.Println(s, "Error: session was not initialised")
			return nil
		}

		// Commands run non-interactively
		if cmd := s.Command(); len(cmd) > 0 {
			handler := cli.NewHandler(s, a, a.Conf)
			if err := handler.Execute(s.Context(), cmd); err != nil {
				log.Debug("cli command failed", "cmd", cmd[0], "err", err)
			}
			return nil
		}

		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}
		if a.Session.Actor() == nil {
			wish.Println(s, "Error: not authenticated")
			wish.Println(s, credentialsHint)
			return nil
		}

		// Set the global color profile to ANSI256 for Docker compatibility
		lipgloss.SetColorProfile(termenv.ANSI256)

		m := ui.NewModel(a, pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithFPS(60), tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}
