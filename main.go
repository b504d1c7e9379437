package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/refconnect/refterm/app"
	"github.com/refconnect/refterm/cli"
	"github.com/refconnect/refterm/middleware"
	"github.com/refconnect/refterm/ui"
	"github.com/refconnect/refterm/util"
	"github.com/refconnect/refterm/web"
)

const hostKeyFile = ".ssh/refterm_ed25519"

func main() {
	version := flag.Bool("v", false, "print the version and exit")
	serve := flag.Bool("serve", false, "serve the TUI over SSH (and feeds over HTTP when withWeb is set)")
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", util.Name, util.GetVersion())
		return
	}

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal("Failed to read config", "err", err)
	}
	util.SetupLogging(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		err = runServer(ctx, conf)
	case flag.NArg() > 0:
		err = runCommand(ctx, conf, flag.Args())
	default:
		err = runTui(conf)
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// runCommand executes one CLI command as the configured account.
func runCommand(ctx context.Context, conf *util.AppConfig, args []string) error {
	a := app.New(conf)
	if err := a.LoginFromConf(); err != nil {
		log.Debug("running without a session", "err", err)
	}
	defer a.Logout()

	stdio := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	return cli.NewHandler(stdio, a, conf).Execute(ctx, args)
}

func runTui(conf *util.AppConfig) error {
	a := app.New(conf)
	if err := a.LoginFromConf(); err != nil {
		return err
	}
	defer a.Logout()

	p := tea.NewProgram(ui.NewModel(a, 0, 0), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func runServer(ctx context.Context, conf *util.AppConfig) error {
	addr := net.JoinHostPort(conf.Conf.Host, strconv.Itoa(conf.Conf.SshPort))
	s, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(util.ResolveFilePath(hostKeyFile)),
		// Credentials travel in the session env; any key may connect.
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool { return true }),
		wish.WithMiddleware(
			middleware.MainTui(),
			middleware.AuthMiddleware(conf),
			logging.Middleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("create ssh server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("Starting SSH server", "addr", addr, "version", util.GetNameAndVersion())
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- fmt.Errorf("ssh server: %w", err)
		}
	}()

	if conf.Conf.WithWeb {
		feedApp := app.New(conf)
		if err := feedApp.LoginFromConf(); err != nil {
			log.Warn("feed server has no account, feeds will answer 503", "err", err)
		}
		go func() {
			if err := web.Serve(ctx, feedApp); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	log.Info("Stopping SSH server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := s.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, ssh.ErrServerClosed) {
		return errors.Join(err, serr)
	}
	return err
}
