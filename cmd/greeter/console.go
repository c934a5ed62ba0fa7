package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/lumindm/greeter/internal/auth"
	"github.com/lumindm/greeter/internal/config"
	"github.com/lumindm/greeter/internal/greeter"
	"github.com/lumindm/greeter/internal/state"
)

// runGreeter drives one login conversation on the console and blocks
// until the daemon tells us to quit or the channel drops.
func runGreeter(cfg *config.Config) error {
	var store state.Store
	if cfg.State.Path != "" {
		s, err := state.NewSQLiteStore(cfg.State.Path)
		if err != nil {
			slog.Warn("state store unavailable, continuing without", "error", err)
		} else {
			store = s
			defer s.Close()
		}
	}

	g := greeter.New(greeter.Options{
		PasswdPath:    cfg.Users.PasswdPath,
		UsersConfPath: cfg.Users.ConfPath,
		SessionsDir:   cfg.Sessions.Dir,
		Store:         store,
	})
	defer g.Close()

	stdin := bufio.NewScanner(os.Stdin)
	done := make(chan error, 1)

	g.OnConnected(func() {
		hints := g.Hints()
		fmt.Printf("Welcome to %s\n", g.Hostname())
		if !hints.HideUsers() {
			for _, u := range g.Users() {
				marker := " "
				if u.LoggedIn {
					marker = "*"
				}
				fmt.Printf(" %s %s (%s)\n", marker, u.Name, u.DisplayName())
			}
		}
		if user := pickUser(g); user != "" {
			fmt.Printf("Logging in as %s\n", user)
			g.Login(user)
			return
		}
		g.LoginWithUserPrompt()
	})

	g.OnAutologinTimerExpired(func() {
		hints := g.Hints()
		if hints.AutologinGuest() {
			g.LoginAsGuest()
			return
		}
		if user := hints.AutologinUser(); user != "" {
			g.Login(user)
		}
	})

	g.OnShowPrompt(func(text string, _ auth.PromptType) {
		fmt.Print(text + " ")
		if !stdin.Scan() {
			g.CancelAuthentication()
			return
		}
		g.Respond(stdin.Text())
	})

	g.OnShowMessage(func(text string, t auth.MessageType) {
		if t == auth.MessageError {
			fmt.Fprintln(os.Stderr, text)
			return
		}
		fmt.Println(text)
	})

	g.OnAuthenticationComplete(func() {
		if !g.IsAuthenticated() {
			fmt.Println("Authentication failed")
			g.LoginWithUserPrompt()
			return
		}
		g.StartSession(pickSession(g))
	})

	g.OnSessionFailed(func() {
		fmt.Println("Failed to start session")
		g.LoginWithUserPrompt()
	})

	g.OnQuit(func() { done <- nil })
	g.OnDisconnected(func(err error) { done <- err })

	if err := g.Connect(); err != nil {
		return err
	}
	return <-done
}

// pickUser chooses the account to preselect: the daemon's choice wins,
// then the account that logged in last time.
func pickUser(g *greeter.Greeter) string {
	if user := g.Hints().SelectUser(); user != "" {
		return user
	}
	if user := g.LastUser(); user != "" && g.UserByName(user) != nil {
		return user
	}
	return ""
}

// pickSession chooses the session to start: the user's previous choice
// if it is still installed, otherwise the daemon's default.
func pickSession(g *greeter.Greeter) string {
	if user := g.AuthenticationUser(); user != "" {
		if last := g.LastSession(user); last != "" {
			for _, s := range g.Sessions() {
				if s.Key == last {
					return last
				}
			}
		}
	}
	return g.Hints().DefaultSession()
}
