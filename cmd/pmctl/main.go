package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dom/product-console/internal/client"
	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/logger"
	"github.com/dom/product-console/internal/session"
	"go.uber.org/zap"
)

// errReported marks a failure whose message has already been printed.
var errReported = errors.New("reported")

type app struct {
	lg       *zap.SugaredLogger
	store    *session.FileStore
	sessions *session.Controller
	guard    *session.Guard
	api      *client.Client
	out      io.Writer
	in       io.Reader

	// live counts the interactive commands (shell, audit watch) running the
	// session ticker; lifecycle notices are printed only while it is non-zero.
	mu        sync.Mutex
	live      int
	stopWatch context.CancelFunc
}

func main() {
	global := flag.NewFlagSet("pmctl", flag.ExitOnError)
	verbose := global.Bool("v", false, "Log client activity to stderr")
	global.Usage = printUsage
	global.Parse(os.Args[1:])

	if global.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	lg := logger.NewCLI(*verbose)
	defer lg.Sync()

	a := newApp(cfg, lg, os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(cfg *config.ClientConfig, lg *zap.SugaredLogger, in io.Reader, out io.Writer) *app {
	store := session.NewFileStore(cfg.SessionFile)
	sessions := session.NewController(store, session.DefaultOptions(), lg)
	a := &app{
		lg:       lg,
		store:    store,
		sessions: sessions,
		guard:    session.NewGuard(sessions),
		api:      client.New(cfg.APIURL, sessions, lg),
		out:      out,
		in:       in,
	}
	sessions.OnEvent(a.handleEvent)
	return a
}

func (a *app) handleEvent(ev session.Event) {
	a.mu.Lock()
	live, stopWatch := a.live > 0, a.stopWatch
	a.mu.Unlock()
	if !live {
		return
	}

	switch ev.Kind {
	case session.EventWarning:
		fmt.Fprintf(a.out, "! Session expires in %s. Run 'extend' to stay signed in.\n", ev.Remaining.Round(time.Second))
	case session.EventExpired, session.EventRejected:
		fmt.Fprintln(a.out, session.ExpiredMessage)
		if stopWatch != nil {
			stopWatch()
		}
	}
}

// goLive starts the session ticker for the first interactive command.
func (a *app) goLive(ctx context.Context) {
	a.mu.Lock()
	a.live++
	first := a.live == 1
	a.mu.Unlock()
	if first {
		a.sessions.Start(ctx)
	}
}

func (a *app) endLive() {
	a.mu.Lock()
	a.live--
	last := a.live == 0
	a.mu.Unlock()
	if last {
		a.sessions.Stop()
	}
}

func (a *app) isLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live > 0
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.loginCmd(ctx, args)
	case "register":
		return a.registerCmd(ctx, args)
	case "logout":
		return a.logoutCmd()
	case "whoami":
		return a.whoamiCmd(ctx)
	case "status":
		return a.statusCmd()
	case "extend":
		return a.extendCmd()
	case "products":
		return a.productsCmd(ctx, args)
	case "audit":
		return a.auditCmd(ctx, args)
	case "shell":
		return a.shellCmd(ctx)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n\n", command)
		printUsage()
		return errReported
	}
}

func printUsage() {
	fmt.Println(`pmctl - Command-line console for the product management API

USAGE:
  pmctl [-v] <command> [options]

COMMANDS:
  login       Log in and start a session
  register    Create an account and start a session
  logout      End the current session
  whoami      Show the user the server sees for the current token
  status      Show session state and time remaining
  extend      Push the session expiry out by the inactivity window
  products    list | get <id> | create | update <id> | delete <id>
  audit       list | get <id> | user <userId> | stats | watch   (admin)
  shell       Interactive prompt; each line counts as activity
  help        Show this help message

ENVIRONMENT:
  API_URL              Backend API URL (default: http://localhost:3001/api)
  PMCTL_SESSION_FILE   Session file (default: $HOME/.pmctl/session.json)

EXAMPLES:
  pmctl login --email=admin@example.com --password=admin123
  pmctl products list --search=lamp --sort=price --order=asc
  pmctl products create --name="Desk Lamp" --price=39.99
  pmctl audit list --action=CREATE --from=2024-01-01
  pmctl audit watch`)
}
