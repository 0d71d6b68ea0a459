package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brizzai/zeroinbox/internal/auth/launcher"
	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/backend"
	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/flow"
	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/brizzai/zeroinbox/internal/status"
	"github.com/brizzai/zeroinbox/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// defaultTUILogFile receives logs while the screen is owned by the TUI
const defaultTUILogFile = "zeroinbox.log"

func main() {
	Execute()
}

var maxUnread int

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zeroinbox",
	Short: "Link a Google account to the ZeroInbox backend",
	Long: `ZeroInbox signs in with Google using the OAuth authorization code flow
(optionally with PKCE), hands the one-time code to the ZeroInbox backend to be
exchanged for tokens, and shows how many unread messages are waiting.`,
	Run: runTUI,
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with Google and link the backend without the TUI",
	Run:   runSignIn,
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print the number of unread messages",
	Run:   runUnread,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	Run:   runConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	unreadCmd.Flags().IntVar(&maxUnread, "max", 0, "Maximum number of messages to count (defaults to unread.limit)")

	rootCmd.AddCommand(signinCmd, unreadCmd, configCmd)
}

// components are the pieces the commands drive
type components struct {
	Flow     *flow.Flow
	Reporter *status.Reporter
	Builder  *request.Builder
}

// newComponents wires the application graph; extra supplies overrides such as
// the TUI's launcher input and output
func newComponents(cfg *config.Config, extra ...fx.Option) (*components, error) {
	var c components
	opts := []fx.Option{
		fx.NopLogger,
		fx.Supply(cfg),
		status.Module,
		backend.Module,
		request.Module,
		launcher.Module,
		flow.Module,
		fx.Populate(&c.Flow, &c.Reporter, &c.Builder),
	}
	app := fx.New(append(opts, extra...)...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		pterm.Error.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initLogging(cfg *config.LoggingConfig) {
	if err := logger.InitLogger(cfg); err != nil {
		pterm.Error.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

// prepare resolves the request builder and reports what keeps sign-in disabled
func prepare(ctx context.Context, c *components, cfg *config.Config, warn bool) {
	if err := c.Builder.Resolve(ctx); err != nil {
		logger.Warn("sign-in disabled", zap.Error(err))
	}
	if !warn {
		return
	}
	for _, w := range cfg.Warnings() {
		pterm.Warning.Println(w)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runTUI is the main function that runs the TUI
func runTUI(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	cfg := loadConfig(cmd)

	// The screen belongs to the TUI, so logs go to a file
	logCfg := cfg.Logging
	logCfg.DisableConsole = true
	if logCfg.OutputPath == "" {
		logCfg.OutputPath = defaultTUILogFile
	}
	initLogging(&logCfg)
	defer func() { _ = logger.Sync() }()

	// xdg-open and friends must not write over the screen
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	bridge := tui.NewBridge()
	defer func() { _ = bridge.Close() }()

	c, err := newComponents(cfg,
		fx.Provide(
			fx.Annotate(func() io.Writer { return bridge }, fx.ResultTags(`name:"launcher_out"`)),
			fx.Annotate(bridge.Input, fx.ResultTags(`name:"launcher_in"`)),
		),
	)
	if err != nil {
		pterm.Error.Printf("Error wiring application: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prepare(ctx, c, cfg, false)
	unsubscribe := c.Reporter.Subscribe(bridge.Notify)
	defer unsubscribe()

	p := tea.NewProgram(tui.NewAppModel(ctx, c.Flow, bridge, cfg), tea.WithAltScreen())
	bridge.Attach(p)

	m, err := p.Run()
	if err != nil {
		pterm.Error.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}

	final := m.(tui.AppModel).Status()
	if final.Phase != models.PhaseIdle {
		printStatus(final)
	}
}

func runSignIn(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	initLogging(&cfg.Logging)
	defer func() { _ = logger.Sync() }()

	c, err := newComponents(cfg)
	if err != nil {
		pterm.Error.Printf("Error wiring application: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	prepare(ctx, c, cfg, true)
	if !c.Flow.Ready() {
		pterm.Error.Printf("Sign-in unavailable: %v\n", c.Builder.Err())
		os.Exit(1)
	}

	final := c.Flow.SignIn(ctx)
	printStatus(final)
	if final.Phase != models.PhaseExchangeSucceeded {
		os.Exit(1)
	}
}

// validateMax rejects a negative --max; zero selects unread.limit
func validateMax(n int) error {
	if n < 0 {
		return fmt.Errorf("--max must be zero or positive, got %d", n)
	}
	return nil
}

func runUnread(cmd *cobra.Command, args []string) {
	if err := validateMax(maxUnread); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	cfg := loadConfig(cmd)
	initLogging(&cfg.Logging)
	defer func() { _ = logger.Sync() }()

	c, err := newComponents(cfg)
	if err != nil {
		pterm.Error.Printf("Error wiring application: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	final := c.Flow.FetchUnread(ctx, maxUnread)
	if final.Phase != models.PhaseUnreadFetched {
		printStatus(final)
		os.Exit(1)
	}
	pterm.Info.Printfln("You have %s unread messages.", pterm.LightGreen(final.Unread))
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	data, err := tui.MarshalConfig(cfg)
	if err != nil {
		pterm.Error.Printf("Error rendering configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(data))

	for _, w := range cfg.Warnings() {
		pterm.Warning.Println(w)
	}
}

func printStatus(s models.Status) {
	switch {
	case s.Phase.Failed():
		pterm.Error.Println(s.Message)
	case s.Phase == models.PhaseExchangeSucceeded, s.Phase == models.PhaseUnreadFetched:
		pterm.Success.Println(s.Message)
	default:
		pterm.Info.Println(s.Message)
	}
}
