package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhouzirui/philo-chat/backend/internal/app"
	"github.com/zhouzirui/philo-chat/backend/internal/config"
	"github.com/zhouzirui/philo-chat/backend/internal/console"
	"github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

var version = "dev"

// rootCmd starts the interactive console
var rootCmd = &cobra.Command{
	Use:   "philochat",
	Short: "Chat with historical philosophers from the terminal",
	Long: `philochat runs the philosopher chat core in-process and exposes it
as an interactive console: sign up, log in, open chats and talk.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runConsole,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().String("env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.Flags().Bool("verbose", false, "show service logs on stderr")
}

func runConsole(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if !verbose {
		log.SetOutput(io.Discard)
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("warning: failed to load %s: %v", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := app.NewOptions(ctx, cfg)
	if err != nil {
		return err
	}
	if opts.Completer == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: model credentials are not configured; chat replies will fail")
	}

	repl := console.New(chat.NewSession(opts), cmd.InOrStdin(), cmd.OutOrStdout())
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		repl.SetPasswordReader(func(prompt string) (string, error) {
			fmt.Fprint(cmd.OutOrStdout(), prompt)
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", err
			}
			return string(secret), nil
		})
	}

	return repl.Run(ctx)
}
