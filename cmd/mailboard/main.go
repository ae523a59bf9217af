package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/mailboard-io/mailboard-ce/internal/config"
	"github.com/mailboard-io/mailboard-ce/internal/events"
	"github.com/mailboard-io/mailboard-ce/internal/models"
	"github.com/mailboard-io/mailboard-ce/internal/store"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:     "mailboard",
	Short:   "Mailboard CLI - operator tools for the mail platform dashboard",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

var (
	tailURLFlag   string
	tailTokenFlag string
	tailTypesFlag []string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream events from the gateway to stdout",
	Long: `Tail connects to the gateway's event stream and prints events as they
arrive. Without --type it subscribes to everything; pass --type one or
more times to narrow the stream.`,
	RunE: runTail,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Mailboard CLI %s\n", rootCmd.Version)
	},
}

var (
	queuesAPIFlag    string
	queuesTokenFlag  string
	queuesReasonFlag string
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Inspect and control delivery queues via the gateway REST API",
}

var queuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue summaries",
	RunE:  runQueuesList,
}

var queuesSuspendCmd = &cobra.Command{
	Use:   "suspend <name>",
	Short: "Suspend delivery for a queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueuesSuspend,
}

var queuesResumeCmd = &cobra.Command{
	Use:   "resume <name>",
	Short: "Resume delivery for a suspended queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueuesResume,
}

var (
	userEmailFlag    string
	userRoleFlag     string
	userPasswordFlag string
)

var userAddCmd = &cobra.Command{
	Use:   "user-add",
	Short: "Create a dashboard user directly in the database",
	RunE:  runUserAdd,
}

func init() {
	tailCmd.Flags().StringVar(&tailURLFlag, "url", "", "Gateway WebSocket URL (default from config)")
	tailCmd.Flags().StringVar(&tailTokenFlag, "token", "", "Bearer token for the event stream")
	tailCmd.Flags().StringSliceVar(&tailTypesFlag, "type", nil, "Event type to subscribe to (repeatable)")

	queuesCmd.PersistentFlags().StringVar(&queuesAPIFlag, "api", "http://localhost:8080", "Gateway base URL")
	queuesCmd.PersistentFlags().StringVar(&queuesTokenFlag, "token", "", "Bearer token (required)")
	queuesCmd.MarkPersistentFlagRequired("token")
	queuesSuspendCmd.Flags().StringVar(&queuesReasonFlag, "reason", "", "Reason recorded in the audit log")
	queuesCmd.AddCommand(queuesListCmd)
	queuesCmd.AddCommand(queuesSuspendCmd)
	queuesCmd.AddCommand(queuesResumeCmd)

	userAddCmd.Flags().StringVar(&userEmailFlag, "email", "", "User email (required)")
	userAddCmd.Flags().StringVar(&userRoleFlag, "role", "viewer", "Role: admin, operator, auditor, or viewer")
	userAddCmd.Flags().StringVar(&userPasswordFlag, "password", "", "Password (required)")
	userAddCmd.MarkFlagRequired("email")
	userAddCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(versionCmd)
}

func runQueuesList(cmd *cobra.Command, args []string) error {
	client := newAPIClient(queuesAPIFlag, queuesTokenFlag)
	queues, err := client.listQueues()
	if err != nil {
		return err
	}
	if len(queues) == 0 {
		fmt.Println("No queues.")
		return nil
	}
	fmt.Printf("%-24s %-24s %10s %10s  %s\n", "NAME", "DOMAIN", "MESSAGES", "DEFERRED", "STATUS")
	for _, q := range queues {
		fmt.Printf("%-24s %-24s %10d %10d  %s\n", q.Name, q.Domain, q.MessageCount, q.DeferredCount, q.Status)
	}
	return nil
}

func runQueuesSuspend(cmd *cobra.Command, args []string) error {
	client := newAPIClient(queuesAPIFlag, queuesTokenFlag)
	queue, err := client.suspendQueue(args[0], queuesReasonFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Queue %s is now %s\n", queue.Name, queue.Status)
	return nil
}

func runQueuesResume(cmd *cobra.Command, args []string) error {
	client := newAPIClient(queuesAPIFlag, queuesTokenFlag)
	queue, err := client.resumeQueue(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Queue %s is now %s\n", queue.Name, queue.Status)
	return nil
}

func runTail(cmd *cobra.Command, args []string) error {
	if err := config.Load(os.Getenv("MAILBOARD_CONFIG")); err != nil {
		return err
	}
	cfg := config.Get()

	streamURL := tailURLFlag
	if streamURL == "" {
		streamURL = cfg.Events.URL
	}
	if tailTokenFlag != "" {
		u, err := url.Parse(streamURL)
		if err != nil {
			return fmt.Errorf("invalid gateway URL: %w", err)
		}
		q := u.Query()
		q.Set("token", tailTokenFlag)
		u.RawQuery = q.Encode()
		streamURL = u.String()
	}

	channel := events.NewChannel(events.ChannelConfig{
		URL:          streamURL,
		PingInterval: cfg.Events.PingInterval,
		Reconnect: events.ReconnectConfig{
			InitialDelay: cfg.Events.Reconnect.InitialDelay,
			MaxDelay:     cfg.Events.Reconnect.MaxDelay,
			MaxAttempts:  cfg.Events.Reconnect.MaxAttempts,
			Multiplier:   cfg.Events.Reconnect.Multiplier,
		},
	})

	channel.OnStateChange(func(state events.State) {
		switch {
		case state.Connected:
			log.Println("tail: connected")
		case state.Reconnecting:
			log.Printf("tail: reconnecting (%s)", state.Err)
		case state.Err != "":
			log.Printf("tail: disconnected: %s", state.Err)
		}
	})

	printEvent := func(ev models.Event) {
		line, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Println(string(line))
	}

	if len(tailTypesFlag) == 0 {
		channel.Subscribe(models.EventAll, printEvent)
	} else {
		for _, t := range tailTypesFlag {
			channel.Subscribe(models.EventType(t), printEvent)
		}
	}

	if err := channel.Connect(context.Background()); err != nil {
		log.Printf("tail: initial connect failed, retrying: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	channel.Disconnect()
	return nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	if err := config.Load(os.Getenv("MAILBOARD_CONFIG")); err != nil {
		return err
	}
	cfg := config.Get()

	role := models.Role(userRoleFlag)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", userRoleFlag)
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	user := &models.User{Email: userEmailFlag, Role: role}
	if err := user.SetPassword(userPasswordFlag); err != nil {
		return err
	}
	if err := store.NewUserRepository(db).Create(cmd.Context(), user); err != nil {
		return err
	}
	fmt.Printf("Created %s user %s\n", role, user.Email)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
