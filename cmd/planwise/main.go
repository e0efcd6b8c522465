package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"planwise/internal/backend"
	"planwise/internal/config"
	"planwise/internal/dispatch"
	"planwise/internal/gateway"
	"planwise/internal/planner"
	"planwise/internal/remote"
	"planwise/internal/store"
	"planwise/internal/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; environment wins either way.
	godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "planwise.toml", "Path to TOML config file")
	sessionID := flag.String("session-id", "", "Load existing session by ID")
	tier := flag.String("tier", "", "Subscription tier (free|premium), overrides config")
	model := flag.String("model", "", "Chat model, overrides config")
	debug := flag.Bool("debug", false, "Enable debug logging")
	stream := flag.Bool("stream", false, "Stream assistant replies incrementally")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.SessionID = *sessionID
	cfg.Debug = cfg.Debug || *debug
	if *tier != "" {
		cfg.Tier = *tier
	}
	if *model != "" {
		cfg.Model = *model
	}
	cfg.APIKey = os.Getenv("PLANWISE_API_KEY")
	if cfg.APIKey == "" {
		return fmt.Errorf("PLANWISE_API_KEY not set")
	}

	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	schedule := planner.NewScheduleManager(st.DB(), logger)
	tasks := planner.NewTaskManager(st.DB(), logger)
	habits := planner.NewHabitManager(st.DB(), logger)
	goals := planner.NewGoalManager(st.DB(), logger)

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.FunctionManageEvents, schedule)
	registry.Register(dispatch.FunctionManageTasks, tasks)
	registry.Register(dispatch.FunctionManageHabits, habits)
	registry.Register(dispatch.FunctionManageGoals, goals)
	defer registry.Close()

	// Remote endpoints override the local managers for their functions.
	for function, endpoint := range cfg.RemoteManagers {
		m, err := remote.New(ctx, function, endpoint, logger)
		if err != nil {
			logger.Warn("failed to set up remote manager, keeping local", "function", function, "error", err)
			continue
		}
		registry.Register(function, m)
		logger.Info("registered remote manager", "function", function, "endpoint", endpoint)
	}

	client := backend.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.Model, logger)
	gw := gateway.New(cfg, client, registry, st, logger, tracer, meter)
	defer gw.Close()

	repl := &repl{
		gw:       gw,
		cfg:      cfg,
		schedule: schedule,
		tasks:    tasks,
		habits:   habits,
		goals:    goals,
		stream:   *stream,
	}
	return repl.run(ctx)
}

type repl struct {
	gw       *gateway.Gateway
	cfg      config.Config
	schedule *planner.ScheduleManager
	tasks    *planner.TaskManager
	habits   *planner.HabitManager
	goals    *planner.GoalManager
	stream   bool
}

func (r *repl) run(ctx context.Context) error {
	fmt.Println("=== Planwise Assistant ===")
	fmt.Printf("Session: %s\n", r.gw.SessionID())
	fmt.Printf("Tier: %s\n", r.cfg.Tier)
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}

		if err := r.send(ctx, input); err != nil {
			r.renderError(err)
		}
	}

	if err := r.gw.SaveSession(); err != nil {
		return fmt.Errorf("failed to save session on exit: %w", err)
	}

	fmt.Println("Goodbye!")
	return nil
}

func (r *repl) send(ctx context.Context, input string) error {
	if r.stream {
		fmt.Print("Assistant: ")
		_, err := r.gw.StreamMessage(ctx, input, func(chunk string) {
			fmt.Print(chunk)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Println()
		return nil
	}

	msg, err := r.gw.SendMessage(ctx, input)
	if err != nil {
		return err
	}

	if msg.Result != nil {
		status := "ok"
		if !msg.Result.Success {
			status = "failed"
		}
		fmt.Printf("Assistant [%s %s]: %s\n\n", msg.Result.Function, status, msg.Content)
		return nil
	}

	fmt.Printf("Assistant: %s\n\n", msg.Content)
	return nil
}

// renderError gives the two gate rejections their distinct treatments.
func (r *repl) renderError(err error) {
	switch {
	case errors.Is(err, gateway.ErrUpgradeRequired):
		fmt.Println("You've used all your free messages for today. Upgrade to premium for unlimited chats.")
	case errors.Is(err, gateway.ErrRateLimited):
		snap := r.gw.Limiter().Snapshot()
		fmt.Printf("Rate limit reached. Try again after %s.\n", snap.ResetAt.Format(time.Kitchen))
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func (r *repl) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new-session":
		id := r.gw.NewSession()
		fmt.Println("Started new session:", id)
		return false, nil

	case "/events":
		events, err := r.schedule.ListEvents(ctx)
		if err != nil {
			return false, err
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return false, nil
		}
		for i, e := range events {
			fmt.Printf("%d. %s (%s)\n", i+1, e.Title, e.StartsAt.Format("2006-01-02 15:04"))
		}
		return false, nil

	case "/tasks":
		tasks, err := r.tasks.ListTasks(ctx)
		if err != nil {
			return false, err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return false, nil
		}
		for i, t := range tasks {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			fmt.Printf("%d. [%s] %s\n", i+1, mark, t.Title)
		}
		return false, nil

	case "/habits":
		habits, err := r.habits.ListHabits(ctx)
		if err != nil {
			return false, err
		}
		if len(habits) == 0 {
			fmt.Println("No habits.")
			return false, nil
		}
		for i, h := range habits {
			count, err := r.habits.LogCount(ctx, h.ID)
			if err != nil {
				return false, err
			}
			fmt.Printf("%d. %s (%s, logged %d times)\n", i+1, h.Name, h.Frequency, count)
		}
		return false, nil

	case "/goals":
		goals, err := r.goals.ListGoals(ctx)
		if err != nil {
			return false, err
		}
		if len(goals) == 0 {
			fmt.Println("No goals.")
			return false, nil
		}
		for i, g := range goals {
			fmt.Printf("%d. %s (%.0f%%)\n", i+1, g.Title, g.Progress*100)
		}
		return false, nil

	case "/limits":
		snap := r.gw.Limiter().Snapshot()
		fmt.Printf("Rate limit: %s (%d/%d remaining)\n", snap.State, snap.Remaining, snap.Limit)
		if r.cfg.Tier == config.TierFree {
			fmt.Printf("Free messages left today: %d\n", r.gw.Quota().Remaining())
		}
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit   - Exit the assistant")
		fmt.Println("  /new-session   - Start a new chat session")
		fmt.Println("  /events        - List calendar events")
		fmt.Println("  /tasks         - List tasks")
		fmt.Println("  /habits        - List habits")
		fmt.Println("  /goals         - List goals")
		fmt.Println("  /limits        - Show rate limit and quota state")
		fmt.Println("  /help          - Show this help message")
		return false, nil

	default:
		return false, nil
	}
}
