package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/microclaw/microclaw/pkg/agent"
	"github.com/microclaw/microclaw/pkg/bus"
	"github.com/microclaw/microclaw/pkg/channels"
	"github.com/microclaw/microclaw/pkg/config"
	"github.com/microclaw/microclaw/pkg/cron"
	"github.com/microclaw/microclaw/pkg/providers"
	"github.com/microclaw/microclaw/pkg/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: microclaw <command> [args]")
		fmt.Println("Commands: agent, onboard")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "agent":
		runAgent(os.Args[2:])
	case "onboard":
		runOnboard()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func runAgent(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	message := fs.String("m", "", "Message to send")
	configPath := fs.String("c", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	workspace := expandPath(cfg.Agents.Defaults.Workspace)
	utils.SetupLogger(filepath.Join(workspace, "logs"))

	provider, err := providers.NewProvider(cfg)
	if err != nil {
		fmt.Printf("Error initializing provider: %v\n", err)
		fmt.Println("Please run 'microclaw onboard' or edit .microclaw/config.json")
		os.Exit(1)
	}

	messageBus := bus.NewMessageBus()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Fired jobs re-enter the bus as system messages addressed to the chat
	// that scheduled them.
	cronService := cron.NewService(filepath.Join(workspace, "cron.json"), func(job cron.Job) {
		origin := bus.Address{Channel: job.Payload.Channel, ChatID: job.Payload.To}
		if origin.Channel == "" {
			origin.Channel = bus.DefaultOriginChannel
		}
		if origin.ChatID == "" {
			origin.ChatID = job.ID
		}
		messageBus.PublishInbound(bus.InboundMessage{
			Channel:  bus.SystemChannel,
			SenderID: "cron",
			ChatID:   origin.Composite(),
			Content:  job.Payload.Message,
			Origin:   &origin,
		})
	})
	cronService.Start(ctx)

	loop := agent.NewAgentLoop(messageBus, provider, workspace, cfg, cronService)

	if *message != "" {
		// One-shot mode: a single turn on the direct session, no channels.
		answer, err := loop.ProcessDirect(ctx, *message)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(answer)
		return
	}

	startChannels(cfg, messageBus, workspace)

	go messageBus.DispatchOutbound(ctx)
	go loop.Run(ctx)

	log.Info("Agent running in server mode. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("Shutting down")
}

func startChannels(cfg *config.Config, messageBus *bus.MessageBus, workspace string) {
	var active []channels.Channel

	if cfg.Channels.Telegram.Enabled {
		active = append(active, channels.NewTelegramChannel(&cfg.Channels.Telegram, messageBus))
	}
	if cfg.Channels.Feishu.Enabled {
		active = append(active, channels.NewFeishuChannel(&cfg.Channels.Feishu, messageBus, workspace))
	}
	if cfg.Channels.DingTalk.Enabled {
		active = append(active, channels.NewDingTalkChannel(&cfg.Channels.DingTalk, messageBus))
	}

	for _, ch := range active {
		ch := ch
		if err := ch.Start(); err != nil {
			log.Error("Failed to start channel", "channel", ch.Name(), "error", err)
			continue
		}
		messageBus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
			if err := ch.Send(msg); err != nil {
				log.Error("Failed to deliver message", "channel", ch.Name(), "error", err)
			}
		})
	}
}

const defaultAgentsContent = `# Agent Guidelines

Keep replies short and direct. Prefer doing the task over describing how you
would do it. When a request is ambiguous, ask one clarifying question instead
of guessing.
`

func runOnboard() {
	configDir := ".microclaw"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		fmt.Printf("Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	configFile := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if abs, err := filepath.Abs(filepath.Join(configDir, "workspace")); err == nil {
			cfg.Agents.Defaults.Workspace = abs
		}

		file, err := os.Create(configFile)
		if err != nil {
			fmt.Printf("Warning: Could not create config file: %v\n", err)
		} else {
			defer file.Close()
			encoder := json.NewEncoder(file)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(cfg); err != nil {
				fmt.Printf("Error writing config file: %v\n", err)
			}
			fmt.Printf("Created config file at %s\n", configFile)
		}
	} else {
		fmt.Printf("Config file already exists at %s\n", configFile)
	}

	workspace := filepath.Join(configDir, "workspace")
	if err := os.MkdirAll(workspace, 0755); err != nil {
		fmt.Printf("Error creating workspace: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created workspace at %s\n", workspace)

	agentsPath := filepath.Join(workspace, "AGENTS.md")
	if _, err := os.Stat(agentsPath); os.IsNotExist(err) {
		if err := os.WriteFile(agentsPath, []byte(defaultAgentsContent), 0644); err != nil {
			fmt.Printf("Error creating AGENTS.md: %v\n", err)
		} else {
			fmt.Printf("Created default AGENTS.md at %s\n", agentsPath)
		}
	}

	for _, dir := range []string{"memory", "skills", "sessions"} {
		if err := os.MkdirAll(filepath.Join(workspace, dir), 0755); err != nil {
			fmt.Printf("Error creating %s directory: %v\n", dir, err)
		}
	}

	readmePath := filepath.Join(workspace, "skills", "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		readmeContent := `# Skills

Add your skills here. Each skill should be in its own directory with a ` + "`SKILL.md`" + ` file.

Example structure:
` + "```" + `
skills/
  weather/
    SKILL.md
  github/
    SKILL.md
` + "```" + `

The ` + "`SKILL.md`" + ` file should contain YAML frontmatter defining the skill's description and requirements.
`
		os.WriteFile(readmePath, []byte(readmeContent), 0644)
	}

	fmt.Println("Onboarding complete! Please edit .microclaw/config.json to add your API key.")
}
