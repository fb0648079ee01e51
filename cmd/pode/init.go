package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultConfigTemplate = `{
  "server": {
    "debugLevel": 0,
    "restart": {
      "period": 0,
      "times": [],
      "crons": []
    },
    "request": {
      "timeout": "30s",
      "bodySize": 10485760
    }
  },
  "web": {
    "static": {
      "cache": {
        "enable": true,
        "maxAge": 3600
      }
    }
  }
}
`

const mainGoTemplate = `package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/podehq/pode/engine"
)

func main() {
	cfg, err := engine.LoadConfigFile("config.json")
	if err != nil {
		log.Fatal(err)
	}
	logger := engine.CreateLogger("zap", &engine.LogConfig{Target: "logs/pode.log"})
	server := engine.NewServerContext(cfg, logger)

	// PODE_SESSION_SECRET keeps session ids valid across a restart instead
	// of every client's session being invalidated by a fresh random key.
	if secret := os.Getenv("PODE_SESSION_SECRET"); secret != "" {
		server.Sessions().SetSecret([]byte(secret))
	}

	// Register endpoints, routes, and auth methods here, e.g.:
	//
	//   server.AddEndpoint(&engine.Endpoint{Protocol: engine.ProtoHTTP, Address: "0.0.0.0", Port: 8080})
	//   server.AddRoute(&engine.Route{Method: engine.MethodGet, Pattern: "/", Handler: func(rc *engine.RequestContext) error {
	//       rc.Response.WriteText(200, "hello from pode")
	//       return nil
	//   }})

	if err := server.Start(nil); err != nil {
		log.Fatal(err)
	}

	// "pode restart" sends SIGHUP to the pid "pode start" recorded; a
	// signal handler belongs here rather than in the engine since restart
	// policy (drain, rebuild config, swap in a new ServerContext) is an
	// application decision. SIGUSR1/2 trigger ad hoc profiling when
	// server.profiling.enable is set (server.Profiling is nil otherwise,
	// and every Prof* method is then a no-op).
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	for sig := range signals {
		switch sig {
		case syscall.SIGHUP:
			logger.Infof("SIGHUP received, restart not implemented by the scaffold")
		case syscall.SIGUSR1:
			go server.Profiling.ProfCPU()
		case syscall.SIGUSR2:
			go server.Profiling.ProfHeap()
		}
	}
}
`

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a new Pode project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(dir, "logs"), 0755); err != nil {
				return err
			}
			if err := writeIfAbsent(filepath.Join(dir, "config.json"), defaultConfigTemplate); err != nil {
				return err
			}
			if err := writeIfAbsent(filepath.Join(dir, "main.go"), mainGoTemplate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized Pode project in %s\n", dir)
			return nil
		},
	}
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0644)
}
