//go:build windows

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface so the backend can run under the
// Windows service manager with clean Start/Stop handling.
type program struct {
	ctx    context.Context
	cancel context.CancelFunc
	exit   chan struct{}
}

// Start launches the application in a goroutine and returns immediately,
// as the service manager requires.
func (p *program) Start(s service.Service) error {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		run(p.ctx)
	}()

	return nil
}

// Stop signals shutdown and waits for the application to drain.
func (p *program) Stop(s service.Service) error {
	p.cancel()

	select {
	case <-p.exit:
	case <-time.After(60 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}
	return nil
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "AesthetiSim",
		DisplayName: "AesthetiSim Simulation Service",
		Description: "Generates aesthetic treatment outcome previews for clinic dashboards",
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

func newService() (service.Service, error) {
	return service.New(&program{}, serviceConfig())
}

// RunAsService runs under the Windows service manager when not launched
// from an interactive session. Returns false when the process should run
// normally.
func RunAsService() (bool, error) {
	s, err := newService()
	if err != nil {
		return false, fmt.Errorf("failed to create service: %w", err)
	}

	if service.Interactive() {
		return false, nil
	}

	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// HandleServiceCommand handles install/uninstall/start/stop/restart
// subcommands. Returns true when a command was consumed.
func HandleServiceCommand(args []string) bool {
	if len(args) == 0 {
		return false
	}

	var action func(service.Service) error
	switch args[0] {
	case "install":
		action = service.Service.Install
	case "uninstall":
		action = service.Service.Uninstall
	case "start":
		action = service.Service.Start
	case "stop":
		action = service.Service.Stop
	case "restart":
		action = service.Service.Restart
	default:
		return false
	}

	s, err := newService()
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		return true
	}

	if err := action(s); err != nil {
		fmt.Printf("service %s failed: %v\n", args[0], err)
		return true
	}

	fmt.Printf("service %s succeeded\n", args[0])
	return true
}
