package starter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Env vars handed to the start command.
const (
	EnvInterface = "SVCREG_INTERFACE"
	EnvInstance  = "SVCREG_INSTANCE"
)

// DefaultTimeout bounds one run of the start command.
const DefaultTimeout = 10 * time.Second

// Config configures a CommandStarter.
type Config struct {
	// Command is the argv to run. It must not be empty.
	Command []string

	// Rate is the number of start requests per second allowed for one
	// iface/instance, Burst the bucket size.
	Rate  float64
	Burst int

	// Timeout bounds one run; DefaultTimeout when zero.
	Timeout time.Duration
}

// CommandStarter runs a command to start a service.
type CommandStarter struct {
	argv     []string
	timeout  time.Duration
	limiters *LimiterRegistry
	logger   *slog.Logger
}

// NewCommandStarter creates a CommandStarter.
func NewCommandStarter(cfg Config, logger *slog.Logger) (*CommandStarter, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errors.New("starter: empty command")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandStarter{
		argv:     append([]string(nil), cfg.Command...),
		timeout:  timeout,
		limiters: NewLimiterRegistry(cfg.Rate, cfg.Burst),
		logger:   logger.With("component", "starter"),
	}, nil
}

// Start implements service.Starter. It blocks until the command exits;
// the registry calls it on its own goroutine.
func (s *CommandStarter) Start(iface, instance string) error {
	key := iface + "/" + instance
	if !s.limiters.Allow(key) {
		s.logger.Debug("start request suppressed", "interface", iface, "instance", instance)
		return domain.ErrRateLimited.WithDetails(key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Env = append(os.Environ(), EnvInterface+"="+iface, EnvInstance+"="+instance)

	s.logger.Info("starting service", "interface", iface, "instance", instance, "command", s.argv[0])
	out, err := cmd.CombinedOutput()
	if err != nil {
		s.logger.Warn("start command failed", "interface", iface, "instance", instance,
			"error", err, "output", string(out))
		return fmt.Errorf("start %s: %w", key, err)
	}
	return nil
}

// LogStarter only records that a start was wanted. It is used when no
// command is configured.
type LogStarter struct {
	logger *slog.Logger
}

// NewLogStarter creates a LogStarter.
func NewLogStarter(logger *slog.Logger) *LogStarter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStarter{logger: logger.With("component", "starter")}
}

// Start implements service.Starter.
func (s *LogStarter) Start(iface, instance string) error {
	s.logger.Info("service wanted but no start command configured", "interface", iface, "instance", instance)
	return nil
}
