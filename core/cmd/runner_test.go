package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/goalbot/core/config"
	coretelegram "github.com/m3rciful/goalbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	stopCalled *bool
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStop: func(context.Context, coretelegram.Runtime) error {
			*a.stopCalled = true
			return nil
		},
	}, nil
}

func TestRunWiresHooks(t *testing.T) {
	t.Setenv("GOALBOT_TEST_CONFIG", "from-env.yaml")
	var (
		loadedPath string
		stopCalled bool
		loggerDown bool
	)
	err := Run(Options{
		ConfigEnvVar:      "GOALBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app{stopCalled: &stopCalled}, nil
		},
		ShutdownLogger: func() error {
			loggerDown = true
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if loadedPath != "from-env.yaml" {
		t.Fatalf("config path = %q", loadedPath)
	}
	if !stopCalled || !loggerDown {
		t.Fatalf("stop=%v logger=%v", stopCalled, loggerDown)
	}
}

func TestRunErrors(t *testing.T) {
	if err := Run(Options{}); err == nil {
		t.Fatal("expected error without LoadConfig")
	}
	boom := errors.New("boom")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return nil, boom },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("expected error for missing core config")
	}
}
