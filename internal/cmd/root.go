// Package cmd contains the wayfind server's command line entrypoint.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wayfind/wayfind/internal/assistant"
	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/frontend/nav"
	"github.com/wayfind/wayfind/internal/frontend/query"
	wayfindhttp "github.com/wayfind/wayfind/internal/http"
	"github.com/wayfind/wayfind/internal/llm"
	"github.com/wayfind/wayfind/internal/location"
	"github.com/wayfind/wayfind/internal/location/push"
	"github.com/wayfind/wayfind/internal/metrics"
	"github.com/wayfind/wayfind/internal/navigation"
	"github.com/wayfind/wayfind/internal/obstacle"
	"github.com/wayfind/wayfind/internal/xff"
	"github.com/wayfind/wayfind/internal/zpages"
)

const longHelp = `
Run a wayfind server.

Each CLI argument has a corresponding environment variable in the form of the CLI argument prefixed
with WAYFIND. If both the flag and environment variable form are specified, the flag form takes
precedence.

Examples
  --http-port          WAYFIND_HTTP_PORT
  --trusted-proxies    WAYFIND_TRUSTED_PROXIES

A .env file in the working directory is loaded before flags are resolved. The Directions API key
additionally falls back to GOOGLE_DIRECTIONS_API_KEY.
`

// EnvNamePrefix defines the environment variable prefix required for all environment configuration.
const EnvNamePrefix = "WAYFIND"

// RootCommandOptions encompasses all the configurability of the RootCommand.
type RootCommandOptions struct {
	TrustedProxies string `mapstructure:"trusted-proxies"`

	HTTPPort int `mapstructure:"http-port"`

	Provider string `mapstructure:"provider"`

	IPInfoURL string `mapstructure:"ipinfo-url"`

	TracefilePath string `mapstructure:"tracefile-path"`
	TracefileLoop bool   `mapstructure:"tracefile-loop"`

	PushStaleAfter time.Duration `mapstructure:"push-stale-after"`

	DirectionsAPIKey  string `mapstructure:"directions-api-key"`
	DirectionsBaseURL string `mapstructure:"directions-base-url"`

	UpdateInterval time.Duration `mapstructure:"update-interval"`
	AdvanceRadius  float64       `mapstructure:"advance-radius"`
	OffRouteRadius float64       `mapstructure:"off-route-radius"`

	SessionEndpoints string `mapstructure:"session-endpoints"`

	LLMURL    string `mapstructure:"llm-url"`
	LLMAPIKey string `mapstructure:"llm-api-key"`
	LLMModel  string `mapstructure:"llm-model"`
}

// RootCommand is the root command that represents the entrypoint to wayfind.
type RootCommand struct {
	*cobra.Command
	vpr  *viper.Viper
	Opts RootCommandOptions
}

// NewRootCommand creates new RootCommand instance.
func NewRootCommand() (*RootCommand, error) {
	rootCmd := &RootCommand{
		Command: &cobra.Command{
			Use:          os.Args[0],
			Long:         longHelp,
			SilenceUsage: true,
		},
	}

	rootCmd.PreRunE = rootCmd.PreRun
	rootCmd.RunE = rootCmd.Run
	rootCmd.Flags().SortFlags = false // Print flag help in the order they're specified.

	// Ensure keys with `-` use `_` for env keys else Viper won't match them.
	rootCmd.vpr = viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer("-", "_")))
	rootCmd.vpr.SetEnvPrefix(EnvNamePrefix)

	if err := rootCmd.configureFlags(); err != nil {
		return nil, err
	}

	return rootCmd, nil
}

// PreRun satisfies cobra.Command.PreRunE and unmarshalls. Its responsible for populating c.Opts.
func (c *RootCommand) PreRun(*cobra.Command, []string) error {
	// The prototype deployments keep their API keys in a .env file.
	_ = godotenv.Load()

	return c.vpr.Unmarshal(&c.Opts)
}

// Run executes wayfind.
func (c *RootCommand) Run(cmd *cobra.Command, _ []string) error {
	logger, err := log.Init("github.com/wayfind/wayfind")
	if err != nil {
		return errors.Errorf("initialize logger: %v", err)
	}
	defer logger.Close()

	logger.With("opts", fmt.Sprintf("%#v", redacted(c.Opts))).Info("Root command options")

	ctx, otelShutdown := otelinit.InitOpenTelemetry(cmd.Context(), "wayfind")
	defer otelShutdown(ctx)

	metrics.State.Set(metrics.Initializing)

	apiKey := c.Opts.DirectionsAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_DIRECTIONS_API_KEY")
	}
	if apiKey == "" {
		return errors.New("a Directions API key is required; set --directions-api-key or GOOGLE_DIRECTIONS_API_KEY")
	}

	provider, err := location.New(ctx, toProviderOptions(c.Opts))
	if err != nil {
		return errors.Errorf("initialize location provider: %v", err)
	}

	var dirOpts []directions.Option
	if c.Opts.DirectionsBaseURL != "" {
		dirOpts = append(dirOpts, directions.WithBaseURL(c.Opts.DirectionsBaseURL))
	}
	router := directions.NewClient(apiKey, dirOpts...)

	engine := navigation.NewEngine(logger.Package("navigation"), provider, router, navigation.Options{
		UpdateInterval: c.Opts.UpdateInterval,
		AdvanceRadius:  c.Opts.AdvanceRadius,
		OffRouteRadius: c.Opts.OffRouteRadius,
	})

	metaEndpoints, err := nav.ParseMetaEndpoints(c.Opts.SessionEndpoints)
	if err != nil {
		return err
	}

	xffmw, err := xff.MiddlewareFromUnparsed(c.Opts.TrustedProxies)
	if err != nil {
		return err
	}

	ginRouter := gin.New()
	ginRouter.Use(
		gin.Logger(),
		gin.Recovery(),
		xffmw,
		metrics.InstrumentRequestCount(prometheus.DefaultRegisterer),
		metrics.InstrumentRequestDuration(prometheus.DefaultRegisterer),
	)

	zpages.Configure(ginRouter, provider)

	reports := obstacle.NewLog(0)

	navOpts := nav.Options{
		Reports:       reports,
		MetaEndpoints: metaEndpoints,
	}
	if feed, ok := provider.(*push.Provider); ok {
		navOpts.Feed = feed
	}

	fe := nav.New(logger.Package("nav"), engine, navOpts)
	fe.Configure(ginRouter)

	var assist query.Assist
	if c.Opts.LLMURL != "" || c.Opts.LLMModel != "" {
		chat := llm.NewOpenAIClient(c.Opts.LLMURL, c.Opts.LLMAPIKey)
		assist = assistant.New(logger.Package("assistant"), chat, c.Opts.LLMModel)
	}

	qf := query.New(logger.Package("query"), assist, engine, reports)
	qf.Configure(ginRouter)

	// Listen for signals to gracefully shutdown.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var g run.Group
	g.Add(func() error {
		return wayfindhttp.Serve(ctx, logger, fmt.Sprintf(":%v", c.Opts.HTTPPort), ginRouter)
	}, func(error) {
		cancel()
	})
	g.Add(func() error {
		metrics.TrackProviderHealth(ctx, logger.Package("metrics"), metrics.DefaultProviderHealthPollInterval, provider)
		return nil
	}, func(error) {
		cancel()
	})

	metrics.State.Set(metrics.Ready)

	err = g.Run()
	engine.Close()

	return err
}

func (c *RootCommand) configureFlags() error {
	c.Flags().Int("http-port", 50080, "Port to listen on for HTTP requests")

	c.Flags().String("provider", "ipinfo", "Location provider to use. Options: ipinfo, tracefile, push")

	// IPInfo provider specific flags.
	c.Flags().String("ipinfo-url", "", "URL of the IP geolocation service; defaults to https://ipinfo.io")

	// Tracefile provider specific flags.
	c.Flags().String("tracefile-path", "", "Path to a YAML file of recorded location fixes")
	c.Flags().Bool("tracefile-loop", false, "Restart the recorded track once exhausted")

	// Push provider specific flags.
	c.Flags().Duration("push-stale-after", push.DefaultStaleAfter, "How old a pushed fix may be before the provider is unhealthy")

	c.Flags().String("directions-api-key", "", "Google Directions API key; falls back to GOOGLE_DIRECTIONS_API_KEY")
	c.Flags().String("directions-base-url", "", "Override of the Directions API host")

	c.Flags().Duration("update-interval", navigation.DefaultUpdateInterval, "Delay between location polls while tracking")
	c.Flags().Float64("advance-radius", navigation.DefaultAdvanceRadius, "Meters from a step's end within which the step completes")
	c.Flags().Float64("off-route-radius", navigation.DefaultOffRouteRadius, "Meters from the route beyond which a reroute is triggered")

	c.Flags().String(
		"session-endpoints",
		"",
		`JSON map of meta endpoint to gojq filter over the session document, e.g. {"/instruction":".step.instruction"}`,
	)

	c.Flags().String("llm-url", "", "Chat completions endpoint of an OpenAI-compatible language model")
	c.Flags().String("llm-api-key", "", "API key for the language model endpoint")
	c.Flags().String("llm-model", "", "Model name passed to the language model endpoint")

	c.Flags().String(
		"trusted-proxies",
		"",
		"A comma separated list of allowed peer IPs and/or CIDR blocks to replace with X-Forwarded-For",
	)

	if err := c.vpr.BindPFlags(c.Flags()); err != nil {
		return err
	}

	var err error
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = c.vpr.BindEnv(f.Name)
	})

	return err
}

func toProviderOptions(opts RootCommandOptions) location.Options {
	var providerOpts location.Options
	switch opts.Provider {
	case "ipinfo":
		providerOpts = location.Options{
			IPInfo: &location.IPInfo{
				URL: opts.IPInfoURL,
			},
		}
	case "tracefile":
		providerOpts = location.Options{
			Tracefile: &location.Tracefile{
				Path: opts.TracefilePath,
				Loop: opts.TracefileLoop,
			},
		}
	case "push":
		providerOpts = location.Options{
			Push: &location.Push{
				StaleAfter: opts.PushStaleAfter,
			},
		}
	}
	return providerOpts
}

// redacted masks credentials so the startup log can dump the full option set.
func redacted(opts RootCommandOptions) RootCommandOptions {
	if opts.DirectionsAPIKey != "" {
		opts.DirectionsAPIKey = "<redacted>"
	}
	if opts.LLMAPIKey != "" {
		opts.LLMAPIKey = "<redacted>"
	}
	return opts
}
