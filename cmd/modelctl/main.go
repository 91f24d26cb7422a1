package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/deploy"
	"github.com/cuemby/modelctl/pkg/log"
	"github.com/cuemby/modelctl/pkg/metrics"
	"github.com/cuemby/modelctl/pkg/release"
	"github.com/cuemby/modelctl/pkg/storage"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errDeploymentFailed signals a fatal stage; the report already explains it
var errDeploymentFailed = errors.New("deployment failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDeploymentFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modelctl",
	Short: "modelctl - deploy inference models to Kubernetes",
	Long: `modelctl deploys a model inference release to a Kubernetes cluster.

A run validates the request, checks required tools and the cluster session,
audits accelerator capacity, provisions the namespace, submits the Helm
release, waits for the rollout and probes the public health endpoint.
The first fatal finding stops the run; warnings are reported and the run
still succeeds.

Use --dry-run to validate everything without changing the cluster.`,
	Example: `  modelctl --model-type llama-7b --environment staging
  modelctl --model-type llama-70b --dry-run --output json
  modelctl --model-type code-llama --environment production --set replicaCount=3`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runDeploy,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"modelctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profilesCmd)

	// Deployment request
	rootCmd.Flags().String("model-type", "", "Model to deploy (llama-7b, llama-13b, llama-70b, stable-diffusion, code-llama)")
	rootCmd.Flags().String("namespace", config.String(config.EnvNamespace, config.DefaultNamespace), "Target namespace")
	rootCmd.Flags().String("environment", config.String(config.EnvEnvironment, config.DefaultEnvironment), "Target environment (dev, staging, production)")
	rootCmd.Flags().Bool("dry-run", false, "Validate and render without changing the cluster")
	rootCmd.Flags().Bool("verbose", false, "Enable debug logging")
	rootCmd.Flags().Int("timeout", config.DefaultTimeoutSeconds, "Rollout and health check timeout in seconds")

	// Collaborators
	rootCmd.Flags().String("kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG, ~/.kube/config or in-cluster)")
	rootCmd.Flags().String("chart-dir", config.String(config.EnvChartDir, config.DefaultChartDir), "Directory holding the model charts")
	rootCmd.Flags().String("values-dir", "", "Directory holding values.yaml and values-<environment>.yaml (default: chart dir)")
	rootCmd.Flags().String("rbac-manifest", "", "Access policy manifest applied to the namespace (default: built-in)")
	rootCmd.Flags().StringArray("set", nil, "Extra release override key=value, applied last (repeatable)")
	rootCmd.Flags().String("gpu-node-selector", config.DefaultGPUNodeSelector, "Label selector of accelerator-capable nodes")
	rootCmd.Flags().String("accelerator-resource", config.DefaultAcceleratorResource, "Extended resource name of accelerators")
	rootCmd.Flags().String("health-path", config.DefaultHealthPath, "Health probe path")
	rootCmd.Flags().String("probe-scheme", config.DefaultProbeScheme, "Health probe URL scheme")
	rootCmd.Flags().Duration("poll-interval", deploy.DefaultPollInterval, "Rollout status poll interval")

	// Output and state
	rootCmd.Flags().String("log-dir", config.String(config.EnvLogDir, config.DefaultLogDir), "Directory for run logs")
	rootCmd.Flags().Bool("log-json", false, "Log as JSON lines")
	rootCmd.Flags().String("output", "text", "Report format (text, json)")
	rootCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	rootCmd.PersistentFlags().String("state-dir", config.String(config.EnvStateDir, config.DefaultStateDir), "Directory for run history")
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

func runDeploy(cmd *cobra.Command, args []string) error {
	modelType, _ := cmd.Flags().GetString("model-type")
	namespace, _ := cmd.Flags().GetString("namespace")
	environment, _ := cmd.Flags().GetString("environment")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeout, _ := cmd.Flags().GetInt("timeout")
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")
	chartDir, _ := cmd.Flags().GetString("chart-dir")
	valuesDir, _ := cmd.Flags().GetString("values-dir")
	rbacManifest, _ := cmd.Flags().GetString("rbac-manifest")
	sets, _ := cmd.Flags().GetStringArray("set")
	gpuSelector, _ := cmd.Flags().GetString("gpu-node-selector")
	acceleratorResource, _ := cmd.Flags().GetString("accelerator-resource")
	healthPath, _ := cmd.Flags().GetString("health-path")
	probeScheme, _ := cmd.Flags().GetString("probe-scheme")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	logDir, _ := cmd.Flags().GetString("log-dir")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	output, _ := cmd.Flags().GetString("output")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	stateDir, _ := cmd.Flags().GetString("state-dir")

	if output != "text" && output != "json" {
		return fmt.Errorf("--output must be 'text' or 'json', got %q", output)
	}
	if !cmd.Flags().Changed("timeout") {
		envTimeout, err := config.Int(config.EnvTimeout, config.DefaultTimeoutSeconds)
		if err != nil {
			return err
		}
		timeout = envTimeout
	}

	extra, err := release.ParseSetFlags(sets)
	if err != nil {
		return err
	}

	var policy []byte
	if rbacManifest != "" {
		policy, err = os.ReadFile(rbacManifest)
		if err != nil {
			return fmt.Errorf("failed to read access policy: %w", err)
		}
	}

	// Logging: live stream plus the persisted run log
	logPath := log.RunLogPath(logDir,
		unsafeName.ReplaceAllString(modelType, "_"),
		unsafeName.ReplaceAllString(environment, "_"),
		time.Now())
	runLog, err := log.OpenRunLog(logPath)
	if err != nil {
		return err
	}
	defer runLog.Close()

	var live io.Writer = os.Stdout
	if output == "json" {
		live = os.Stderr
	}
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: logJSON, Output: live, RunLog: runLog})
	logger := log.WithComponent("modelctl")
	logger.Info().Str("log", logPath).Msgf("modelctl %s starting", Version)

	var store storage.Store
	if bolt, err := storage.NewBoltStore(stateDir); err != nil {
		logger.Warn().Err(err).Msg("Run history disabled")
	} else {
		store = bolt
		defer bolt.Close()
	}

	orch := deploy.New(config.NewResolver(config.DefaultCatalog()), deploy.Options{
		Cluster: cluster.NewKube(cluster.Options{
			Kubeconfig:          kubeconfig,
			AcceleratorResource: corev1.ResourceName(acceleratorResource),
		}),
		Releases:             release.NewHelm("helm"),
		Kubeconfig:           kubeconfig,
		ChartDir:             chartDir,
		ValuesDir:            valuesDir,
		EnvironmentOverrides: release.DefaultEnvironmentOverrides(),
		Extra:                extra,
		Policy:               policy,
		GPUNodeSelector:      gpuSelector,
		AcceleratorResource:  acceleratorResource,
		HealthPath:           healthPath,
		ProbeScheme:          probeScheme,
		PollInterval:         pollInterval,
		Store:                store,
		LogPath:              logPath,
	})

	out := orch.Run(context.Background(), config.Params{
		ModelType:      modelType,
		Namespace:      namespace,
		Environment:    environment,
		DryRun:         dryRun,
		Verbose:        verbose,
		TimeoutSeconds: timeout,
	})

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			logger.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics")
		}
	}

	switch output {
	case "json":
		if err := out.WriteJSON(os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	default:
		fmt.Println()
		if err := out.WriteText(os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Println()
	}

	if !out.Succeeded() {
		logger.Error().Msg(out.Summary())
		fmt.Fprintln(live, "✗ "+out.Summary())
		return errDeploymentFailed
	}
	logger.Info().Msg(out.Summary())
	fmt.Fprintln(live, "✓ "+out.Summary())
	return nil
}
