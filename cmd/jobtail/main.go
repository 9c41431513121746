package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubejob/jobtail/pkg/kube"
	"github.com/kubejob/jobtail/pkg/tracker/job"
	"github.com/kubejob/jobtail/pkg/trackers/follow"
)

func main() {
	var (
		namespace    string
		containers   []string
		initLogs     bool
		pollInterval time.Duration
		kubeConfig   string
		kubeContext  string
	)

	rootCmd := &cobra.Command{
		Use:           "jobtail JOB_NAME",
		Short:         "Tail container logs of a Kubernetes Job until it terminates",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kube.Init(kube.InitOptions{ConfigPath: kubeConfig, Context: kubeContext}); err != nil {
				return fmt.Errorf("unable to initialize kube: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			name := args[0]
			err := follow.TailJob(ctx, name, namespace, kube.Kubernetes, job.Options{
				Containers:   containers,
				InitLogs:     initLogs,
				PollInterval: pollInterval,
			})
			if err != nil {
				return fmt.Errorf("error watching job/%s in namespace %q: %w", name, namespace, err)
			}

			return nil
		},
	}

	rootCmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "kubernetes namespace of the job")
	rootCmd.Flags().StringSliceVarP(&containers, "containers", "c", nil, "container name(s) to tail logs from (default: all regular containers)")
	rootCmd.Flags().BoolVarP(&initLogs, "init-logs", "i", false, "follow logs for all initContainers before regular containers")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "container status poll interval")
	rootCmd.Flags().StringVar(&kubeConfig, "kube-config", "", "path to the kubeconfig file")
	rootCmd.Flags().StringVar(&kubeContext, "kube-context", "", "kubeconfig context to use")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
