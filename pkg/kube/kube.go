// Package kube builds the Kubernetes clientset for the CLI: kubeconfig first,
// in-cluster service account as the fallback.
package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	// Enable cloud provider auth plugins for kubeconfigs that need them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
)

// Kubernetes is the shared clientset, set by Init.
var Kubernetes kubernetes.Interface

type InitOptions struct {
	ConfigPath string
	Context    string
}

func Init(opts InitOptions) error {
	config, err := getConfig(opts)
	if err != nil {
		return err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return fmt.Errorf("unable to create kube client: %w", err)
	}
	Kubernetes = clientset

	return nil
}

func getConfig(opts InitOptions) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if opts.ConfigPath != "" {
		loadingRules.ExplicitPath = opts.ConfigPath
	}

	overrides := &clientcmd.ConfigOverrides{}
	if opts.Context != "" {
		overrides.CurrentContext = opts.Context
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	config, outOfClusterErr := clientConfig.ClientConfig()
	if outOfClusterErr == nil {
		return config, nil
	}

	if config, err := rest.InClusterConfig(); err == nil {
		klog.V(2).Info("using in-cluster kube config")
		return config, nil
	}

	return nil, fmt.Errorf("unable to load kube config: %w", outOfClusterErr)
}
