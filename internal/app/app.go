// Package app wires the controller's components together: it is the
// only place that knows every concrete implementation behind the
// reconciler's narrow capability interfaces.
package app

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/magicorntech/epictetus/internal/config"
	"github.com/magicorntech/epictetus/internal/dnsprovider"
	"github.com/magicorntech/epictetus/internal/events"
	"github.com/magicorntech/epictetus/internal/httpserver"
	"github.com/magicorntech/epictetus/internal/intent"
	"github.com/magicorntech/epictetus/internal/logging"
	"github.com/magicorntech/epictetus/internal/metrics"
	"github.com/magicorntech/epictetus/internal/node"
	"github.com/magicorntech/epictetus/internal/nodesource"
	"github.com/magicorntech/epictetus/internal/reconciler"
	"github.com/magicorntech/epictetus/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
)

const component = "epictetus"

// App is the fully wired controller, ready to Run.
type App struct {
	Logger     *zap.SugaredLogger
	Scheduler  *scheduler.Scheduler
	HTTPServer *httpserver.Server
	Options    *config.Options
}

// New builds every component from opts, failing fast on any
// unrecoverable startup error (bad kubeconfig, CloudFlare token with no
// visible zones).
func New(ctx context.Context, opts *config.Options) (*App, error) {
	logger, err := logging.NewLogger(opts.LogLevel, opts.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("building logger, %w", err)
	}

	restConfig, err := buildRESTConfig(opts.K8sConfigPath)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes client config, %w", err)
	}
	clientset := lo.Must(kubernetes.NewForConfig(restConfig))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dnsProvider := lo.Must(dnsprovider.NewCloudflareProvider(opts.CloudflareAPIToken, logger.Named("dnsprovider")))
	dnsProvider.Retries = opts.MaxRetries
	dnsProvider.RetryDelay = opts.RetryDelay
	if err := dnsProvider.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing dns provider, %w", err)
	}

	deletionTaints := node.DeletionTaintSet(opts.DeletionTaints)
	if len(deletionTaints) == 0 {
		deletionTaints = node.DefaultDeletionTaintSet
	}

	nodeSource := &nodesource.KubernetesSource{
		Client:         clientset,
		DeletionTaints: deletionTaints,
		Retries:        opts.MaxRetries,
		RetryDelay:     opts.RetryDelay,
		Logger:         logger.Named("nodesource"),
	}
	intentSource := &intent.KubernetesSource{Client: clientset, Logger: logger.Named("intentsource")}
	recorder := events.NewKubernetesRecorder(clientset, component)

	r := reconciler.New(nodeSource, dnsProvider, intentSource, recorder, logger.Named("reconciler"), deletionTaints)

	sched := &scheduler.Scheduler{
		Reconciler:     r,
		Nodes:          nodeSource,
		Logger:         logger.Named("scheduler"),
		SyncInterval:   opts.SyncInterval,
		HealthInterval: opts.HealthInterval,
	}

	return &App{
		Logger:     logger,
		Scheduler:  sched,
		HTTPServer: &httpserver.Server{Reconciler: r, Logger: logger.Named("httpserver")},
		Options:    opts,
	}, nil
}

// Run starts the scheduler (and watch) and, if enabled, the HTTP
// reporter, blocking until ctx is cancelled or the reporter exits, then
// shuts the scheduler down: watch first, then cron jobs. The HTTP
// listener is not shut down here; it stops when the process exits.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start(ctx)

	var serveErr chan error
	if a.Options.EnableHealthServer {
		serveErr = make(chan error, 1)
		go func() {
			serveErr <- a.HTTPServer.Serve(fmt.Sprintf(":%d", a.Options.HealthPort))
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.Logger.Errorw("http reporter exited", "error", err)
		}
	}

	a.Scheduler.Shutdown()
	return nil
}

func buildRESTConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		return rest.InClusterConfig()
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}
