/*
Copyright 2025 The Crossplane Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command operator-demo wires the reconciliation runtime up to a single toy
// CRD, Widget, to exercise it end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kubeops/operator-runtime/internal/demo/v1alpha1"
	"github.com/kubeops/operator-runtime/pkg/config"
	"github.com/kubeops/operator-runtime/pkg/dispatch"
	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/event"
	"github.com/kubeops/operator-runtime/pkg/finalizer"
	"github.com/kubeops/operator-runtime/pkg/logging"
	"github.com/kubeops/operator-runtime/pkg/operator"
	"github.com/kubeops/operator-runtime/pkg/reconciler"
)

func main() {
	var (
		namespace      string
		maxParallel    int64
		conflictPolicy string
	)

	pflag.StringVar(&namespace, "namespace", "default", "Namespace for the leader election lease; Widgets are watched in every namespace")
	pflag.Int64Var(&maxParallel, "max-parallel-reconciles", 4, "Maximum number of concurrent reconciliations")
	pflag.StringVar(&conflictPolicy, "conflict-strategy", "RequeueAfterDelay", "Discard, RequeueAfterDelay, or WaitForCompletion")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	ctrl.SetLogger(zap.New(zap.UseDevMode(true)))
	setupLog := ctrl.Log.WithName("setup")
	log := logging.NewLogrLogger(ctrl.Log.WithName("operator-demo"))

	scheme := clientgoscheme.Scheme
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		setupLog.Error(err, "unable to register Widget scheme")
		os.Exit(1)
	}

	c, err := client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to build client")
		os.Exit(1)
	}

	settings := config.Default("operator-demo")
	settings.Namespace = namespace
	settings.MaxParallel = maxParallel
	settings.ConflictStrategy = dispatch.ConflictStrategy(conflictPolicy)

	recorder := event.NewNopRecorder()

	kind, err := operator.NewKindBuilder(
		"widgets.demo.kubeops.dev",
		c,
		func() entity.Object { return &v1alpha1.Widget{} },
		func() client.ObjectList { return &v1alpha1.WidgetList{} },
	).
		WithSettings(settings).
		WithLogger(log).
		WithRecorder(recorder).
		WithReconciler(reconciler.UserReconcilerFunc(reconcileWidget)).
		WithFinalizer(v1alpha1.GroupVersion.Group, "widget", finalizer.HandlerFunc(finalizeWidget)).
		Build()
	if err != nil {
		setupLog.Error(err, "unable to build widget runtime")
		os.Exit(1)
	}

	setupLog.Info("starting operator-demo")
	if err := kind.Run(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running operator")
		os.Exit(1)
	}
}

func reconcileWidget(ctx context.Context, obj entity.Object) (reconciler.Result, error) {
	w, ok := obj.(*v1alpha1.Widget)
	if !ok {
		return reconciler.Done(), fmt.Errorf("unexpected object type %T", obj)
	}

	w.Status.ObservedGeneration = w.Generation
	w.Status.Ready = w.Spec.Size > 0

	return reconciler.RequeueAfter(30 * time.Second), nil
}

func finalizeWidget(ctx context.Context, obj entity.Object) (bool, error) {
	return true, nil
}
