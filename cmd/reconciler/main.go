package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/app"
	"github.com/code-payments/vault-server/pkg/margin/reconcile"
)

func main() {
	if err := app.Run(reconcile.NewApp()); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("error running reconciler")
	}
}
