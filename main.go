package main

import (
	"context"
	"os"

	"github.com/ORIGYN-SA/mintgo/app"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr); err != nil {
		if errors.Cause(err) == context.Canceled {
			logrus.Debugln(errors.Wrap(err, "ignore error since context is cancelled"))
			os.Exit(1)
		}
		logrus.Fatal(err)
	}
}
