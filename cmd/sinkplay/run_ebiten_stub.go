//go:build headless

package main

import (
	"context"

	"github.com/cockroachdb/errors"
)

func runWindow(context.Context, *player) error {
	return errors.WithHint(errors.New("built without display support"), "run with --headless")
}
